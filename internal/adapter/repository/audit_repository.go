package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	repo "github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
)

// IssueRepository handles issue storage
type IssueRepository struct {
	db *gorm.DB
}

var _ repo.IssueRepository = (*IssueRepository)(nil)

// NewIssueRepository creates a new issue repository
func NewIssueRepository(db *gorm.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// Create appends an issue
func (r *IssueRepository) Create(ctx context.Context, issue *entities.Issue) error {
	if issue == nil {
		return errors.New("issue cannot be nil")
	}
	return r.db.WithContext(ctx).Create(issue).Error
}

// ListByResource retrieves issues raised against a resource
func (r *IssueRepository) ListByResource(ctx context.Context, resourceType, resourceID string) ([]entities.Issue, error) {
	var out []entities.Issue
	if err := r.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByCorrelationID retrieves issues raised within one pipeline call
func (r *IssueRepository) ListByCorrelationID(ctx context.Context, correlationID string) ([]entities.Issue, error) {
	var out []entities.Issue
	if err := r.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// AuditLogRepository handles audit log storage
type AuditLogRepository struct {
	db *gorm.DB
}

var _ repo.AuditLogRepository = (*AuditLogRepository)(nil)

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Create appends an audit entry
func (r *AuditLogRepository) Create(ctx context.Context, entry *entities.AuditLogEntry) error {
	if entry == nil {
		return errors.New("audit entry cannot be nil")
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByResource retrieves audit entries for a resource
func (r *AuditLogRepository) ListByResource(ctx context.Context, resourceType, resourceID string) ([]entities.AuditLogEntry, error) {
	var out []entities.AuditLogEntry
	if err := r.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("timestamp ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByCorrelationID retrieves audit entries written within one pipeline call
func (r *AuditLogRepository) ListByCorrelationID(ctx context.Context, correlationID string) ([]entities.AuditLogEntry, error) {
	var out []entities.AuditLogEntry
	if err := r.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		Order("timestamp ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
