package repositories

import (
	"context"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

// IssueRepository is an append-only store of data-quality and fabrication concerns
type IssueRepository interface {
	Create(ctx context.Context, issue *entities.Issue) error
	ListByResource(ctx context.Context, resourceType, resourceID string) ([]entities.Issue, error)
	ListByCorrelationID(ctx context.Context, correlationID string) ([]entities.Issue, error)
}

// AuditLogRepository is an append-only store of state-changing operations
type AuditLogRepository interface {
	Create(ctx context.Context, entry *entities.AuditLogEntry) error
	ListByResource(ctx context.Context, resourceType, resourceID string) ([]entities.AuditLogEntry, error)
	ListByCorrelationID(ctx context.Context, correlationID string) ([]entities.AuditLogEntry, error)
}
