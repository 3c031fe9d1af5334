package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	repo "github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
)

// DocumentResultRepository handles document run storage
type DocumentResultRepository struct {
	db *gorm.DB
}

var _ repo.DocumentResultRepository = (*DocumentResultRepository)(nil)

// NewDocumentResultRepository creates a new document result repository
func NewDocumentResultRepository(db *gorm.DB) *DocumentResultRepository {
	return &DocumentResultRepository{db: db}
}

// Create inserts a finished run
func (r *DocumentResultRepository) Create(ctx context.Context, result *entities.DocumentProcessingResult) error {
	if result == nil {
		return errors.New("result cannot be nil")
	}
	return r.db.WithContext(ctx).Create(result).Error
}

// ListByDocumentID retrieves every run of a document, newest first
func (r *DocumentResultRepository) ListByDocumentID(ctx context.Context, documentID string) ([]entities.DocumentProcessingResult, error) {
	var out []entities.DocumentProcessingResult
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("started_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
