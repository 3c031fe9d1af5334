package repositories

import (
	"context"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

// DocumentResultRepository stores finished document runs. Each run is a new row.
type DocumentResultRepository interface {
	Create(ctx context.Context, result *entities.DocumentProcessingResult) error
	ListByDocumentID(ctx context.Context, documentID string) ([]entities.DocumentProcessingResult, error)
}
