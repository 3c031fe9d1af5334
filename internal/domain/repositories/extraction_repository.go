package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

// EvidenceRepository stores evidence pointers for approved and rejected drafts alike
type EvidenceRepository interface {
	CreateBatch(ctx context.Context, pointers []*entities.EvidencePointer) error
	ListByRunID(ctx context.Context, runID uuid.UUID) ([]entities.EvidencePointer, error)
}

// ExtractionRepository stores Layer 3 runs and their approved artifacts
type ExtractionRepository interface {
	CreateRun(ctx context.Context, run *entities.ExtractionRun) error
	UpdateRun(ctx context.Context, run *entities.ExtractionRun) error
	GetRunByID(ctx context.Context, id uuid.UUID) (*entities.ExtractionRun, error)

	CreateDecisions(ctx context.Context, decisions []*entities.Decision) error
	CreateActionItems(ctx context.Context, items []*entities.ActionItem) error
	ListDecisionsByMeetingRef(ctx context.Context, orgID uuid.UUID, meetingRef string) ([]entities.Decision, error)
	ListActionItemsByMeetingRef(ctx context.Context, orgID uuid.UUID, meetingRef string) ([]entities.ActionItem, error)
}
