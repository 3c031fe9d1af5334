package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	repo "github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
)

// EvidenceRepository handles evidence pointer storage
type EvidenceRepository struct {
	db *gorm.DB
}

var _ repo.EvidenceRepository = (*EvidenceRepository)(nil)

// NewEvidenceRepository creates a new evidence repository
func NewEvidenceRepository(db *gorm.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// CreateBatch inserts pointers. An empty batch is a no-op.
func (r *EvidenceRepository) CreateBatch(ctx context.Context, pointers []*entities.EvidencePointer) error {
	if len(pointers) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(pointers, 100).Error
}

// ListByRunID retrieves every pointer attached during a run
func (r *EvidenceRepository) ListByRunID(ctx context.Context, runID uuid.UUID) ([]entities.EvidencePointer, error) {
	var out []entities.EvidencePointer
	if err := r.db.WithContext(ctx).
		Where("extraction_run_id = ?", runID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ExtractionRepository handles extraction runs and approved artifacts
type ExtractionRepository struct {
	db *gorm.DB
}

var _ repo.ExtractionRepository = (*ExtractionRepository)(nil)

// NewExtractionRepository creates a new extraction repository
func NewExtractionRepository(db *gorm.DB) *ExtractionRepository {
	return &ExtractionRepository{db: db}
}

// CreateRun inserts a new extraction run
func (r *ExtractionRepository) CreateRun(ctx context.Context, run *entities.ExtractionRun) error {
	if run == nil {
		return errors.New("run cannot be nil")
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// UpdateRun saves the final state of a run
func (r *ExtractionRepository) UpdateRun(ctx context.Context, run *entities.ExtractionRun) error {
	if run == nil {
		return errors.New("run cannot be nil")
	}
	return r.db.WithContext(ctx).
		Model(&entities.ExtractionRun{}).
		Where("id = ?", run.ID).
		Save(run).Error
}

// GetRunByID retrieves an extraction run by ID
func (r *ExtractionRepository) GetRunByID(ctx context.Context, id uuid.UUID) (*entities.ExtractionRun, error) {
	var run entities.ExtractionRun
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// CreateDecisions inserts approved decisions
func (r *ExtractionRepository) CreateDecisions(ctx context.Context, decisions []*entities.Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(decisions).Error
}

// CreateActionItems inserts approved action items
func (r *ExtractionRepository) CreateActionItems(ctx context.Context, items []*entities.ActionItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(items).Error
}

// ListDecisionsByMeetingRef retrieves decisions of a meeting, oldest first
func (r *ExtractionRepository) ListDecisionsByMeetingRef(ctx context.Context, orgID uuid.UUID, meetingRef string) ([]entities.Decision, error) {
	var out []entities.Decision
	if err := r.db.WithContext(ctx).
		Where("org_id = ? AND meeting_ref = ?", orgID, meetingRef).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListActionItemsByMeetingRef retrieves action items of a meeting, oldest first
func (r *ExtractionRepository) ListActionItemsByMeetingRef(ctx context.Context, orgID uuid.UUID, meetingRef string) ([]entities.ActionItem, error) {
	var out []entities.ActionItem
	if err := r.db.WithContext(ctx).
		Where("org_id = ? AND meeting_ref = ?", orgID, meetingRef).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
