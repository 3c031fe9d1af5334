package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	repo "github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
)

// RawTranscriptRepository handles Layer 1 transcript storage
type RawTranscriptRepository struct {
	db *gorm.DB
}

var _ repo.RawTranscriptRepository = (*RawTranscriptRepository)(nil)

// NewRawTranscriptRepository creates a new raw transcript repository
func NewRawTranscriptRepository(db *gorm.DB) *RawTranscriptRepository {
	return &RawTranscriptRepository{db: db}
}

// Create inserts a raw transcript
func (r *RawTranscriptRepository) Create(ctx context.Context, t *entities.RawTranscript) error {
	if t == nil {
		return errors.New("transcript cannot be nil")
	}
	return r.db.WithContext(ctx).Create(t).Error
}

// GetByID retrieves a raw transcript by ID
func (r *RawTranscriptRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.RawTranscript, error) {
	var t entities.RawTranscript
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// ListByHash retrieves every ingestion of identical content within an organization
func (r *RawTranscriptRepository) ListByHash(ctx context.Context, orgID uuid.UUID, hash string) ([]entities.RawTranscript, error) {
	var out []entities.RawTranscript
	if err := r.db.WithContext(ctx).
		Where("org_id = ? AND sha256_hash = ?", orgID, hash).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizedTranscriptRepository handles Layer 2 transcript storage
type NormalizedTranscriptRepository struct {
	db *gorm.DB
}

var _ repo.NormalizedTranscriptRepository = (*NormalizedTranscriptRepository)(nil)

// NewNormalizedTranscriptRepository creates a new normalized transcript repository
func NewNormalizedTranscriptRepository(db *gorm.DB) *NormalizedTranscriptRepository {
	return &NormalizedTranscriptRepository{db: db}
}

// Create inserts a normalized transcript
func (r *NormalizedTranscriptRepository) Create(ctx context.Context, t *entities.NormalizedTranscript) error {
	if t == nil {
		return errors.New("transcript cannot be nil")
	}
	return r.db.WithContext(ctx).Create(t).Error
}

// GetByID retrieves a normalized transcript by ID
func (r *NormalizedTranscriptRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.NormalizedTranscript, error) {
	var t entities.NormalizedTranscript
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// GetLatestByMeetingRef retrieves the most recent normalization of a meeting
func (r *NormalizedTranscriptRepository) GetLatestByMeetingRef(ctx context.Context, orgID uuid.UUID, meetingRef string) (*entities.NormalizedTranscript, error) {
	var t entities.NormalizedTranscript
	if err := r.db.WithContext(ctx).
		Where("org_id = ? AND meeting_ref = ?", orgID, meetingRef).
		Order("created_at DESC").
		First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// ListExpired retrieves normalized transcripts whose retention deadline has passed
func (r *NormalizedTranscriptRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]entities.NormalizedTranscript, error) {
	if limit == 0 {
		limit = 100
	}
	var out []entities.NormalizedTranscript
	if err := r.db.WithContext(ctx).
		Where("retention_until < ?", now).
		Order("retention_until ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a normalized transcript
func (r *NormalizedTranscriptRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entities.NormalizedTranscript{}, "id = ?", id).Error
}

// SpeakerMappingRepository handles confirmed speaker identities
type SpeakerMappingRepository struct {
	db *gorm.DB
}

var _ repo.SpeakerMappingRepository = (*SpeakerMappingRepository)(nil)

// NewSpeakerMappingRepository creates a new speaker mapping repository
func NewSpeakerMappingRepository(db *gorm.DB) *SpeakerMappingRepository {
	return &SpeakerMappingRepository{db: db}
}

// Save inserts a mapping or replaces the one for the same (org, speaker)
func (r *SpeakerMappingRepository) Save(ctx context.Context, m *entities.SpeakerMapping) error {
	if m == nil {
		return errors.New("mapping cannot be nil")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "speaker_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "confirmed", "confirmed_by"}),
		}).
		Create(m).Error
}

// FindConfirmed returns the confirmed mapping for a speaker, or nil
func (r *SpeakerMappingRepository) FindConfirmed(ctx context.Context, orgID uuid.UUID, speakerID string) (*entities.SpeakerMapping, error) {
	// an unmapped speaker is the common case, so a miss is not an error
	var m entities.SpeakerMapping
	res := r.db.WithContext(ctx).
		Where("org_id = ? AND speaker_id = ? AND confirmed = ?", orgID, speakerID, true).
		Limit(1).
		Find(&m)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &m, nil
}

// Delete removes the mapping for a speaker
func (r *SpeakerMappingRepository) Delete(ctx context.Context, orgID uuid.UUID, speakerID string) error {
	return r.db.WithContext(ctx).
		Where("org_id = ? AND speaker_id = ?", orgID, speakerID).
		Delete(&entities.SpeakerMapping{}).Error
}

// PIITagRepository handles PII tag storage
type PIITagRepository struct {
	db *gorm.DB
}

var _ repo.PIITagRepository = (*PIITagRepository)(nil)

// NewPIITagRepository creates a new PII tag repository
func NewPIITagRepository(db *gorm.DB) *PIITagRepository {
	return &PIITagRepository{db: db}
}

// CreateBatch inserts tags. An empty batch is a no-op.
func (r *PIITagRepository) CreateBatch(ctx context.Context, tags []*entities.PIITag) error {
	if len(tags) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(tags, 100).Error
}

// ListByNormalizedID retrieves tags in segment order
func (r *PIITagRepository) ListByNormalizedID(ctx context.Context, normalizedID uuid.UUID) ([]entities.PIITag, error) {
	var tags []entities.PIITag
	if err := r.db.WithContext(ctx).
		Where("normalized_transcript_id = ?", normalizedID).
		Order("segment_sequence ASC, start_offset ASC").
		Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// DeleteByNormalizedID removes every tag of a normalized transcript
func (r *PIITagRepository) DeleteByNormalizedID(ctx context.Context, normalizedID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("normalized_transcript_id = ?", normalizedID).
		Delete(&entities.PIITag{}).Error
}
