package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

// RawTranscriptRepository stores immutable Layer 1 records.
// Getters return nil, nil when the record does not exist.
type RawTranscriptRepository interface {
	Create(ctx context.Context, t *entities.RawTranscript) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.RawTranscript, error)
	ListByHash(ctx context.Context, orgID uuid.UUID, hash string) ([]entities.RawTranscript, error)
}

// NormalizedTranscriptRepository stores Layer 2 records
type NormalizedTranscriptRepository interface {
	Create(ctx context.Context, t *entities.NormalizedTranscript) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.NormalizedTranscript, error)
	GetLatestByMeetingRef(ctx context.Context, orgID uuid.UUID, meetingRef string) (*entities.NormalizedTranscript, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]entities.NormalizedTranscript, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SpeakerMappingRepository stores human-confirmed speaker identities per organization
type SpeakerMappingRepository interface {
	Save(ctx context.Context, m *entities.SpeakerMapping) error
	FindConfirmed(ctx context.Context, orgID uuid.UUID, speakerID string) (*entities.SpeakerMapping, error)
	Delete(ctx context.Context, orgID uuid.UUID, speakerID string) error
}

// PIITagRepository stores one row per detected PII entity
type PIITagRepository interface {
	CreateBatch(ctx context.Context, tags []*entities.PIITag) error
	ListByNormalizedID(ctx context.Context, normalizedID uuid.UUID) ([]entities.PIITag, error)
	DeleteByNormalizedID(ctx context.Context, normalizedID uuid.UUID) error
}
