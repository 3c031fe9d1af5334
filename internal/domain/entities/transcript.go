package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RawSegment is one speaker turn exactly as the transcription provider emitted it
type RawSegment struct {
	SpeakerID  string   `json:"speaker_id"`
	Start      *float64 `json:"start"`
	End        *float64 `json:"end"`
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
}

// HasTimestamps reports whether both start and end are present
func (s RawSegment) HasTimestamps() bool {
	return s.Start != nil && s.End != nil
}

// RawTranscriptInput is the caller-supplied payload for Layer 1 ingestion
type RawTranscriptInput struct {
	OrgID          uuid.UUID              `json:"org_id" validate:"required"`
	ArtifactID     string                 `json:"artifact_id"`
	Text           string                 `json:"text"`
	Language       string                 `json:"language"`
	Confidence     float64                `json:"confidence"`
	Segments       []RawSegment           `json:"segments"`
	SourceProvider string                 `json:"source_provider"`
	SourceMetadata map[string]interface{} `json:"source_metadata,omitempty"`
}

// RawTranscript is the immutable, verbatim Layer 1 record
type RawTranscript struct {
	ID             uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	OrgID          uuid.UUID         `json:"org_id" gorm:"type:uuid;not null;index"`
	ArtifactID     string            `json:"artifact_id,omitempty" gorm:"type:varchar(255);index"`
	Text           string            `json:"text" gorm:"type:text"`
	Language       string            `json:"language,omitempty" gorm:"type:varchar(20)"`
	Confidence     float64           `json:"confidence"`
	Segments       []RawSegment      `json:"segments" gorm:"type:jsonb;serializer:json"`
	SpeakerCount   int               `json:"speaker_count"`
	SourceProvider string            `json:"source_provider" gorm:"type:varchar(100);not null"`
	SourceMetadata datatypes.JSONMap `json:"source_metadata,omitempty"`
	SHA256Hash     string            `json:"sha256_hash" gorm:"column:sha256_hash;type:varchar(64);not null;index"`
	CreatedAt      time.Time         `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (RawTranscript) TableName() string {
	return "transcripts_raw"
}

// NewRawTranscript copies the input verbatim into a new record
func NewRawTranscript(in RawTranscriptInput, hash string) *RawTranscript {
	segments := make([]RawSegment, len(in.Segments))
	copy(segments, in.Segments)

	return &RawTranscript{
		ID:             uuid.New(),
		OrgID:          in.OrgID,
		ArtifactID:     in.ArtifactID,
		Text:           in.Text,
		Language:       in.Language,
		Confidence:     in.Confidence,
		Segments:       segments,
		SpeakerCount:   CountSpeakers(segments),
		SourceProvider: in.SourceProvider,
		SourceMetadata: datatypes.JSONMap(in.SourceMetadata),
		SHA256Hash:     hash,
		CreatedAt:      time.Now().UTC(),
	}
}

// CountSpeakers returns the number of distinct speaker ids
func CountSpeakers(segments []RawSegment) int {
	seen := make(map[string]struct{}, len(segments))
	for _, s := range segments {
		seen[s.SpeakerID] = struct{}{}
	}
	return len(seen)
}
