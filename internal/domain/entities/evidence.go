package entities

import (
	"time"

	"github.com/google/uuid"
)

const (
	EvidenceSourceTable      = "transcript_segments"
	EvidenceSourceField      = "text"
	EvidenceDefaultRelevance = 0.85
	EvidenceMaxQuoteLength   = 200
)

// EvidencePointer links one extracted field to the verbatim excerpt that supports it
type EvidencePointer struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OrgID           uuid.UUID `json:"org_id" gorm:"type:uuid;not null;index"`
	ExtractionRunID uuid.UUID `json:"extraction_run_id" gorm:"type:uuid;not null;index"`
	SourceTable     string    `json:"source_table" gorm:"type:varchar(100);not null"`
	SourceID        uuid.UUID `json:"source_id" gorm:"type:uuid;not null;index"`
	SourceField     string    `json:"source_field" gorm:"type:varchar(100);not null"`
	SegmentSequence int       `json:"segment_sequence"`
	TargetField     string    `json:"target_field" gorm:"type:varchar(100);not null"`
	Quote           string    `json:"quote" gorm:"type:text;not null"`
	RelevanceScore  float64   `json:"relevance_score"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (EvidencePointer) TableName() string {
	return "evidence_pointers"
}

// NewEvidencePointer creates a pointer into a normalized transcript segment
func NewEvidencePointer(orgID, runID, sourceID uuid.UUID, sequence int, field, quote string) *EvidencePointer {
	return &EvidencePointer{
		ID:              uuid.New(),
		OrgID:           orgID,
		ExtractionRunID: runID,
		SourceTable:     EvidenceSourceTable,
		SourceID:        sourceID,
		SourceField:     EvidenceSourceField,
		SegmentSequence: sequence,
		TargetField:     field,
		Quote:           quote,
		RelevanceScore:  EvidenceDefaultRelevance,
		CreatedAt:       time.Now().UTC(),
	}
}
