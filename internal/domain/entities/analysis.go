package entities

import (
	"time"

	"github.com/google/uuid"
)

// GeneratorVersion is stamped on every persisted artifact
const GeneratorVersion = "1.0.0"

// Decision is a QA-approved decision extracted from a normalized transcript
type Decision struct {
	ID                     uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	OrgID                  uuid.UUID   `json:"org_id" gorm:"type:uuid;not null;index"`
	MeetingRef             string      `json:"meeting_ref" gorm:"type:varchar(255);index"`
	NormalizedTranscriptID uuid.UUID   `json:"normalized_transcript_id" gorm:"type:uuid;not null;index"`
	ExtractionRunID        uuid.UUID   `json:"extraction_run_id" gorm:"type:uuid;not null;index"`
	Text                   string      `json:"decision" gorm:"type:text;not null"`
	Rationale              *string     `json:"rationale" gorm:"type:text"`
	Impact                 *string     `json:"impact" gorm:"type:text"`
	Confidence             float64     `json:"confidence"`
	QAPassed               bool        `json:"qa_passed"`
	QAScore                float64     `json:"qa_score"`
	QAIssues               []string    `json:"qa_issues" gorm:"type:jsonb;serializer:json"`
	TraceabilityScore      float64     `json:"traceability_score"`
	GeneratorVersion       string      `json:"generator_version" gorm:"type:varchar(20)"`
	EvidenceIDs            []uuid.UUID `json:"evidence_ids" gorm:"type:jsonb;serializer:json"`
	CreatedAt              time.Time   `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (Decision) TableName() string {
	return "decisions"
}

// ActionItemStatus is the lifecycle status of a persisted action item
type ActionItemStatus string

const (
	ActionItemStatusOpen ActionItemStatus = "open"
	ActionItemStatusDone ActionItemStatus = "done"
)

// ActionItem is a QA-approved action item extracted from a normalized transcript
type ActionItem struct {
	ID                     uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	OrgID                  uuid.UUID        `json:"org_id" gorm:"type:uuid;not null;index"`
	MeetingRef             string           `json:"meeting_ref" gorm:"type:varchar(255);index"`
	NormalizedTranscriptID uuid.UUID        `json:"normalized_transcript_id" gorm:"type:uuid;not null;index"`
	ExtractionRunID        uuid.UUID        `json:"extraction_run_id" gorm:"type:uuid;not null;index"`
	Title                  string           `json:"title" gorm:"type:text;not null"`
	Description            *string          `json:"description" gorm:"type:text"`
	OwnerName              *string          `json:"owner_name" gorm:"type:varchar(255)"`
	OwnerEmail             *string          `json:"owner_email" gorm:"type:varchar(255)"`
	DueDate                *string          `json:"due_date" gorm:"type:varchar(100)"` // verbatim from source, never resolved
	Priority               *string          `json:"priority" gorm:"type:varchar(20)"`
	Status                 ActionItemStatus `json:"status" gorm:"type:varchar(20);not null"`
	Confidence             float64          `json:"confidence"`
	QAPassed               bool             `json:"qa_passed"`
	QAScore                float64          `json:"qa_score"`
	QAIssues               []string         `json:"qa_issues" gorm:"type:jsonb;serializer:json"`
	TraceabilityScore      float64          `json:"traceability_score"`
	GeneratorVersion       string           `json:"generator_version" gorm:"type:varchar(20)"`
	EvidenceIDs            []uuid.UUID      `json:"evidence_ids" gorm:"type:jsonb;serializer:json"`
	CreatedAt              time.Time        `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (ActionItem) TableName() string {
	return "action_items"
}
