package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WorkflowVersion is stamped on every extraction run
const WorkflowVersion = "1.0.0"

// ExtractionRunType names the extraction target of a run
type ExtractionRunType string

const (
	ExtractionRunDecisions   ExtractionRunType = "decisions"
	ExtractionRunActionItems ExtractionRunType = "action_items"
)

// ExtractionRunStatus represents the status of a Layer 3 extraction run
type ExtractionRunStatus string

const (
	ExtractionRunStatusRunning   ExtractionRunStatus = "running"
	ExtractionRunStatusCompleted ExtractionRunStatus = "completed"
	ExtractionRunStatusFailed    ExtractionRunStatus = "failed"
)

// ExtractionRun records one Generator → Matcher → QA pass over a transcript
type ExtractionRun struct {
	ID                     uuid.UUID             `json:"id" gorm:"type:uuid;primaryKey"`
	OrgID                  uuid.UUID             `json:"org_id" gorm:"type:uuid;not null;index"`
	MeetingRef             string                `json:"meeting_ref" gorm:"type:varchar(255);index"`
	NormalizedTranscriptID uuid.UUID             `json:"normalized_transcript_id" gorm:"type:uuid;not null;index"`
	CorrelationID          string                `json:"correlation_id" gorm:"type:varchar(100);index"`
	RunType                ExtractionRunType     `json:"run_type" gorm:"type:varchar(50);not null"`
	QAGoal                 string                `json:"qa_goal" gorm:"type:varchar(50);not null"`
	Status                 ExtractionRunStatus   `json:"status" gorm:"type:varchar(50);not null;index"`
	WorkflowVersion        string                `json:"workflow_version" gorm:"type:varchar(20)"`
	ItemsExtracted         int                   `json:"items_extracted"`
	ItemsPassed            int                   `json:"items_passed"`
	ItemsRejected          int                   `json:"items_rejected"`
	StartedAt              time.Time             `json:"started_at"`
	CompletedAt            *time.Time            `json:"completed_at,omitempty"`
	LastError              *string               `json:"last_error,omitempty" gorm:"type:text"`
	Metadata               ExtractionRunMetadata `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt              time.Time             `json:"created_at" gorm:"autoCreateTime"`
}

// ExtractionRunMetadata stores additional run details
type ExtractionRunMetadata struct {
	GeneratorModel string `json:"generator_model,omitempty"`
	MatcherModel   string `json:"matcher_model,omitempty"`
	QAModel        string `json:"qa_model,omitempty"`
	SegmentCount   int    `json:"segment_count,omitempty"`
	DurationMs     int64  `json:"duration_ms,omitempty"`
}

// Scan implements sql.Scanner interface for GORM
func (m *ExtractionRunMetadata) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported metadata type %T", value)
	}
}

// Value implements driver.Valuer interface for GORM
func (m ExtractionRunMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// NewExtractionRun creates a running extraction run
func NewExtractionRun(orgID, normalizedID uuid.UUID, meetingRef string, runType ExtractionRunType, qaGoal, correlationID string) *ExtractionRun {
	return &ExtractionRun{
		ID:                     uuid.New(),
		OrgID:                  orgID,
		MeetingRef:             meetingRef,
		NormalizedTranscriptID: normalizedID,
		CorrelationID:          correlationID,
		RunType:                runType,
		QAGoal:                 qaGoal,
		Status:                 ExtractionRunStatusRunning,
		WorkflowVersion:        WorkflowVersion,
		StartedAt:              time.Now().UTC(),
		CreatedAt:              time.Now().UTC(),
	}
}

// MarkAsCompleted records the final counts
func (r *ExtractionRun) MarkAsCompleted(extracted, passed, rejected int) {
	r.Status = ExtractionRunStatusCompleted
	r.ItemsExtracted = extracted
	r.ItemsPassed = passed
	r.ItemsRejected = rejected
	now := time.Now().UTC()
	r.CompletedAt = &now
	r.Metadata.DurationMs = now.Sub(r.StartedAt).Milliseconds()
}

// MarkAsFailed records the failure reason
func (r *ExtractionRun) MarkAsFailed(errMsg string) {
	r.Status = ExtractionRunStatusFailed
	r.LastError = &errMsg
	now := time.Now().UTC()
	r.CompletedAt = &now
	r.Metadata.DurationMs = now.Sub(r.StartedAt).Milliseconds()
}

// TableName specifies the table name for GORM
func (ExtractionRun) TableName() string {
	return "extraction_runs"
}
