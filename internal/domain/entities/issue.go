package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// IssueSeverity is warning or critical
type IssueSeverity string

const (
	IssueSeverityWarning  IssueSeverity = "warning"
	IssueSeverityCritical IssueSeverity = "critical"
)

// IssueType classifies data-quality and fabrication concerns
type IssueType string

const (
	IssueTypeLowConfidence       IssueType = "low_confidence"
	IssueTypeMissingData         IssueType = "missing_data"
	IssueTypeFabricationRisk     IssueType = "fabrication_risk"
	IssueTypeQAFailed            IssueType = "qa_failed"
	IssueTypeFabricationDetected IssueType = "fabrication_detected"
	IssueTypeLowTraceability     IssueType = "low_traceability"
	IssueTypeGenerationFailed    IssueType = "generation_failed"
	IssueTypeWorkflowError       IssueType = "workflow_error"
)

// Issue is an append-only concern raised during processing. It never blocks a run.
type Issue struct {
	ID            uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	OrgID         uuid.UUID         `json:"org_id" gorm:"type:uuid;not null;index"`
	CorrelationID string            `json:"correlation_id" gorm:"type:varchar(100);index"`
	Layer         string            `json:"layer" gorm:"type:varchar(50)"`
	ResourceType  string            `json:"resource_type" gorm:"type:varchar(100)"`
	ResourceID    string            `json:"resource_id" gorm:"type:varchar(100);index"`
	Type          IssueType         `json:"type" gorm:"type:varchar(50);not null;index"`
	Severity      IssueSeverity     `json:"severity" gorm:"type:varchar(20);not null"`
	Description   string            `json:"description" gorm:"type:text"`
	Evidence      datatypes.JSONMap `json:"evidence,omitempty"`
	CreatedAt     time.Time         `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (Issue) TableName() string {
	return "issues"
}

// NewIssue creates an issue with no resource attached yet
func NewIssue(issueType IssueType, severity IssueSeverity, description string) *Issue {
	return &Issue{
		ID:          uuid.New(),
		Type:        issueType,
		Severity:    severity,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// WithEvidence attaches a key/value to the issue evidence
func (i *Issue) WithEvidence(key string, value interface{}) *Issue {
	if i.Evidence == nil {
		i.Evidence = datatypes.JSONMap{}
	}
	i.Evidence[key] = value
	return i
}

// IsCritical reports whether the issue is critical
func (i *Issue) IsCritical() bool {
	return i.Severity == IssueSeverityCritical
}
