package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Audit actions written by the pipeline
const (
	AuditActionLayer1Ingest    = "layer1_ingest"
	AuditActionLayer2Normalize = "layer2_normalize"
	AuditActionLayer3Extract   = "layer3_extract"
	AuditActionTrainingExport  = "training_export"
	AuditActionRetentionPurge  = "retention_purge"
	AuditActionDocumentProcess = "document_process"
)

// AuditLogEntry is an append-only record of one state-changing operation
type AuditLogEntry struct {
	ID            uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	Timestamp     time.Time         `json:"timestamp" gorm:"not null;index"`
	CorrelationID string            `json:"correlation_id" gorm:"type:varchar(100);index"`
	OrgID         uuid.UUID         `json:"org_id" gorm:"type:uuid;not null;index"`
	Action        string            `json:"action" gorm:"type:varchar(64);not null;index"`
	ResourceType  string            `json:"resource_type" gorm:"type:varchar(100);not null"`
	ResourceID    string            `json:"resource_id" gorm:"type:varchar(100);index"`
	Success       bool              `json:"success"`
	Changes       datatypes.JSONMap `json:"changes,omitempty"`
}

// TableName specifies the table name for GORM
func (AuditLogEntry) TableName() string {
	return "audit_logs"
}

// NewAuditLogEntry creates a successful audit entry
func NewAuditLogEntry(orgID uuid.UUID, correlationID, action, resourceType, resourceID string, changes map[string]interface{}) *AuditLogEntry {
	return &AuditLogEntry{
		ID:            uuid.New(),
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		OrgID:         orgID,
		Action:        action,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		Success:       true,
		Changes:       datatypes.JSONMap(changes),
	}
}
