package entities

import (
	"time"

	"github.com/google/uuid"
)

// PIIType is the category of a detected PII entity
type PIIType string

const (
	PIITypeEmail        PIIType = "email"
	PIITypePhone        PIIType = "phone"
	PIITypePersonName   PIIType = "person_name"
	PIITypeCompany      PIIType = "company"
	PIITypeAddress      PIIType = "address"
	PIITypeFinancialSSN PIIType = "financial_ssn"
	PIITypeFinancialCC  PIIType = "financial_cc"
	PIITypeHealth       PIIType = "health"
)

// Token returns the canonical redaction token for the category
func (t PIIType) Token() string {
	switch t {
	case PIITypeEmail:
		return "[EMAIL]"
	case PIITypePhone:
		return "[PHONE]"
	case PIITypePersonName:
		return "[NAME]"
	case PIITypeCompany:
		return "[COMPANY]"
	case PIITypeAddress:
		return "[ADDRESS]"
	case PIITypeFinancialSSN:
		return "[SSN]"
	case PIITypeFinancialCC:
		return "[CREDIT_CARD]"
	case PIITypeHealth:
		return "[HEALTH]"
	default:
		return "[REDACTED]"
	}
}

// Trainable reports whether text of this category may be used for model training.
// Financial identifiers and health data never are.
func (t PIIType) Trainable() bool {
	switch t {
	case PIITypeFinancialSSN, PIITypeFinancialCC, PIITypeHealth:
		return false
	default:
		return true
	}
}

// PIIEntity is a single detection with its character span in the scanned text
type PIIEntity struct {
	Type       PIIType `json:"type"`
	Text       string  `json:"text"`
	Token      string  `json:"token"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// Len returns the span length in bytes
func (e PIIEntity) Len() int {
	return e.End - e.Start
}

// Shift returns a copy of the entity moved by offset bytes
func (e PIIEntity) Shift(offset int) PIIEntity {
	e.Start += offset
	e.End += offset
	return e
}

// PIITag is the persisted record of one detected entity in a normalized transcript
type PIITag struct {
	ID                     uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OrgID                  uuid.UUID `json:"org_id" gorm:"type:uuid;not null;index"`
	NormalizedTranscriptID uuid.UUID `json:"normalized_transcript_id" gorm:"type:uuid;not null;index"`
	SegmentSequence        int       `json:"segment_sequence"`
	EntityType             PIIType   `json:"entity_type" gorm:"type:varchar(50);not null;index"`
	RawText                string    `json:"raw_text" gorm:"type:text"`
	RedactionToken         string    `json:"redaction_token" gorm:"type:varchar(50)"`
	StartOffset            int       `json:"start_offset"`
	EndOffset              int       `json:"end_offset"`
	Confidence             float64   `json:"confidence"`
	DetectionMethod        string    `json:"detection_method" gorm:"type:varchar(50)"`
	CanStore               bool      `json:"can_store"`
	CanTrain               bool      `json:"can_train"`
	CreatedAt              time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (PIITag) TableName() string {
	return "pii_tags"
}

// NewPIITag creates a tag for an entity found in the given segment
func NewPIITag(orgID, normalizedID uuid.UUID, sequence int, e PIIEntity) *PIITag {
	return &PIITag{
		ID:                     uuid.New(),
		OrgID:                  orgID,
		NormalizedTranscriptID: normalizedID,
		SegmentSequence:        sequence,
		EntityType:             e.Type,
		RawText:                e.Text,
		RedactionToken:         e.Token,
		StartOffset:            e.Start,
		EndOffset:              e.End,
		Confidence:             e.Confidence,
		DetectionMethod:        e.Method,
		CanStore:               true,
		CanTrain:               e.Type.Trainable(),
		CreatedAt:              time.Now().UTC(),
	}
}
