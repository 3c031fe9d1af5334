package entities

import (
	"time"

	"github.com/google/uuid"
)

// NormalizationVersion is stamped on every normalized transcript
const NormalizationVersion = "1.0.0"

// LegalBasis is the GDPR processing basis supplied by the caller
type LegalBasis string

const (
	LegalBasisLegitimateInterest LegalBasis = "legitimate_interest"
	LegalBasisConsent            LegalBasis = "consent"
	LegalBasisContract           LegalBasis = "contract"
	LegalBasisLegalObligation    LegalBasis = "legal_obligation"
)

// NormalizedSegment is a raw segment enriched with speaker and PII information
type NormalizedSegment struct {
	Sequence          int         `json:"sequence"`
	SpeakerRaw        string      `json:"speaker_raw"`
	SpeakerNormalized *string     `json:"speaker_normalized"` // nil unless a confirmed mapping exists
	Text              string      `json:"text"`
	Start             *float64    `json:"start"`
	End               *float64    `json:"end"`
	HasPII            bool        `json:"has_pii"`
	PIITagIDs         []uuid.UUID `json:"pii_tag_ids"`
}

// NormalizedTranscript is the Layer 2 record derived from exactly one raw transcript
type NormalizedTranscript struct {
	ID                   uuid.UUID           `json:"id" gorm:"type:uuid;primaryKey"`
	OrgID                uuid.UUID           `json:"org_id" gorm:"type:uuid;not null;index"`
	MeetingRef           string              `json:"meeting_ref" gorm:"type:varchar(255);index"`
	RawTranscriptID      uuid.UUID           `json:"raw_transcript_id" gorm:"type:uuid;not null;index"`
	SourceHash           string              `json:"source_hash" gorm:"type:varchar(64);not null"`
	Segments             []NormalizedSegment `json:"segments" gorm:"type:jsonb;serializer:json"`
	Purpose              string              `json:"purpose" gorm:"type:varchar(50);not null"`
	RetentionUntil       time.Time           `json:"retention_until" gorm:"not null"`
	LegalBasis           LegalBasis          `json:"legal_basis" gorm:"type:varchar(50)"`
	RedactedText         string              `json:"redacted_text" gorm:"type:text"`
	PIICount             int                 `json:"pii_count"`
	NormalizationVersion string              `json:"normalization_version" gorm:"type:varchar(20)"`
	CreatedAt            time.Time           `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (NormalizedTranscript) TableName() string {
	return "transcripts_normalized"
}

// NewNormalizedTranscript creates a normalized record bound to its raw source
func NewNormalizedTranscript(raw *RawTranscript, orgID uuid.UUID, meetingRef, purpose string) *NormalizedTranscript {
	return &NormalizedTranscript{
		ID:                   uuid.New(),
		OrgID:                orgID,
		MeetingRef:           meetingRef,
		RawTranscriptID:      raw.ID,
		SourceHash:           raw.SHA256Hash,
		Purpose:              purpose,
		NormalizationVersion: NormalizationVersion,
		CreatedAt:            time.Now().UTC(),
	}
}

// FullText joins segment texts with single spaces
func (n *NormalizedTranscript) FullText() string {
	total := 0
	for _, s := range n.Segments {
		total += len(s.Text) + 1
	}
	buf := make([]byte, 0, total)
	for i, s := range n.Segments {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, s.Text...)
	}
	return string(buf)
}

// SpeakerMapping is a human-confirmed association between an anonymous speaker id and a name
type SpeakerMapping struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OrgID       uuid.UUID `json:"org_id" gorm:"type:uuid;not null;uniqueIndex:idx_speaker_mapping_org_speaker"`
	SpeakerID   string    `json:"speaker_id" gorm:"type:varchar(100);not null;uniqueIndex:idx_speaker_mapping_org_speaker"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(255);not null"`
	Confirmed   bool      `json:"confirmed" gorm:"not null;default:false"`
	ConfirmedBy string    `json:"confirmed_by,omitempty" gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (SpeakerMapping) TableName() string {
	return "speaker_mappings"
}

// NewSpeakerMapping creates an unconfirmed mapping
func NewSpeakerMapping(orgID uuid.UUID, speakerID, displayName string) *SpeakerMapping {
	return &SpeakerMapping{
		ID:          uuid.New(),
		OrgID:       orgID,
		SpeakerID:   speakerID,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
}

// Confirm marks the mapping as verified by a human
func (m *SpeakerMapping) Confirm(by string) {
	m.Confirmed = true
	m.ConfirmedBy = by
}
