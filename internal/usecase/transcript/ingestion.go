package transcript

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/johnquangdev/meeting-intelligence/errors"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/audit"
	"github.com/johnquangdev/meeting-intelligence/pkg/jobcontext"
	"github.com/johnquangdev/meeting-intelligence/pkg/validator"
)

const (
	layer1                 = "layer1"
	resourceRawTranscript  = "transcript_raw"
	lowConfidenceThreshold = 0.7
)

var anonymousSpeakerID = regexp.MustCompile(`^SPEAKER_[A-Za-z0-9]+$`)

// IngestionService stores transcripts verbatim (Layer 1)
type IngestionService struct {
	raw       repositories.RawTranscriptRepository
	recorder  *audit.Recorder
	validator *validator.CustomValidator
	logger    *zap.Logger
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(raw repositories.RawTranscriptRepository, recorder *audit.Recorder, logger *zap.Logger) *IngestionService {
	return &IngestionService{
		raw:       raw,
		recorder:  recorder,
		validator: validator.New(),
		logger:    logger,
	}
}

// Ingest persists the input unchanged and returns the new transcript id.
// Data-quality problems are recorded as issues and never fail the call.
func (s *IngestionService) Ingest(ctx context.Context, in entities.RawTranscriptInput, correlationID string) (uuid.UUID, error) {
	if err := s.validator.Validate(in); err != nil {
		return uuid.Nil, apperrors.ErrInvalidArgument("invalid raw transcript input").WithRaw(err)
	}
	correlationID = jobcontext.CorrelationIDOrNew(ctx, correlationID)

	hash, err := ComputeHash(in.Text, in.Segments)
	if err != nil {
		return uuid.Nil, apperrors.ErrInternal(err)
	}

	transcript := entities.NewRawTranscript(in, hash)

	issues := ValidateInput(in)
	if len(issues) > 0 && s.recorder != nil {
		s.recorder.RaiseIssues(ctx, audit.Scope{
			OrgID:         in.OrgID,
			CorrelationID: correlationID,
			Layer:         layer1,
			ResourceType:  resourceRawTranscript,
			ResourceID:    transcript.ID.String(),
		}, issues...)
	}

	if err := s.raw.Create(ctx, transcript); err != nil {
		if s.logger != nil {
			s.logger.Error("❌ Failed to store raw transcript",
				zap.String("correlation_id", correlationID),
				zap.Error(err),
			)
		}
		return uuid.Nil, apperrors.ErrDBQueryFailed("insert transcripts_raw", err)
	}

	if s.recorder != nil {
		s.recorder.Log(ctx, entities.NewAuditLogEntry(in.OrgID, correlationID, entities.AuditActionLayer1Ingest,
			resourceRawTranscript, transcript.ID.String(), map[string]interface{}{
				"provider":      in.SourceProvider,
				"speaker_count": transcript.SpeakerCount,
				"text_length":   len(in.Text),
				"sha256_hash":   hash,
			}))
	}

	if s.logger != nil {
		s.logger.Info("✅ Raw transcript ingested",
			zap.String("transcript_id", transcript.ID.String()),
			zap.String("provider", in.SourceProvider),
			zap.Int("segments", len(in.Segments)),
			zap.Int("issues", len(issues)),
		)
	}
	return transcript.ID, nil
}

// ComputeHash returns the hex sha256 of text followed by each segment's JSON, joined by "|"
func ComputeHash(text string, segments []entities.RawSegment) (string, error) {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		b, err := json.Marshal(seg)
		if err != nil {
			return "", fmt.Errorf("failed to encode segment %d: %w", i, err)
		}
		parts[i] = string(b)
	}
	sum := sha256.Sum256([]byte(text + "|" + strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:]), nil
}

// ValidateInput returns the data-quality issues found in the input
func ValidateInput(in entities.RawTranscriptInput) []*entities.Issue {
	var issues []*entities.Issue

	switch {
	case in.Confidence < 0 || in.Confidence > 1:
		issues = append(issues, entities.NewIssue(entities.IssueTypeLowConfidence, entities.IssueSeverityWarning,
			fmt.Sprintf("Overall confidence %.2f outside [0, 1]", in.Confidence)).
			WithEvidence("confidence", in.Confidence))
	case in.Confidence < lowConfidenceThreshold:
		issues = append(issues, entities.NewIssue(entities.IssueTypeLowConfidence, entities.IssueSeverityWarning,
			fmt.Sprintf("Overall confidence %.2f below %.1f", in.Confidence, lowConfidenceThreshold)).
			WithEvidence("confidence", in.Confidence))
	}

	if strings.TrimSpace(in.SourceProvider) == "" {
		issues = append(issues, entities.NewIssue(entities.IssueTypeMissingData, entities.IssueSeverityWarning,
			"Source provider is missing"))
	}

	if strings.TrimSpace(in.Text) == "" {
		issues = append(issues, entities.NewIssue(entities.IssueTypeMissingData, entities.IssueSeverityCritical,
			"Transcript text is empty"))
	}

	flagged := make(map[string]struct{})
	for i, seg := range in.Segments {
		if !seg.HasTimestamps() {
			issues = append(issues, entities.NewIssue(entities.IssueTypeMissingData, entities.IssueSeverityWarning,
				fmt.Sprintf("Segment %d missing timestamps", i)).
				WithEvidence("segment_index", i).
				WithEvidence("speaker_id", seg.SpeakerID))
		}
		if anonymousSpeakerID.MatchString(seg.SpeakerID) {
			continue
		}
		if _, done := flagged[seg.SpeakerID]; done {
			continue
		}
		flagged[seg.SpeakerID] = struct{}{}
		issues = append(issues, entities.NewIssue(entities.IssueTypeFabricationRisk, entities.IssueSeverityCritical,
			fmt.Sprintf("Speaker ID '%s' is not an anonymous label", seg.SpeakerID)).
			WithEvidence("speaker_id", seg.SpeakerID))
	}

	return issues
}
