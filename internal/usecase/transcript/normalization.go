package transcript

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/johnquangdev/meeting-intelligence/errors"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/audit"
	ucerrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/pii"
	"github.com/johnquangdev/meeting-intelligence/pkg/jobcontext"
	"github.com/johnquangdev/meeting-intelligence/pkg/validator"
)

const resourceNormalizedTranscript = "transcript_normalized"

// NormalizeRequest asks for a Layer 2 record derived from one raw transcript
type NormalizeRequest struct {
	RawTranscriptID uuid.UUID           `validate:"required"`
	OrgID           uuid.UUID           `validate:"required"`
	MeetingRef      string              `validate:"max=255"`
	Purpose         string              `validate:"required"`
	LegalBasis      entities.LegalBasis `validate:"omitempty,oneof=legitimate_interest consent contract legal_obligation"`
	CorrelationID   string
}

// NormalizationService turns raw transcripts into PII-tagged normalized ones (Layer 2)
type NormalizationService struct {
	raw        repositories.RawTranscriptRepository
	normalized repositories.NormalizedTranscriptRepository
	mappings   repositories.SpeakerMappingRepository
	tags       repositories.PIITagRepository
	detector   *pii.Detector
	retention  *RetentionPolicy
	recorder   *audit.Recorder
	validator  *validator.CustomValidator
	logger     *zap.Logger
	now        func() time.Time
}

// NewNormalizationService creates a new normalization service
func NewNormalizationService(
	raw repositories.RawTranscriptRepository,
	normalized repositories.NormalizedTranscriptRepository,
	mappings repositories.SpeakerMappingRepository,
	tags repositories.PIITagRepository,
	detector *pii.Detector,
	retention *RetentionPolicy,
	recorder *audit.Recorder,
	logger *zap.Logger,
) *NormalizationService {
	if detector == nil {
		detector = pii.NewDetector()
	}
	if retention == nil {
		retention = NewRetentionPolicy(nil)
	}
	return &NormalizationService{
		raw:        raw,
		normalized: normalized,
		mappings:   mappings,
		tags:       tags,
		detector:   detector,
		retention:  retention,
		recorder:   recorder,
		validator:  validator.New(),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Normalize builds and persists the normalized transcript and its PII tags
func (s *NormalizationService) Normalize(ctx context.Context, req NormalizeRequest) (uuid.UUID, error) {
	if err := s.validator.Validate(req); err != nil {
		return uuid.Nil, apperrors.ErrInvalidArgument("invalid normalize request").WithRaw(err)
	}
	correlationID := jobcontext.CorrelationIDOrNew(ctx, req.CorrelationID)

	raw, err := s.raw.GetByID(ctx, req.RawTranscriptID)
	if err != nil {
		return uuid.Nil, apperrors.ErrDBQueryFailed("select transcripts_raw", err)
	}
	// another org's transcript is reported exactly like a missing one
	if raw == nil || raw.OrgID != req.OrgID {
		return uuid.Nil, apperrors.ErrNotFound("raw transcript").
			WithRaw(ucerrors.ErrRawTranscriptNotFound).
			WithDetail("raw_transcript_id", req.RawTranscriptID.String())
	}

	normalized := entities.NewNormalizedTranscript(raw, req.OrgID, req.MeetingRef, req.Purpose)
	normalized.LegalBasis = req.LegalBasis
	if normalized.LegalBasis == "" {
		normalized.LegalBasis = entities.LegalBasisLegitimateInterest
	}

	speakerNames, err := s.confirmedSpeakers(ctx, req.OrgID, raw.Segments)
	if err != nil {
		return uuid.Nil, apperrors.ErrDBQueryFailed("select speaker_mappings", err)
	}

	var (
		tags   []*entities.PIITag
		union  []entities.PIIEntity
		cursor int
	)
	normalized.Segments = make([]entities.NormalizedSegment, len(raw.Segments))
	for i, seg := range raw.Segments {
		ns := entities.NormalizedSegment{
			Sequence:   i,
			SpeakerRaw: seg.SpeakerID,
			Text:       seg.Text,
			Start:      seg.Start,
			End:        seg.End,
			PIITagIDs:  []uuid.UUID{},
		}
		if name, ok := speakerNames[seg.SpeakerID]; ok {
			ns.SpeakerNormalized = &name
		}

		found := s.detector.Detect(seg.Text)
		ns.HasPII = len(found) > 0
		for _, e := range found {
			tag := entities.NewPIITag(req.OrgID, normalized.ID, i, e)
			tags = append(tags, tag)
			ns.PIITagIDs = append(ns.PIITagIDs, tag.ID)
		}

		// Segment offsets are relative to the segment; shift them into raw.Text.
		if seg.Text != "" {
			if idx := strings.Index(raw.Text[cursor:], seg.Text); idx >= 0 {
				base := cursor + idx
				for _, e := range found {
					union = append(union, e.Shift(base))
				}
				cursor = base + len(seg.Text)
			}
		}
		normalized.Segments[i] = ns
	}
	union = append(union, s.detector.Detect(raw.Text)...)

	normalized.RedactedText = pii.Redact(raw.Text, union)
	normalized.PIICount = len(tags)
	normalized.RetentionUntil = s.retention.Deadline(req.Purpose, s.now())

	if err := s.normalized.Create(ctx, normalized); err != nil {
		if s.logger != nil {
			s.logger.Error("❌ Failed to store normalized transcript",
				zap.String("raw_transcript_id", raw.ID.String()),
				zap.Error(err),
			)
		}
		return uuid.Nil, apperrors.ErrDBQueryFailed("insert transcripts_normalized", err)
	}
	if err := s.tags.CreateBatch(ctx, tags); err != nil {
		return uuid.Nil, apperrors.ErrDBQueryFailed("insert pii_tags", err)
	}

	if s.recorder != nil {
		s.recorder.Log(ctx, entities.NewAuditLogEntry(req.OrgID, correlationID, entities.AuditActionLayer2Normalize,
			resourceNormalizedTranscript, normalized.ID.String(), map[string]interface{}{
				"segment_count":   len(normalized.Segments),
				"pii_count":       normalized.PIICount,
				"purpose":         req.Purpose,
				"retention_until": normalized.RetentionUntil.Format(time.RFC3339),
			}))
	}

	if s.logger != nil {
		s.logger.Info("✅ Transcript normalized",
			zap.String("normalized_id", normalized.ID.String()),
			zap.String("raw_transcript_id", raw.ID.String()),
			zap.Int("segments", len(normalized.Segments)),
			zap.Int("pii_count", normalized.PIICount),
		)
	}
	return normalized.ID, nil
}

// confirmedSpeakers resolves display names for speakers with a confirmed mapping
func (s *NormalizationService) confirmedSpeakers(ctx context.Context, orgID uuid.UUID, segments []entities.RawSegment) (map[string]string, error) {
	names := make(map[string]string)
	if s.mappings == nil {
		return names, nil
	}
	checked := make(map[string]struct{})
	for _, seg := range segments {
		if _, ok := checked[seg.SpeakerID]; ok {
			continue
		}
		checked[seg.SpeakerID] = struct{}{}

		m, err := s.mappings.FindConfirmed(ctx, orgID, seg.SpeakerID)
		if err != nil {
			return nil, err
		}
		if m != nil && m.Confirmed {
			names[seg.SpeakerID] = m.DisplayName
		}
	}
	return names, nil
}
