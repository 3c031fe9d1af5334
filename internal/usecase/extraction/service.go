package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/johnquangdev/meeting-intelligence/errors"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/audit"
	ucerrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
	"github.com/johnquangdev/meeting-intelligence/pkg/jobcontext"
	"github.com/johnquangdev/meeting-intelligence/pkg/validator"
)

const (
	layer3             = "layer3"
	resourceRun        = "extraction_run"
	resourceNormalized = "transcript_normalized"
)

// ExtractRequest selects the transcript and QA goal of a run.
// MeetingRef is either a normalized transcript id or a meeting reference,
// in which case the latest normalized transcript for it is used.
type ExtractRequest struct {
	MeetingRef    string    `validate:"required"`
	OrgID         uuid.UUID `validate:"required"`
	QAGoal        string
	CorrelationID string
}

// Service runs the Generator → Matcher → QA workflow (Layer 3)
type Service struct {
	normalized repositories.NormalizedTranscriptRepository
	runs       repositories.ExtractionRepository
	evidence   repositories.EvidenceRepository
	recorder   *audit.Recorder
	generator  Generator
	matcher    *Matcher
	validator  *validator.CustomValidator
	logger     *zap.Logger
}

// NewService creates the extraction service. A nil generator falls back to
// the heuristic one.
func NewService(
	normalized repositories.NormalizedTranscriptRepository,
	runs repositories.ExtractionRepository,
	evidence repositories.EvidenceRepository,
	generator Generator,
	recorder *audit.Recorder,
	logger *zap.Logger,
) *Service {
	if generator == nil {
		generator = NewHeuristicGenerator()
	}
	return &Service{
		normalized: normalized,
		runs:       runs,
		evidence:   evidence,
		recorder:   recorder,
		generator:  generator,
		matcher:    NewMatcher(),
		validator:  validator.New(),
		logger:     logger,
	}
}

// runOutcome is what a finished workflow hands to the per-target persistence
type runOutcome struct {
	run        *entities.ExtractionRun
	transcript *entities.NormalizedTranscript
	approved   []*Draft
}

// ExtractDecisions extracts and persists QA-approved decisions
func (s *Service) ExtractDecisions(ctx context.Context, req ExtractRequest) ([]entities.Decision, error) {
	var out []entities.Decision
	err := s.execute(ctx, req, TargetDecisions, func(o *runOutcome) error {
		decisions := make([]*entities.Decision, 0, len(o.approved))
		for _, d := range o.approved {
			text, _ := d.Candidate.Value(FieldDecision)
			decisions = append(decisions, &entities.Decision{
				ID:                     uuid.New(),
				OrgID:                  o.run.OrgID,
				MeetingRef:             o.transcript.MeetingRef,
				NormalizedTranscriptID: o.transcript.ID,
				ExtractionRunID:        o.run.ID,
				Text:                   text,
				Rationale:              d.Candidate.Fields[FieldRationale],
				Impact:                 d.Candidate.Fields[FieldImpact],
				Confidence:             d.Candidate.Confidence,
				QAPassed:               true,
				QAScore:                d.QA.Score,
				QAIssues:               d.QA.Issues,
				TraceabilityScore:      d.Traceability,
				GeneratorVersion:       entities.GeneratorVersion,
				EvidenceIDs:            evidenceIDs(d),
			})
		}
		if err := s.runs.CreateDecisions(ctx, decisions); err != nil {
			return apperrors.ErrDBQueryFailed("insert decisions", err)
		}
		out = make([]entities.Decision, len(decisions))
		for i, d := range decisions {
			out[i] = *d
		}
		return nil
	})
	return out, err
}

// ExtractActionItems extracts and persists QA-approved action items
func (s *Service) ExtractActionItems(ctx context.Context, req ExtractRequest) ([]entities.ActionItem, error) {
	var out []entities.ActionItem
	err := s.execute(ctx, req, TargetActionItems, func(o *runOutcome) error {
		items := make([]*entities.ActionItem, 0, len(o.approved))
		for _, d := range o.approved {
			title, _ := d.Candidate.Value(FieldTitle)
			items = append(items, &entities.ActionItem{
				ID:                     uuid.New(),
				OrgID:                  o.run.OrgID,
				MeetingRef:             o.transcript.MeetingRef,
				NormalizedTranscriptID: o.transcript.ID,
				ExtractionRunID:        o.run.ID,
				Title:                  title,
				Description:            d.Candidate.Fields[FieldDescription],
				OwnerName:              d.Candidate.Fields[FieldOwnerName],
				OwnerEmail:             d.Candidate.Fields[FieldOwnerEmail],
				DueDate:                d.Candidate.Fields[FieldDueDate],
				Priority:               d.Candidate.Fields[FieldPriority],
				Status:                 entities.ActionItemStatusOpen,
				Confidence:             d.Candidate.Confidence,
				QAPassed:               true,
				QAScore:                d.QA.Score,
				QAIssues:               d.QA.Issues,
				TraceabilityScore:      d.Traceability,
				GeneratorVersion:       entities.GeneratorVersion,
				EvidenceIDs:            evidenceIDs(d),
			})
		}
		if err := s.runs.CreateActionItems(ctx, items); err != nil {
			return apperrors.ErrDBQueryFailed("insert action_items", err)
		}
		out = make([]entities.ActionItem, len(items))
		for i, it := range items {
			out[i] = *it
		}
		return nil
	})
	return out, err
}

func (s *Service) execute(ctx context.Context, req ExtractRequest, target Target, persist func(*runOutcome) error) error {
	if err := s.validator.Validate(req); err != nil {
		return apperrors.ErrInvalidArgument("invalid extract request").WithRaw(err)
	}
	goal, err := ParseQAGoal(req.QAGoal)
	if err != nil {
		return apperrors.ErrInvalidArgument("unknown qa goal").WithRaw(err).WithDetail("qa_goal", req.QAGoal)
	}
	correlationID := jobcontext.CorrelationIDOrNew(ctx, req.CorrelationID)

	transcript, err := s.resolve(ctx, req.OrgID, req.MeetingRef, correlationID)
	if err != nil {
		return err
	}

	run := entities.NewExtractionRun(req.OrgID, transcript.ID, transcript.MeetingRef, target.RunType(), string(goal), correlationID)
	run.Metadata = entities.ExtractionRunMetadata{
		GeneratorModel: s.generator.Name(),
		MatcherModel:   s.matcher.Name(),
		QAModel:        qaName,
		SegmentCount:   len(transcript.Segments),
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return apperrors.ErrDBQueryFailed("insert extraction_runs", err)
	}
	scope := audit.Scope{
		OrgID:         req.OrgID,
		CorrelationID: correlationID,
		Layer:         layer3,
		ResourceType:  resourceRun,
		ResourceID:    run.ID.String(),
	}

	if s.logger != nil {
		s.logger.Info("🚀 Extraction started",
			zap.String("run_id", run.ID.String()),
			zap.String("target", string(target)),
			zap.String("qa_goal", string(goal)),
			zap.String("normalized_id", transcript.ID.String()),
			zap.String("correlation_id", correlationID),
		)
	}

	candidates, err := s.generator.Generate(ctx, target, transcript.Segments)
	if err != nil {
		s.raise(ctx, scope, entities.NewIssue(entities.IssueTypeGenerationFailed, entities.IssueSeverityCritical,
			fmt.Sprintf("Generator failed: %v", err)).
			WithEvidence("target", string(target)).
			WithEvidence("generator", s.generator.Name()))
		s.fail(ctx, run, scope, err)
		return apperrors.ErrProcessingFailed(fmt.Errorf("%w: %w", ucerrors.ErrGenerationFailed, err)).
			WithDetail("run_id", run.ID.String())
	}

	drafts, err := s.review(ctx, scope, run.ID, target, goal, candidates, transcript)
	if err != nil {
		s.raise(ctx, scope, entities.NewIssue(entities.IssueTypeWorkflowError, entities.IssueSeverityCritical,
			fmt.Sprintf("Extraction workflow failed: %v", err)))
		s.fail(ctx, run, scope, err)
		return apperrors.ErrInternal(err)
	}

	var pointers []*entities.EvidencePointer
	var approved []*Draft
	for _, d := range drafts {
		pointers = append(pointers, d.Evidence...)
		if d.State == StateQAApproved {
			approved = append(approved, d)
		}
	}
	if err := s.evidence.CreateBatch(ctx, pointers); err != nil {
		s.fail(ctx, run, scope, err)
		return apperrors.ErrDBQueryFailed("insert evidence_pointers", err)
	}
	if err := persist(&runOutcome{run: run, transcript: transcript, approved: approved}); err != nil {
		s.fail(ctx, run, scope, err)
		return err
	}

	rejected := len(drafts) - len(approved)
	run.MarkAsCompleted(len(drafts), len(approved), rejected)
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		return apperrors.ErrDBQueryFailed("update extraction_runs", err)
	}
	s.audit(ctx, run, scope, true, map[string]interface{}{
		"run_type":        string(run.RunType),
		"qa_goal":         run.QAGoal,
		"items_extracted": run.ItemsExtracted,
		"items_passed":    run.ItemsPassed,
		"items_rejected":  run.ItemsRejected,
		"evidence_count":  len(pointers),
	})

	if s.logger != nil {
		s.logger.Info("✅ Extraction completed",
			zap.String("run_id", run.ID.String()),
			zap.String("target", string(target)),
			zap.Int("extracted", run.ItemsExtracted),
			zap.Int("passed", run.ItemsPassed),
			zap.Int("rejected", run.ItemsRejected),
			zap.Int64("duration_ms", run.Metadata.DurationMs),
		)
	}
	return nil
}

// review moves every candidate through matching and QA and raises issues for
// rejected and weakly traceable drafts
func (s *Service) review(ctx context.Context, scope audit.Scope, runID uuid.UUID, target Target, goal QAGoal, candidates []Candidate, transcript *entities.NormalizedTranscript) ([]*Draft, error) {
	drafts := make([]*Draft, 0, len(candidates))
	for i, c := range candidates {
		d := NewDraft(target, c)
		if err := s.matcher.Match(d, transcript.Segments, scope.OrgID, runID, transcript.ID); err != nil {
			return nil, err
		}
		res, err := Review(d, goal)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)

		if res.LowTraceability {
			if s.logger != nil {
				s.logger.Warn("⚠️ Low traceability",
					zap.String("run_id", scope.ResourceID),
					zap.Int("candidate", i),
					zap.Float64("traceability", d.Traceability),
				)
			}
			s.raise(ctx, scope, entities.NewIssue(entities.IssueTypeLowTraceability, entities.IssueSeverityWarning,
				fmt.Sprintf("Traceability %.2f below %.2f", d.Traceability, traceabilityWarningLevel)).
				WithEvidence("candidate_index", i).
				WithEvidence("unsupported_fields", d.Unsupported))
		}
		if res.Approved {
			continue
		}

		issueType := entities.IssueTypeQAFailed
		if res.Fabrication && len(d.Evidence) > 0 {
			issueType = entities.IssueTypeFabricationDetected
		}
		s.raise(ctx, scope, entities.NewIssue(issueType, entities.IssueSeverityCritical,
			fmt.Sprintf("Candidate rejected by QA (%s): %s", goal, strings.Join(res.Issues, "; "))).
			WithEvidence("candidate_index", i).
			WithEvidence("qa_score", res.Score).
			WithEvidence("qa_issues", res.Issues).
			WithEvidence("fabricated_fields", res.FabricatedFields).
			WithEvidence("traceability", d.Traceability))
	}
	return drafts, nil
}

// resolve finds the normalized transcript by id, or the latest one for a meeting reference
func (s *Service) resolve(ctx context.Context, orgID uuid.UUID, ref, correlationID string) (*entities.NormalizedTranscript, error) {
	var (
		transcript *entities.NormalizedTranscript
		err        error
	)
	if id, perr := uuid.Parse(ref); perr == nil {
		transcript, err = s.normalized.GetByID(ctx, id)
		if transcript != nil && transcript.OrgID != orgID {
			transcript = nil
		}
	}
	if err == nil && transcript == nil {
		transcript, err = s.normalized.GetLatestByMeetingRef(ctx, orgID, ref)
	}
	if err != nil {
		return nil, apperrors.ErrDBQueryFailed("select transcripts_normalized", err)
	}
	if transcript == nil {
		s.raise(ctx, audit.Scope{OrgID: orgID, CorrelationID: correlationID, Layer: layer3, ResourceType: resourceNormalized, ResourceID: ref},
			entities.NewIssue(entities.IssueTypeMissingData, entities.IssueSeverityCritical, "Normalized transcript not found: "+ref))
		return nil, apperrors.ErrNotFound("normalized transcript").
			WithRaw(ucerrors.ErrNormalizedTranscriptNotFound).
			WithDetail("meeting_ref", ref)
	}
	return transcript, nil
}

func (s *Service) fail(ctx context.Context, run *entities.ExtractionRun, scope audit.Scope, cause error) {
	run.MarkAsFailed(cause.Error())
	if err := s.runs.UpdateRun(ctx, run); err != nil && s.logger != nil {
		s.logger.Error("❌ Failed to record failed extraction run",
			zap.String("run_id", run.ID.String()),
			zap.Error(err),
		)
	}
	s.audit(ctx, run, scope, false, map[string]interface{}{
		"run_type": string(run.RunType),
		"qa_goal":  run.QAGoal,
		"error":    cause.Error(),
	})
	if s.logger != nil {
		s.logger.Error("❌ Extraction failed",
			zap.String("run_id", run.ID.String()),
			zap.String("correlation_id", scope.CorrelationID),
			zap.Error(cause),
		)
	}
}

func (s *Service) audit(ctx context.Context, run *entities.ExtractionRun, scope audit.Scope, success bool, changes map[string]interface{}) {
	if s.recorder == nil {
		return
	}
	entry := entities.NewAuditLogEntry(run.OrgID, scope.CorrelationID, entities.AuditActionLayer3Extract, resourceRun, run.ID.String(), changes)
	entry.Success = success
	s.recorder.Log(ctx, entry)
}

func (s *Service) raise(ctx context.Context, scope audit.Scope, issues ...*entities.Issue) {
	if s.recorder != nil {
		s.recorder.RaiseIssues(ctx, scope, issues...)
	}
}

func evidenceIDs(d *Draft) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(d.Evidence))
	for _, e := range d.Evidence {
		ids = append(ids, e.ID)
	}
	return ids
}
