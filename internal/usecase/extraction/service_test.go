package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/johnquangdev/meeting-intelligence/errors"
	"github.com/johnquangdev/meeting-intelligence/internal/adapter/repository"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/database"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/audit"
	ucerrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
)

type fixture struct {
	normalized *repository.NormalizedTranscriptRepository
	runs       *repository.ExtractionRepository
	evidence   *repository.EvidenceRepository
	issues     *repository.IssueRepository
	audits     *repository.AuditLogRepository
	recorder   *audit.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewSQLiteDB(":memory:", nil, nil)
	if err != nil {
		t.Fatalf("NewSQLiteDB: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	if _, err := database.Migrate(db, nil); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	f := &fixture{
		normalized: repository.NewNormalizedTranscriptRepository(db),
		runs:       repository.NewExtractionRepository(db),
		evidence:   repository.NewEvidenceRepository(db),
		issues:     repository.NewIssueRepository(db),
		audits:     repository.NewAuditLogRepository(db),
	}
	f.recorder = audit.NewRecorder(f.issues, f.audits, nil)
	return f
}

func (f *fixture) service(g Generator) *Service {
	return NewService(f.normalized, f.runs, f.evidence, g, f.recorder, nil)
}

// seed stores a normalized transcript with one segment per text
func (f *fixture) seed(t *testing.T, orgID uuid.UUID, meetingRef string, texts ...string) *entities.NormalizedTranscript {
	t.Helper()
	raw := &entities.RawTranscript{ID: uuid.New(), SHA256Hash: strings.Repeat("a", 64)}
	n := entities.NewNormalizedTranscript(raw, orgID, meetingRef, "meeting_minutes")
	n.RetentionUntil = time.Now().Add(24 * time.Hour)
	for i, text := range texts {
		n.Segments = append(n.Segments, entities.NormalizedSegment{
			Sequence:   i,
			SpeakerRaw: "SPEAKER_0",
			Text:       text,
			PIITagIDs:  []uuid.UUID{},
		})
	}
	if err := f.normalized.Create(context.Background(), n); err != nil {
		t.Fatalf("Create normalized: %v", err)
	}
	return n
}

type stubGenerator struct {
	candidates []Candidate
	err        error
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) Generate(context.Context, Target, []entities.NormalizedSegment) ([]Candidate, error) {
	return g.candidates, g.err
}

func TestExtractDecisionAndOwnedActionItemFromOneSegment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID := uuid.New()
	f.seed(t, orgID, "weekly-sync", "We decided to ship on Friday. Bob will own the release notes.")
	svc := f.service(nil)

	decisions, err := svc.ExtractDecisions(ctx, ExtractRequest{MeetingRef: "weekly-sync", OrgID: orgID})
	if err != nil {
		t.Fatalf("ExtractDecisions: %v", err)
	}
	if len(decisions) != 1 || decisions[0].Text != "ship on Friday" {
		t.Fatalf("unexpected decisions: %+v", decisions)
	}
	if !decisions[0].QAPassed || decisions[0].TraceabilityScore != 1 {
		t.Fatalf("decision not approved with full traceability: %+v", decisions[0])
	}

	items, err := svc.ExtractActionItems(ctx, ExtractRequest{MeetingRef: "weekly-sync", OrgID: orgID, CorrelationID: "corr-actions"})
	if err != nil {
		t.Fatalf("ExtractActionItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one action item, got %+v", items)
	}
	item := items[0]
	if item.Title != "own the release notes" || item.OwnerName == nil || *item.OwnerName != "Bob" {
		t.Fatalf("unexpected action item: %+v", item)
	}
	if item.OwnerEmail != nil || item.DueDate != nil {
		t.Fatal("fields absent from the transcript must stay nil")
	}

	pointers, err := f.evidence.ListByRunID(ctx, item.ExtractionRunID)
	if err != nil {
		t.Fatalf("ListByRunID: %v", err)
	}
	if len(pointers) != 2 {
		t.Fatalf("expected evidence for title and owner, got %d", len(pointers))
	}
	for _, p := range pointers {
		if !strings.Contains(p.Quote, "Bob will own the release notes") {
			t.Fatalf("quote does not contain the statement: %q", p.Quote)
		}
	}

	run, err := f.runs.GetRunByID(ctx, item.ExtractionRunID)
	if err != nil || run == nil {
		t.Fatalf("GetRunByID: %v", err)
	}
	if run.Status != entities.ExtractionRunStatusCompleted || run.ItemsPassed != 1 || run.ItemsRejected != 0 {
		t.Fatalf("unexpected run: %+v", run)
	}
	entries, _ := f.audits.ListByCorrelationID(ctx, "corr-actions")
	if len(entries) != 1 || entries[0].Action != entities.AuditActionLayer3Extract {
		t.Fatalf("expected one layer3_extract audit entry, got %+v", entries)
	}
}

func TestOwnerWithoutEvidenceIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID := uuid.New()
	n := f.seed(t, orgID, "m1", "Someone should own the release notes.")

	c := NewCandidate(TargetActionItems, 0.9).
		Set(FieldTitle, "own the release notes").
		Set(FieldOwnerName, "Alice")
	svc := f.service(&stubGenerator{candidates: []Candidate{c}})

	items, err := svc.ExtractActionItems(ctx, ExtractRequest{MeetingRef: n.ID.String(), OrgID: orgID, CorrelationID: "corr-alice"})
	if err != nil {
		t.Fatalf("ExtractActionItems: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("fabricated owner must not be approved: %+v", items)
	}

	issues, _ := f.issues.ListByCorrelationID(ctx, "corr-alice")
	var rejection *entities.Issue
	for i := range issues {
		if issues[i].Type == entities.IssueTypeFabricationDetected {
			rejection = &issues[i]
		}
	}
	if rejection == nil {
		t.Fatalf("expected fabrication_detected issue, got %+v", issues)
	}
	if !strings.Contains(rejection.Description, FieldOwnerName) {
		t.Fatalf("issue must name owner_name: %q", rejection.Description)
	}

	entries, _ := f.audits.ListByCorrelationID(ctx, "corr-alice")
	if len(entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(entries))
	}
	run, _ := f.runs.GetRunByID(ctx, uuid.MustParse(entries[0].ResourceID))
	if run == nil || run.ItemsRejected != 1 || run.ItemsPassed != 0 {
		t.Fatalf("unexpected run counts: %+v", run)
	}
	pointers, _ := f.evidence.ListByRunID(ctx, run.ID)
	if len(pointers) != 1 || pointers[0].TargetField != FieldTitle {
		t.Fatalf("evidence of rejected drafts must be kept: %+v", pointers)
	}
}

func TestApprovedItemsQuoteEverySensitiveValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID := uuid.New()
	f.seed(t, orgID, "m2",
		"Carol will send the deck to carol@example.com by 2025-03-01.",
		"Dan to book the venue. We will think about catering.",
	)

	items, err := f.service(nil).ExtractActionItems(ctx, ExtractRequest{MeetingRef: "m2", OrgID: orgID})
	if err != nil {
		t.Fatalf("ExtractActionItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected two action items, got %+v", items)
	}
	if items[0].OwnerEmail == nil || *items[0].OwnerEmail != "carol@example.com" || items[0].DueDate == nil || *items[0].DueDate != "2025-03-01" {
		t.Fatalf("literal email and date not captured: %+v", items[0])
	}

	pointers, _ := f.evidence.ListByRunID(ctx, items[0].ExtractionRunID)
	byID := make(map[uuid.UUID]entities.EvidencePointer, len(pointers))
	for _, p := range pointers {
		byID[p.ID] = p
	}
	for _, item := range items {
		for _, value := range []*string{item.OwnerName, item.OwnerEmail, item.DueDate} {
			if value == nil {
				continue
			}
			found := false
			for _, id := range item.EvidenceIDs {
				if strings.Contains(strings.ToLower(byID[id].Quote), strings.ToLower(*value)) {
					found = true
				}
			}
			if !found {
				t.Fatalf("value %q of %q has no attached quote", *value, item.Title)
			}
		}
	}
}

func TestGeneratorFailureMarksRunFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID := uuid.New()
	f.seed(t, orgID, "m3", "We agreed to hire two engineers.")

	svc := f.service(&stubGenerator{err: errors.New("completion endpoint returned status 503")})
	_, err := svc.ExtractDecisions(ctx, ExtractRequest{MeetingRef: "m3", OrgID: orgID, CorrelationID: "corr-fail"})
	if !errors.Is(err, ucerrors.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}

	issues, _ := f.issues.ListByCorrelationID(ctx, "corr-fail")
	if len(issues) != 1 || issues[0].Type != entities.IssueTypeGenerationFailed {
		t.Fatalf("expected generation_failed issue, got %+v", issues)
	}
	run, _ := f.runs.GetRunByID(ctx, uuid.MustParse(issues[0].ResourceID))
	if run == nil || run.Status != entities.ExtractionRunStatusFailed || run.LastError == nil {
		t.Fatalf("run not recorded as failed: %+v", run)
	}
	entries, _ := f.audits.ListByCorrelationID(ctx, "corr-fail")
	if len(entries) != 1 || entries[0].Success {
		t.Fatalf("expected one unsuccessful audit entry, got %+v", entries)
	}
}

func TestQAGoalDecidesPartialTraceability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID := uuid.New()
	f.seed(t, orgID, "m4", "We decided to move the launch.")

	c := NewCandidate(TargetDecisions, 0.7).
		Set(FieldDecision, "move the launch").
		Set(FieldRationale, "supplier delays")

	strict, err := f.service(&stubGenerator{candidates: []Candidate{c}}).
		ExtractDecisions(ctx, ExtractRequest{MeetingRef: "m4", OrgID: orgID, QAGoal: "zero_hallucinations"})
	if err != nil {
		t.Fatalf("ExtractDecisions: %v", err)
	}
	if len(strict) != 0 {
		t.Fatal("strict goal must reject traceability 0.5")
	}

	recall, err := f.service(&stubGenerator{candidates: []Candidate{c}}).
		ExtractDecisions(ctx, ExtractRequest{MeetingRef: "m4", OrgID: orgID, QAGoal: "maximize_recall", CorrelationID: "corr-recall"})
	if err != nil {
		t.Fatalf("ExtractDecisions: %v", err)
	}
	if len(recall) != 1 || recall[0].TraceabilityScore != 0.5 {
		t.Fatalf("maximize_recall should approve: %+v", recall)
	}
	issues, _ := f.issues.ListByCorrelationID(ctx, "corr-recall")
	if len(issues) != 1 || issues[0].Type != entities.IssueTypeLowTraceability || issues[0].IsCritical() {
		t.Fatalf("expected a low_traceability warning, got %+v", issues)
	}
}

func TestExtractRequestErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID := uuid.New()
	svc := f.service(nil)

	_, err := svc.ExtractDecisions(ctx, ExtractRequest{MeetingRef: "missing", OrgID: orgID})
	if apperrors.CodeOf(err) != apperrors.ErrorCode_NOT_FOUND || !errors.Is(err, ucerrors.ErrNormalizedTranscriptNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}

	f.seed(t, orgID, "m5", "We decided to wait.")
	_, err = svc.ExtractDecisions(ctx, ExtractRequest{MeetingRef: "m5", OrgID: orgID, QAGoal: "be_creative"})
	if apperrors.CodeOf(err) != apperrors.ErrorCode_INVALID_ARGUMENT || !errors.Is(err, entities.ErrUnknownQAGoal) {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}

	_, err = svc.ExtractDecisions(ctx, ExtractRequest{MeetingRef: "m5"})
	if apperrors.CodeOf(err) != apperrors.ErrorCode_INVALID_ARGUMENT {
		t.Fatalf("missing org must be rejected, got %v", err)
	}
}

func TestTranscriptOfAnotherOrgIsNotResolved(t *testing.T) {
	f := newFixture(t)
	n := f.seed(t, uuid.New(), "shared-ref", "We decided to ship.")

	_, err := f.service(nil).ExtractDecisions(context.Background(), ExtractRequest{MeetingRef: n.ID.String(), OrgID: uuid.New()})
	if apperrors.CodeOf(err) != apperrors.ErrorCode_NOT_FOUND {
		t.Fatalf("expected NOT_FOUND across orgs, got %v", err)
	}
}
