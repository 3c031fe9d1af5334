package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/pkg/ai"
)

func segments(texts ...string) []entities.NormalizedSegment {
	out := make([]entities.NormalizedSegment, len(texts))
	for i, t := range texts {
		out[i] = entities.NormalizedSegment{Sequence: i, SpeakerRaw: "SPEAKER_0", Text: t}
	}
	return out
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Mail ann@example.com today. Is it done?  Yes!")
	want := []string{"Mail ann@example.com today", "Is it done", "Yes"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHeuristicGeneratorSkipsPronounOwners(t *testing.T) {
	g := NewHeuristicGenerator()
	got, err := g.Generate(context.Background(), TargetActionItems, segments(
		"We will revisit pricing. They to confirm later. Need to call the bank.",
		"Erin will draft the contract.",
	))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only Erin's item, got %d", len(got))
	}
	if owner, _ := got[0].Value(FieldOwnerName); owner != "Erin" {
		t.Fatalf("unexpected owner %q", owner)
	}
	if _, ok := got[0].Value(FieldDueDate); ok {
		t.Fatal("due date must stay nil when not stated")
	}
}

func TestHeuristicGeneratorDecisionPhrases(t *testing.T) {
	got, _ := NewHeuristicGenerator().Generate(context.Background(), TargetDecisions, segments(
		"After a long debate we decided to keep the old vendor. The team agreed to weekly demos.",
		"Nothing was decided.",
	))
	if len(got) != 2 {
		t.Fatalf("expected two decisions, got %d", len(got))
	}
	first, _ := got[0].Value(FieldDecision)
	second, _ := got[1].Value(FieldDecision)
	if first != "keep the old vendor" || second != "weekly demos" {
		t.Fatalf("unexpected decisions %q, %q", first, second)
	}
}

func TestMatcherQuoteWindowContainsHit(t *testing.T) {
	long := strings.Repeat("filler words here. ", 20) + "Frank will audit the logs." + strings.Repeat(" more filler text", 20)
	d := NewDraft(TargetActionItems, NewCandidate(TargetActionItems, 0.9).
		Set(FieldTitle, "audit the logs").
		Set(FieldOwnerName, "Frank"))

	if err := NewMatcher().Match(d, segments(long), uuid.New(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("Match: %v", err)
	}
	if d.State != StateEvidenceMatched || len(d.Evidence) != 2 {
		t.Fatalf("unexpected draft: state=%s evidence=%d", d.State, len(d.Evidence))
	}
	for _, e := range d.Evidence {
		if len(e.Quote) > entities.EvidenceMaxQuoteLength {
			t.Fatalf("quote longer than %d: %d", entities.EvidenceMaxQuoteLength, len(e.Quote))
		}
	}
	if !strings.Contains(d.Evidence[0].Quote, "audit the logs") || !strings.Contains(d.Evidence[1].Quote, "Frank") {
		t.Fatalf("quotes miss their hits: %q / %q", d.Evidence[0].Quote, d.Evidence[1].Quote)
	}
}

func TestMatcherQuoteSurvivesCaseFoldingWidthChanges(t *testing.T) {
	// U+212A KELVIN SIGN is three bytes and lowercases to a one-byte "k"
	text := strings.Repeat("\u212A", 150) + " filler " + strings.Repeat("x", 150) + ". Bob will own the release notes."
	d := NewDraft(TargetActionItems, NewCandidate(TargetActionItems, 0.9).
		Set(FieldTitle, "own the release notes").
		Set(FieldOwnerName, "Bob"))

	if err := NewMatcher().Match(d, segments(text), uuid.New(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(d.Evidence) != 2 {
		t.Fatalf("expected evidence for both fields, got %d", len(d.Evidence))
	}
	for _, e := range d.Evidence {
		if !strings.Contains(e.Quote, "Bob will own the release notes") {
			t.Fatalf("quote for %s drifted away from the hit: %q", e.TargetField, e.Quote)
		}
	}

	res, err := Review(d, GoalZeroHallucinations)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if !res.Approved || res.Fabrication {
		t.Fatalf("supported item rejected: %+v", res)
	}
}

func TestMatcherRecordsUnsupportedFields(t *testing.T) {
	d := NewDraft(TargetDecisions, NewCandidate(TargetDecisions, 0.8).
		Set(FieldDecision, "SHIP IT").
		Set(FieldImpact, "doubles revenue"))
	if err := NewMatcher().Match(d, segments("ok, ship it"), uuid.New(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(d.Unsupported) != 1 || d.Unsupported[0] != FieldImpact {
		t.Fatalf("unexpected unsupported fields %v", d.Unsupported)
	}
	if d.Traceability != 0.5 {
		t.Fatalf("traceability = %v", d.Traceability)
	}
}

func TestReviewWithoutEvidence(t *testing.T) {
	d := NewDraft(TargetDecisions, NewCandidate(TargetDecisions, 0.8).Set(FieldDecision, "invented"))
	if err := NewMatcher().Match(d, segments("unrelated"), uuid.New(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("Match: %v", err)
	}
	res, err := Review(d, GoalMaximizeRecall)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if res.Issues[0] != "No evidence pointers found" {
		t.Fatalf("unexpected issues %v", res.Issues)
	}
	if res.Score != 0.8 || !res.Approved || d.State != StateQAApproved {
		t.Fatalf("maximize_recall approves a score of 0.8 without fabrication: %+v", res)
	}
}

func TestDraftRejectsIllegalTransition(t *testing.T) {
	d := NewDraft(TargetDecisions, NewCandidate(TargetDecisions, 1))
	if _, err := Review(d, GoalZeroHallucinations); !errors.Is(err, entities.ErrInvalidStateTransition) {
		t.Fatalf("QA before matching must fail, got %v", err)
	}
}

func TestParseQAGoal(t *testing.T) {
	if g, _ := ParseQAGoal(""); g != GoalZeroHallucinations {
		t.Fatalf("default goal = %s", g)
	}
	if g, _ := ParseQAGoal("board_ready_summary"); !g.Strict() {
		t.Fatal("board_ready_summary is strict")
	}
	if _, err := ParseQAGoal("anything"); !errors.Is(err, entities.ErrUnknownQAGoal) {
		t.Fatalf("expected ErrUnknownQAGoal, got %v", err)
	}
}

type cannedCompleter struct {
	response string
	err      error
	prompts  []ai.Prompt
	schemas  []ai.Schema
}

func (c *cannedCompleter) Complete(_ context.Context, p ai.Prompt, s ai.Schema, out any) error {
	c.prompts = append(c.prompts, p)
	c.schemas = append(c.schemas, s)
	if c.err != nil {
		return c.err
	}
	return json.Unmarshal([]byte(c.response), out)
}

func TestCompletionGeneratorMapsNullsToNil(t *testing.T) {
	c := &cannedCompleter{response: `{"action_items":[{"title":"send the deck","description":null,"owner_name":"Gina","owner_email":null,"due_date":null,"priority":"high","confidence":0.9}]}`}
	g := NewCompletionGenerator(c, "llama-test", nil)

	got, err := g.Generate(context.Background(), TargetActionItems, segments("Gina will send the deck."))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d", len(got))
	}
	if v, _ := got[0].Value(FieldOwnerName); v != "Gina" {
		t.Fatalf("owner = %q", v)
	}
	for _, f := range []string{FieldDescription, FieldOwnerEmail, FieldDueDate} {
		if _, ok := got[0].Value(f); ok {
			t.Fatalf("%s should be nil", f)
		}
	}
	if c.schemas[0].Name != "action_items" || !strings.Contains(c.prompts[0].User, "[SPEAKER_0] Gina will send the deck.") {
		t.Fatalf("unexpected request: %+v", c.prompts[0])
	}
	if g.Name() != "llama-test" {
		t.Fatalf("Name = %s", g.Name())
	}
}

func TestCompletionGeneratorPropagatesSchemaViolation(t *testing.T) {
	c := &cannedCompleter{err: &ai.SchemaViolation{Schema: "decisions", Reason: "decode"}}
	_, err := NewCompletionGenerator(c, "", nil).Generate(context.Background(), TargetDecisions, segments("We decided to go."))
	if !ai.IsSchemaViolation(err) {
		t.Fatalf("expected schema violation, got %v", err)
	}
}
