package extraction

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/pkg/ai"
)

const generatorSystemPrompt = `You extract structured facts from meeting transcripts.

Rules:
- Use only information stated in the transcript. Never infer, guess or complete.
- If an owner, email, due date or company is not literally stated, return null for it.
- Copy values verbatim from the transcript wherever possible.
- Relative dates such as "next Friday" stay as written; do not convert them.
- Confidence is a number between 0 and 1 reflecting how explicit the statement is.`

type decisionsPayload struct {
	Decisions []decisionPayload `json:"decisions" validate:"dive"`
}

type decisionPayload struct {
	Decision   string  `json:"decision" validate:"required"`
	Rationale  *string `json:"rationale"`
	Impact     *string `json:"impact"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

type actionItemsPayload struct {
	ActionItems []actionItemPayload `json:"action_items" validate:"dive"`
}

type actionItemPayload struct {
	Title       string  `json:"title" validate:"required"`
	Description *string `json:"description"`
	OwnerName   *string `json:"owner_name"`
	OwnerEmail  *string `json:"owner_email"`
	DueDate     *string `json:"due_date"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// CompletionGenerator asks a Completer for candidates under a strict JSON schema
type CompletionGenerator struct {
	completer ai.Completer
	model     string
	logger    *zap.Logger
}

// NewCompletionGenerator creates a generator backed by a completion capability.
// model is recorded on extraction runs.
func NewCompletionGenerator(completer ai.Completer, model string, logger *zap.Logger) *CompletionGenerator {
	return &CompletionGenerator{completer: completer, model: model, logger: logger}
}

func (g *CompletionGenerator) Name() string {
	if g.model == "" {
		return "completion"
	}
	return g.model
}

func (g *CompletionGenerator) Generate(ctx context.Context, target Target, segments []entities.NormalizedSegment) ([]Candidate, error) {
	if len(segments) == 0 {
		return nil, nil
	}
	prompt := ai.Prompt{System: generatorSystemPrompt, User: buildGeneratorPrompt(target, segments), Temperature: 0}

	switch target {
	case TargetDecisions:
		var payload decisionsPayload
		if err := g.completer.Complete(ctx, prompt, decisionsSchema(), &payload); err != nil {
			return nil, fmt.Errorf("generate decisions: %w", err)
		}
		out := make([]Candidate, 0, len(payload.Decisions))
		for _, d := range payload.Decisions {
			c := NewCandidate(TargetDecisions, d.Confidence).Set(FieldDecision, d.Decision)
			c = setOptional(c, FieldRationale, d.Rationale)
			c = setOptional(c, FieldImpact, d.Impact)
			out = append(out, c)
		}
		g.logGenerated(target, len(out))
		return out, nil

	case TargetActionItems:
		var payload actionItemsPayload
		if err := g.completer.Complete(ctx, prompt, actionItemsSchema(), &payload); err != nil {
			return nil, fmt.Errorf("generate action items: %w", err)
		}
		out := make([]Candidate, 0, len(payload.ActionItems))
		for _, a := range payload.ActionItems {
			c := NewCandidate(TargetActionItems, a.Confidence).Set(FieldTitle, a.Title)
			c = setOptional(c, FieldDescription, a.Description)
			c = setOptional(c, FieldOwnerName, a.OwnerName)
			c = setOptional(c, FieldOwnerEmail, a.OwnerEmail)
			c = setOptional(c, FieldDueDate, a.DueDate)
			c = setOptional(c, FieldPriority, a.Priority)
			out = append(out, c)
		}
		g.logGenerated(target, len(out))
		return out, nil
	}
	return nil, fmt.Errorf("unknown extraction target %q", target)
}

func (g *CompletionGenerator) logGenerated(target Target, n int) {
	if g.logger != nil {
		g.logger.Info("🤖 Candidates generated",
			zap.String("target", string(target)),
			zap.String("model", g.Name()),
			zap.Int("count", n),
		)
	}
}

func setOptional(c Candidate, field string, v *string) Candidate {
	if v == nil {
		return c
	}
	return c.Set(field, *v)
}

func buildGeneratorPrompt(target Target, segments []entities.NormalizedSegment) string {
	var b strings.Builder
	switch target {
	case TargetDecisions:
		b.WriteString("Extract every decision made in this meeting.\n\n")
	case TargetActionItems:
		b.WriteString("Extract every action item assigned in this meeting.\n\n")
	}
	b.WriteString("TRANSCRIPT:\n")
	for _, seg := range segments {
		speaker := seg.SpeakerRaw
		if seg.SpeakerNormalized != nil {
			speaker = *seg.SpeakerNormalized
		}
		fmt.Fprintf(&b, "[%s] %s\n", speaker, seg.Text)
	}
	return b.String()
}

func nullableString() map[string]any {
	return map[string]any{"type": []any{"string", "null"}}
}

func decisionsSchema() ai.Schema {
	return ai.Schema{
		Name: "decisions",
		Definition: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []any{"decisions"},
			"properties": map[string]any{
				"decisions": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":                 "object",
						"additionalProperties": false,
						"required":             []any{"decision", "rationale", "impact", "confidence"},
						"properties": map[string]any{
							"decision":   map[string]any{"type": "string"},
							"rationale":  nullableString(),
							"impact":     nullableString(),
							"confidence": map[string]any{"type": "number"},
						},
					},
				},
			},
		},
	}
}

func actionItemsSchema() ai.Schema {
	return ai.Schema{
		Name: "action_items",
		Definition: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []any{"action_items"},
			"properties": map[string]any{
				"action_items": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":                 "object",
						"additionalProperties": false,
						"required":             []any{"title", "description", "owner_name", "owner_email", "due_date", "priority", "confidence"},
						"properties": map[string]any{
							"title":       map[string]any{"type": "string"},
							"description": nullableString(),
							"owner_name":  nullableString(),
							"owner_email": nullableString(),
							"due_date":    nullableString(),
							"priority": map[string]any{
								"type": []any{"string", "null"},
								"enum": []any{"low", "medium", "high", "urgent", nil},
							},
							"confidence": map[string]any{"type": "number"},
						},
					},
				},
			},
		},
	}
}
