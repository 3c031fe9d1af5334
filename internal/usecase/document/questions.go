package document

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/pkg/ai"
	"github.com/johnquangdev/meeting-intelligence/pkg/validator"
)

const questionSystemPrompt = `You are a due diligence expert. Generate specific, answerable questions from gaps, risks and discrepancies.

Each question must be specific and data-driven, reference the data point that triggered it and explain the risk.
Priorities: critical for deal-breakers, high for significant risks, medium for missing context, low for nice-to-have.
Categories: financial, technical, team, market, legal, product, competitive, operational.`

type questionsPayload struct {
	Questions []questionPayload `json:"questions"`
}

// Entries are checked one by one so a bad entry does not void the rest
type questionPayload struct {
	Question         string   `json:"question" validate:"required"`
	Category         string   `json:"category" validate:"oneof=financial technical team market legal product competitive operational"`
	Priority         string   `json:"priority" validate:"oneof=critical high medium low"`
	TriggeredBy      string   `json:"triggered_by" validate:"required"`
	RiskCategory     *string  `json:"risk_category"`
	SuggestedSources []string `json:"suggested_sources"`
	Context          *string  `json:"context"`
}

// QuestionGenerator drafts follow-up questions from the analysis and research
type QuestionGenerator struct {
	completer ai.Completer
	validator *validator.CustomValidator
	logger    *zap.Logger
}

// NewQuestionGenerator creates a question generator
func NewQuestionGenerator(completer ai.Completer, logger *zap.Logger) *QuestionGenerator {
	return &QuestionGenerator{completer: completer, validator: validator.New(), logger: logger}
}

// Generate returns questions bucketed by priority. Invalid entries are skipped.
func (g *QuestionGenerator) Generate(ctx context.Context, analysis *entities.AnalysisResult, research []entities.ResearchResult, companyName string) (*entities.QuestionSet, error) {
	prompt := ai.Prompt{
		System:      questionSystemPrompt,
		User:        buildQuestionContext(analysis, research, companyName) + "\n\nGenerate 10-20 targeted due diligence questions.",
		Temperature: 0.3,
	}
	var payload questionsPayload
	if err := g.completer.Complete(ctx, prompt, questionsSchema(), &payload); err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	set := &entities.QuestionSet{
		Critical:       []entities.Question{},
		HighPriority:   []entities.Question{},
		MediumPriority: []entities.Question{},
		LowPriority:    []entities.Question{},
	}
	skipped := 0
	for _, q := range payload.Questions {
		if err := g.validator.Validate(q); err != nil {
			skipped++
			continue
		}
		set.Add(entities.Question{
			Question:         q.Question,
			Category:         entities.QuestionCategory(q.Category),
			Priority:         entities.QuestionPriority(q.Priority),
			TriggeredBy:      q.TriggeredBy,
			RiskCategory:     deref(q.RiskCategory),
			SuggestedSources: nonNil(q.SuggestedSources),
			Context:          deref(q.Context),
		})
	}
	if skipped > 0 && g.logger != nil {
		g.logger.Warn("⚠️ Skipped invalid questions", zap.Int("skipped", skipped))
	}
	return set, nil
}

func buildQuestionContext(analysis *entities.AnalysisResult, research []entities.ResearchResult, companyName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "COMPANY: %s\n\n=== DOCUMENT ANALYSIS ===\n", orUnknown(companyName))
	fmt.Fprintf(&b, "Classification: %s\nOverall Confidence: %.2f\nData Completeness: %.2f\n\nKEY METRICS:\n",
		analysis.Classification, analysis.OverallConfidence, analysis.DataCompleteness)
	for name, m := range analysis.KeyMetrics {
		fmt.Fprintf(&b, "- %s: %s (stated: %t, confidence: %.2f)\n", name, m.Value, m.Stated, m.Confidence)
	}
	if len(analysis.Gaps) > 0 {
		b.WriteString("\nINFORMATION GAPS:\n")
		for _, gap := range analysis.Gaps {
			fmt.Fprintf(&b, "- %s (%s): %s\n", gap.Metric, gap.Importance, gap.Note)
		}
	}
	if len(analysis.RisksIdentified) > 0 {
		b.WriteString("\nRISKS IDENTIFIED:\n")
		for i, r := range analysis.RisksIdentified {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "- %s (confidence: %.2f)\n", r.Claim, r.Confidence)
		}
	}
	if len(analysis.Inconsistencies) > 0 {
		b.WriteString("\nINCONSISTENCIES:\n")
		for _, in := range analysis.Inconsistencies {
			fmt.Fprintf(&b, "- %s\n", in)
		}
	}
	if len(research) > 0 {
		b.WriteString("\n=== RESEARCH FINDINGS ===\n")
		for i, r := range research {
			if i == maxClaimsToResearch {
				break
			}
			fmt.Fprintf(&b, "Claim: %s\nStatus: %s\nSources: %d\n", r.Claim, r.Status, r.SourceCount)
			for _, d := range r.Discrepancies {
				fmt.Fprintf(&b, "  Discrepancy (%s): %s\n", d.Severity, d.FindingFromResearch)
			}
		}
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func questionsSchema() ai.Schema {
	return ai.Schema{
		Name: "questions",
		Definition: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []any{"questions"},
			"properties": map[string]any{
				"questions": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":                 "object",
						"additionalProperties": false,
						"required":             []any{"question", "category", "priority", "triggered_by", "risk_category", "suggested_sources", "context"},
						"properties": map[string]any{
							"question":          map[string]any{"type": "string"},
							"category":          map[string]any{"type": "string"},
							"priority":          map[string]any{"type": "string"},
							"triggered_by":      map[string]any{"type": "string"},
							"risk_category":     map[string]any{"type": []any{"string", "null"}},
							"suggested_sources": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
							"context":           map[string]any{"type": []any{"string", "null"}},
						},
					},
				},
			},
		},
	}
}
