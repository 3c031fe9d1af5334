package document

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/pkg/ai"
)

const (
	analyzerVersion       = "1.0.0"
	analysisTextLimit     = 15000
	analysisEntityLimit   = 100
	analysisTableLimit    = 10
	reviewOverallBelow    = 0.7
	reviewExtractionBelow = 0.6
)

const analyzerSystemPrompt = `You analyze extracted document data. Use only the extracted text; never use outside knowledge.

Mark every fact as stated (written in the document), implied (follows from stated facts) or inferred.
Every metric needs a source citation such as a page, section or table.
When information is missing, return a null value and say so in the note. Never fill gaps.
Report contradictions inside the document as inconsistencies.
Do not use "typically", "usually", "industry standard", "likely" or "probably" unless quoting the document.

Confidence: 1.0 explicitly stated with a clear source; 0.8-0.9 clearly implied by several data points;
0.6-0.7 inferred from limited information; 0.4-0.5 unclear; 0.0-0.3 not found.`

type analysisPayload struct {
	Classification           string           `json:"classification" validate:"required"`
	ClassificationConfidence float64          `json:"classification_confidence" validate:"gte=0,lte=1"`
	KeyMetrics               []metricPayload  `json:"key_metrics" validate:"dive"`
	Insights                 []insightPayload `json:"insights" validate:"dive"`
	RisksIdentified          []insightPayload `json:"risks_identified" validate:"dive"`
	Opportunities            []insightPayload `json:"opportunities_identified" validate:"dive"`
	Gaps                     []gapPayload     `json:"gaps" validate:"dive"`
	Inconsistencies          []string         `json:"inconsistencies"`
	DataCompleteness         float64          `json:"data_completeness" validate:"gte=0,lte=1"`
}

type metricPayload struct {
	Name           string  `json:"name" validate:"required"`
	Value          *string `json:"value"`
	Unit           *string `json:"unit"`
	SourceCitation string  `json:"source_citation"`
	Confidence     float64 `json:"confidence" validate:"gte=0,lte=1"`
	Note           *string `json:"note"`
	Stated         bool    `json:"stated"`
}

type insightPayload struct {
	Claim              string   `json:"claim" validate:"required"`
	Category           string   `json:"category"`
	SupportingEvidence []string `json:"supporting_evidence"`
	Confidence         float64  `json:"confidence" validate:"gte=0,lte=1"`
	StatedVsImplied    string   `json:"stated_vs_implied" validate:"oneof=stated implied inferred"`
}

type gapPayload struct {
	Metric     string `json:"metric" validate:"required"`
	Importance string `json:"importance" validate:"oneof=critical high medium low"`
	Note       string `json:"note"`
}

// DocumentContext is passed to the analyzer alongside the extraction
type DocumentContext struct {
	Filename     string
	DocumentType string
	CompanyName  string
	DocumentDate string
}

// Analyzer interprets an extraction through a completion and scores its confidence
type Analyzer struct {
	completer ai.Completer
	model     string
	logger    *zap.Logger
}

// NewAnalyzer creates an analyzer. model is recorded on the result.
func NewAnalyzer(completer ai.Completer, model string, logger *zap.Logger) *Analyzer {
	return &Analyzer{completer: completer, model: model, logger: logger}
}

// Analyze classifies the document, collects metrics, insights and gaps, and
// decides whether a human must review the analysis
func (a *Analyzer) Analyze(ctx context.Context, ext *entities.ExtractionResult, dc DocumentContext) (*entities.AnalysisResult, error) {
	var payload analysisPayload
	prompt := ai.Prompt{System: analyzerSystemPrompt, User: buildAnalysisPrompt(ext, dc), Temperature: 0.1}
	if err := a.completer.Complete(ctx, prompt, analysisSchema(), &payload); err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	res := &entities.AnalysisResult{
		Classification:           entities.ParseClassification(payload.Classification),
		ClassificationConfidence: payload.ClassificationConfidence,
		KeyMetrics:               make(map[string]entities.MetricValue, len(payload.KeyMetrics)),
		Insights:                 toInsights(payload.Insights),
		RisksIdentified:          toInsights(payload.RisksIdentified),
		OpportunitiesIdentified:  toInsights(payload.Opportunities),
		DataCompleteness:         payload.DataCompleteness,
		Inconsistencies:          nonNil(payload.Inconsistencies),
		Gaps:                     make([]entities.Gap, 0, len(payload.Gaps)),
		AnalyzerVersion:          analyzerVersion,
		AnalyzerModel:            a.model,
		ExtractionConfidence:     ext.ConfidenceScore,
	}
	for _, m := range payload.KeyMetrics {
		res.KeyMetrics[m.Name] = entities.MetricValue{
			Value:          deref(m.Value),
			Unit:           deref(m.Unit),
			SourceCitation: m.SourceCitation,
			Confidence:     m.Confidence,
			Note:           deref(m.Note),
			Stated:         m.Stated,
		}
	}
	for _, g := range payload.Gaps {
		res.Gaps = append(res.Gaps, entities.Gap{Metric: g.Metric, Importance: g.Importance, Note: g.Note})
	}

	res.ConfidenceBreakdown = map[string]float64{
		"extraction":     ext.ConfidenceScore,
		"classification": payload.ClassificationConfidence,
		"metrics":        meanMetricConfidence(res.KeyMetrics),
		"insights":       meanInsightConfidence(res.Insights),
	}
	var sum float64
	for _, v := range res.ConfidenceBreakdown {
		sum += v
	}
	res.OverallConfidence = sum / float64(len(res.ConfidenceBreakdown))
	res.InternalConsistency = len(res.Inconsistencies) == 0
	res.RequiresHumanReview, res.ReviewReason = analysisReview(res, ext.ConfidenceScore)

	if a.logger != nil {
		a.logger.Info("🧠 Document analyzed",
			zap.String("classification", string(res.Classification)),
			zap.Float64("overall_confidence", res.OverallConfidence),
			zap.Int("metrics", len(res.KeyMetrics)),
			zap.Int("insights", len(res.Insights)),
			zap.Bool("requires_review", res.RequiresHumanReview),
		)
	}
	return res, nil
}

func analysisReview(res *entities.AnalysisResult, extractionConfidence float64) (bool, string) {
	switch {
	case res.OverallConfidence < reviewOverallBelow:
		return true, fmt.Sprintf("Low overall confidence (%.2f)", res.OverallConfidence)
	case extractionConfidence < reviewExtractionBelow:
		return true, fmt.Sprintf("Low extraction quality (%.2f)", extractionConfidence)
	case len(res.Inconsistencies) > 0:
		return true, "Internal inconsistencies found"
	}
	for _, g := range res.Gaps {
		if g.Importance == "critical" {
			return true, "Critical information gaps"
		}
	}
	return false, ""
}

func meanMetricConfidence(m map[string]entities.MetricValue) float64 {
	if len(m) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m {
		sum += v.Confidence
	}
	return sum / float64(len(m))
}

func meanInsightConfidence(in []entities.Insight) float64 {
	if len(in) == 0 {
		return 0
	}
	var sum float64
	for _, i := range in {
		sum += i.Confidence
	}
	return sum / float64(len(in))
}

func toInsights(in []insightPayload) []entities.Insight {
	out := make([]entities.Insight, 0, len(in))
	for _, i := range in {
		out = append(out, entities.Insight{
			Claim:              i.Claim,
			Category:           i.Category,
			SupportingEvidence: nonNil(i.SupportingEvidence),
			Confidence:         i.Confidence,
			StatedVsImplied:    i.StatedVsImplied,
		})
	}
	return out
}

func buildAnalysisPrompt(ext *entities.ExtractionResult, dc DocumentContext) string {
	var b strings.Builder
	b.WriteString("DOCUMENT EXTRACTION:\n\n=== EXTRACTED TEXT ===\n")
	b.WriteString(truncateRunes(ext.ExtractedText, analysisTextLimit))
	b.WriteString("\n\n=== EXTRACTED ENTITIES ===\n")
	for i, e := range ext.Entities {
		if i == analysisEntityLimit {
			break
		}
		fmt.Fprintf(&b, "- %s: '%s' (source: %s, confidence: %.2f)\n", e.Type, e.Value, e.SourceLocation, e.Confidence)
	}
	if len(ext.Tables) > 0 {
		b.WriteString("\n=== EXTRACTED TABLES ===\n")
		for i, t := range ext.Tables {
			if i == analysisTableLimit {
				break
			}
			fmt.Fprintf(&b, "Table at %s:\nHeaders: %s\nRows: %d\n", t.Location, strings.Join(t.Headers, " | "), len(t.Rows))
			if t.Malformed {
				b.WriteString("Table structure is malformed\n")
			}
		}
	}
	if len(ext.Ambiguities) > 0 {
		b.WriteString("\n=== AMBIGUITIES FLAGGED BY EXTRACTOR ===\n")
		for _, a := range ext.Ambiguities {
			fmt.Fprintf(&b, "- %s: %s\n", a.Location, a.Issue)
		}
	}
	b.WriteString("\n=== DOCUMENT CONTEXT ===\n")
	fmt.Fprintf(&b, "Filename: %s\nDocument type: %s\n", orNA(dc.Filename), orNA(dc.DocumentType))
	if dc.CompanyName != "" {
		fmt.Fprintf(&b, "Company: %s\n", dc.CompanyName)
	}
	if dc.DocumentDate != "" {
		fmt.Fprintf(&b, "Document date: %s\n", dc.DocumentDate)
	}
	fmt.Fprintf(&b, "\n=== EXTRACTION QUALITY ===\nOverall confidence: %.2f\n", ext.ConfidenceScore)
	return b.String()
}

func analysisSchema() ai.Schema {
	insight := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"claim", "category", "supporting_evidence", "confidence", "stated_vs_implied"},
		"properties": map[string]any{
			"claim":               map[string]any{"type": "string"},
			"category":            map[string]any{"type": "string"},
			"supporting_evidence": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"confidence":          map[string]any{"type": "number"},
			"stated_vs_implied":   map[string]any{"type": "string", "enum": []any{"stated", "implied", "inferred"}},
		},
	}
	classifications := []any{}
	for _, c := range []entities.DocumentClassification{
		entities.ClassificationPitchDeckPreSeed, entities.ClassificationPitchDeckSeed,
		entities.ClassificationPitchDeckSeriesA, entities.ClassificationPitchDeckSeriesBPlus,
		entities.ClassificationFinancialReportQuarterly, entities.ClassificationFinancialReportAnnual,
		entities.ClassificationLegalTermSheet, entities.ClassificationLegalContract,
		entities.ClassificationMeetingNotes, entities.ClassificationMarketResearch,
		entities.ClassificationCompetitorAnalysis, entities.ClassificationOther,
	} {
		classifications = append(classifications, string(c))
	}
	return ai.Schema{
		Name: "analysis_result",
		Definition: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required": []any{"classification", "classification_confidence", "key_metrics", "insights",
				"risks_identified", "opportunities_identified", "gaps", "inconsistencies", "data_completeness"},
			"properties": map[string]any{
				"classification":            map[string]any{"type": "string", "enum": classifications},
				"classification_confidence": map[string]any{"type": "number"},
				"key_metrics": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":                 "object",
						"additionalProperties": false,
						"required":             []any{"name", "value", "unit", "source_citation", "confidence", "note", "stated"},
						"properties": map[string]any{
							"name":            map[string]any{"type": "string"},
							"value":           map[string]any{"type": []any{"string", "null"}},
							"unit":            map[string]any{"type": []any{"string", "null"}},
							"source_citation": map[string]any{"type": "string"},
							"confidence":      map[string]any{"type": "number"},
							"note":            map[string]any{"type": []any{"string", "null"}},
							"stated":          map[string]any{"type": "boolean"},
						},
					},
				},
				"insights":                 map[string]any{"type": "array", "items": insight},
				"risks_identified":         map[string]any{"type": "array", "items": insight},
				"opportunities_identified": map[string]any{"type": "array", "items": insight},
				"gaps": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":                 "object",
						"additionalProperties": false,
						"required":             []any{"metric", "importance", "note"},
						"properties": map[string]any{
							"metric":     map[string]any{"type": "string"},
							"importance": map[string]any{"type": "string", "enum": []any{"critical", "high", "medium", "low"}},
							"note":       map[string]any{"type": "string"},
						},
					},
				},
				"inconsistencies":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"data_completeness": map[string]any{"type": "number"},
			},
		},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
