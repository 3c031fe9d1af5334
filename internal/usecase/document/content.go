package document

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/pkg/ai"
)

const contentGeneratorVersion = "1.0.0"

const (
	contentAnalysisWeight = 0.7
	contentCoverageWeight = 0.3
	highConfidenceAt      = 0.8
	mediumConfidenceAt    = 0.6
)

var (
	footnote     = regexp.MustCompile(`(?m)^\[\^(\d+)\]:[ \t]*(.+)$`)
	firstURL     = regexp.MustCompile(`https?://\S+`)
	titleHeading = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	researchHint = []string{"crunchbase", "linkedin", "techcrunch", "bloomberg"}
)

const contentRules = `Every factual claim carries an inline citation such as [^1].
Say where each fact comes from: the document, public research, or your own analysis.
List missing information in an "Unknown/Missing Data" section; write "Not disclosed in provided materials" for absent data.
Keep a professional, objective tone and do not speculate beyond the data.
End with a "## Sources" section listing every footnote as [^N]: source.`

var contentStructures = map[entities.ContentType]string{
	entities.ContentDueDiligence: `Write a due diligence report with sections: # Due Diligence Report: <Company>, ## Executive Summary,
## Company Overview, ## Financials, ## Team & Organization, ## Product & Market, ## Risks Identified,
## Unknown/Missing Data, ## Key Questions for Follow-up, ## Sources.`,
	entities.ContentSWOTAnalysis: `Write a SWOT analysis with sections: # SWOT Analysis: <Company>, ## Strengths, ## Weaknesses,
## Opportunities, ## Threats, ## Summary, ## Sources. Mark stated and inferred points.`,
	entities.ContentExecutiveSummary: `Write an executive summary of at most 500 words: company overview, key metrics, top three risks,
top three opportunities and a positive, neutral or negative signal with rationale.`,
	entities.ContentInvestmentMemo: `Write an investment memo with sections: Investment Thesis, Key Metrics table, Investment Highlights,
Key Risks, Open Questions, Recommendation.`,
	entities.ContentRiskAssessment: `Write a risk assessment grouped into financial, market, team, technical and legal risks.
For each risk give description, evidence, severity and mitigation.`,
}

type contentPayload struct {
	Title    string `json:"title"`
	Markdown string `json:"markdown" validate:"required"`
}

// ContentInput is everything the content stage knows about a document
type ContentInput struct {
	Analysis     *entities.AnalysisResult
	Research     []entities.ResearchResult
	Questions    *entities.QuestionSet
	CompanyName  string
	DocumentDate string
}

// ContentGenerator writes cited markdown reports through a completion
type ContentGenerator struct {
	completer ai.Completer
	logger    *zap.Logger
	now       func() time.Time
}

// NewContentGenerator creates a content generator
func NewContentGenerator(completer ai.Completer, logger *zap.Logger) *ContentGenerator {
	return &ContentGenerator{completer: completer, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Generate writes one report and scores its citations
func (g *ContentGenerator) Generate(ctx context.Context, contentType entities.ContentType, in ContentInput) (*entities.GeneratedContent, error) {
	structure, ok := contentStructures[contentType]
	if !ok {
		structure = fmt.Sprintf("Write a %s report.", strings.ReplaceAll(string(contentType), "_", " "))
	}
	contextJSON, err := json.MarshalIndent(buildContentContext(in), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode content context: %w", err)
	}

	var payload contentPayload
	prompt := ai.Prompt{
		System:      structure + "\n\n" + contentRules,
		User:        "Context:\n" + string(contextJSON),
		Temperature: 0.2,
	}
	if err := g.completer.Complete(ctx, prompt, contentSchema(), &payload); err != nil {
		return nil, fmt.Errorf("generate %s: %w", contentType, err)
	}

	md := payload.Markdown
	coverage, _, _ := citationCoverage(md)
	title := payload.Title
	if m := titleHeading.FindStringSubmatch(md); m != nil {
		title = strings.TrimSpace(m[1])
	}

	res := &entities.GeneratedContent{
		ContentType:      contentType,
		Title:            title,
		ContentMarkdown:  md,
		Citations:        ParseCitations(md),
		CitationCoverage: coverage,
		ConfidenceLevel:  confidenceLevel(in.Analysis.OverallConfidence, coverage),
		Disclaimer:       disclaimer(in.DocumentDate, g.now()),
		WordCount:        len(strings.Fields(md)),
		GeneratorVersion: contentGeneratorVersion,
	}
	res.RequiresReview = res.ConfidenceLevel == entities.ConfidenceLow

	if g.logger != nil {
		g.logger.Info("📝 Content generated",
			zap.String("content_type", string(contentType)),
			zap.Int("word_count", res.WordCount),
			zap.Int("citations", len(res.Citations)),
			zap.Float64("citation_coverage", coverage),
		)
	}
	return res, nil
}

// ParseCitations reads [^n]: footnotes
func ParseCitations(markdown string) []entities.Citation {
	out := []entities.Citation{}
	for _, m := range footnote.FindAllStringSubmatch(markdown, -1) {
		text := strings.TrimSpace(m[2])
		lower := strings.ToLower(text)
		sourceType := "document"
		for _, hint := range researchHint {
			if strings.Contains(lower, hint) {
				sourceType = "research"
				break
			}
		}
		if sourceType == "document" && (strings.Contains(lower, "analysis") || strings.Contains(lower, "based on")) {
			sourceType = "analysis"
		}
		out = append(out, entities.Citation{
			RefID:      "[^" + m[1] + "]",
			SourceType: sourceType,
			SourceText: text,
			URL:        firstURL.FindString(text),
		})
	}
	return out
}

func confidenceLevel(analysisConfidence, coverage float64) entities.ConfidenceLevel {
	combined := analysisConfidence*contentAnalysisWeight + coverage*contentCoverageWeight
	switch {
	case combined >= highConfidenceAt:
		return entities.ConfidenceHigh
	case combined >= mediumConfidenceAt:
		return entities.ConfidenceMedium
	default:
		return entities.ConfidenceLow
	}
}

func disclaimer(documentDate string, now time.Time) string {
	if documentDate == "" {
		documentDate = "unknown"
	}
	return fmt.Sprintf("**Disclaimer**: This analysis is based solely on provided documents dated %s "+
		"and public sources accessed on %s. Information may be incomplete, outdated, or inaccurate. "+
		"This is not investment advice. Conduct independent verification before making investment decisions.",
		documentDate, now.Format("2006-01-02"))
}

type contentContext struct {
	CompanyName       string                   `json:"company_name"`
	DocumentDate      string                   `json:"document_date"`
	Classification    string                   `json:"classification"`
	KeyMetrics        map[string]contentMetric `json:"key_metrics"`
	Insights          []contentInsight         `json:"insights"`
	Risks             []contentInsight         `json:"risks"`
	Gaps              []entities.Gap           `json:"gaps"`
	Research          []contentResearch        `json:"research"`
	CriticalQuestions []string                 `json:"critical_questions"`
	HighQuestions     []string                 `json:"high_priority_questions"`
	OverallConfidence float64                  `json:"overall_confidence"`
	DataCompleteness  float64                  `json:"data_completeness"`
}

type contentMetric struct {
	Value      string  `json:"value"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
	Stated     bool    `json:"stated"`
}

type contentInsight struct {
	Claim    string   `json:"claim"`
	Category string   `json:"category"`
	Evidence []string `json:"evidence"`
	Type     string   `json:"type,omitempty"`
}

type contentResearch struct {
	Claim         string                 `json:"claim"`
	Status        string                 `json:"status"`
	Sources       int                    `json:"sources"`
	Discrepancies []entities.Discrepancy `json:"discrepancies"`
}

func buildContentContext(in ContentInput) contentContext {
	a := in.Analysis
	c := contentContext{
		CompanyName:       orUnknown(in.CompanyName),
		DocumentDate:      orUnknown(in.DocumentDate),
		Classification:    string(a.Classification),
		KeyMetrics:        make(map[string]contentMetric, len(a.KeyMetrics)),
		Gaps:              a.Gaps,
		OverallConfidence: a.OverallConfidence,
		DataCompleteness:  a.DataCompleteness,
	}
	for name, m := range a.KeyMetrics {
		c.KeyMetrics[name] = contentMetric{Value: m.Value, Source: m.SourceCitation, Confidence: m.Confidence, Stated: m.Stated}
	}
	for _, ins := range a.Insights {
		c.Insights = append(c.Insights, contentInsight{Claim: ins.Claim, Category: ins.Category, Evidence: ins.SupportingEvidence, Type: ins.StatedVsImplied})
	}
	for _, r := range a.RisksIdentified {
		c.Risks = append(c.Risks, contentInsight{Claim: r.Claim, Category: r.Category, Evidence: r.SupportingEvidence})
	}
	for _, r := range in.Research {
		c.Research = append(c.Research, contentResearch{Claim: r.Claim, Status: string(r.Status), Sources: len(r.PublicSources), Discrepancies: r.Discrepancies})
	}
	if in.Questions != nil {
		for _, q := range in.Questions.Critical {
			c.CriticalQuestions = append(c.CriticalQuestions, q.Question)
		}
		for _, q := range in.Questions.HighPriority {
			c.HighQuestions = append(c.HighQuestions, q.Question)
		}
	}
	return c
}

func contentSchema() ai.Schema {
	return ai.Schema{
		Name: "generated_content",
		Definition: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []any{"title", "markdown"},
			"properties": map[string]any{
				"title":    map[string]any{"type": "string"},
				"markdown": map[string]any{"type": "string"},
			},
		},
	}
}
