package document

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/pkg/ai"
)

const (
	maxClaimsToResearch  = 10
	statedInsightMinimum = 0.8
	riskMinimum          = 0.7
	maxSourcesPerClaim   = 5
)

var priorityMetrics = []string{"funding", "revenue", "arr", "mrr", "team_size", "headcount"}

// Claim is a statement from the analysis selected for outside verification
type Claim struct {
	Text     string
	Source   string
	Priority int
}

// ClaimResearcher verifies one claim against public sources
type ClaimResearcher interface {
	Research(ctx context.Context, claim Claim, companyName string) (entities.ResearchResult, error)
}

// Researcher selects the claims worth verifying and hands each to a ClaimResearcher
type Researcher struct {
	claims ClaimResearcher
	logger *zap.Logger
}

// NewResearcher creates a researcher
func NewResearcher(claims ClaimResearcher, logger *zap.Logger) *Researcher {
	return &Researcher{claims: claims, logger: logger}
}

// Research verifies up to ten prioritized claims. A failing claim is reported
// as uncertain and the rest continue.
func (r *Researcher) Research(ctx context.Context, analysis *entities.AnalysisResult, companyName string) ([]entities.ResearchResult, error) {
	claims := PrioritizeClaims(analysis, maxClaimsToResearch)
	out := make([]entities.ResearchResult, 0, len(claims))
	for _, c := range claims {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := r.claims.Research(ctx, c, companyName)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("⚠️ Claim research failed",
					zap.String("claim", c.Text),
					zap.Error(err),
				)
			}
			res = entities.ResearchResult{
				Claim:             c.Text,
				ClaimSource:       c.Source,
				Status:            entities.ClaimUncertain,
				PublicSources:     []entities.PublicSource{},
				Discrepancies:     []entities.Discrepancy{},
				AdditionalContext: map[string]interface{}{"error": err.Error()},
			}
		}
		out = append(out, res)
	}
	return out, nil
}

// PrioritizeClaims orders stated priority metrics, then stated high-confidence
// insights, then likely risks, and keeps at most max claims
func PrioritizeClaims(analysis *entities.AnalysisResult, max int) []Claim {
	var claims []Claim

	names := make([]string, 0, len(analysis.KeyMetrics))
	for name := range analysis.KeyMetrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := analysis.KeyMetrics[name]
		if m.Value == "" || !m.Stated || !isPriorityMetric(name) {
			continue
		}
		claims = append(claims, Claim{Text: fmt.Sprintf("%s: %s", name, m.Value), Source: m.SourceCitation, Priority: 1})
	}
	for _, in := range analysis.Insights {
		if in.Confidence >= statedInsightMinimum && in.IsStated() {
			claims = append(claims, Claim{Text: in.Claim, Source: strings.Join(in.SupportingEvidence, ", "), Priority: 2})
		}
	}
	for _, risk := range analysis.RisksIdentified {
		if risk.Confidence >= riskMinimum {
			claims = append(claims, Claim{Text: risk.Claim, Source: strings.Join(risk.SupportingEvidence, ", "), Priority: 3})
		}
	}

	if len(claims) > max {
		claims = claims[:max]
	}
	return claims
}

func isPriorityMetric(name string) bool {
	lower := strings.ToLower(name)
	for _, pm := range priorityMetrics {
		if strings.Contains(lower, pm) {
			return true
		}
	}
	return false
}

// Searcher looks up public sources for a query
type Searcher interface {
	Search(ctx context.Context, query string) ([]entities.PublicSource, error)
}

var highReliabilityDomains = []string{
	"crunchbase.com", "pitchbook.com", "linkedin.com", "techcrunch.com", "bloomberg.com",
	"wsj.com", "reuters.com", "ft.com", "sec.gov", "theinformation.com",
}

var (
	companyDomain   = regexp.MustCompile(`^https?://(?:www\.)?[\w-]+\.(?:com|io|co)(?:/|$)`)
	socialPlatforms = []string{"facebook", "twitter", "instagram", "reddit", "medium", "wordpress"}
)

// SourceReliability rates a URL: high for known outlets, medium for company
// domains, empty when the source is not approved
func SourceReliability(url string) string {
	lower := strings.ToLower(url)
	for _, d := range highReliabilityDomains {
		if strings.Contains(lower, d) {
			return "high"
		}
	}
	if companyDomain.MatchString(lower) {
		for _, p := range socialPlatforms {
			if strings.Contains(lower, p) {
				return ""
			}
		}
		return "medium"
	}
	return ""
}

type claimVerificationPayload struct {
	Status               string               `json:"status" validate:"oneof=confirmed contradicted not_found uncertain"`
	Discrepancies        []discrepancyPayload `json:"discrepancies" validate:"dive"`
	ConfidenceAdjustment float64              `json:"confidence_adjustment" validate:"gte=-1,lte=1"`
}

type discrepancyPayload struct {
	ClaimFromDocument   string `json:"claim_from_document"`
	FindingFromResearch string `json:"finding_from_research"`
	Severity            string `json:"severity" validate:"oneof=critical moderate minor"`
}

// SearchingResearcher searches public sources and has a completion compare
// the claim with the approved ones
type SearchingResearcher struct {
	searcher  Searcher
	completer ai.Completer
}

// NewSearchingResearcher creates a claim researcher. Without a searcher every
// claim is reported not_found.
func NewSearchingResearcher(searcher Searcher, completer ai.Completer) *SearchingResearcher {
	return &SearchingResearcher{searcher: searcher, completer: completer}
}

func (r *SearchingResearcher) Research(ctx context.Context, claim Claim, companyName string) (entities.ResearchResult, error) {
	res := entities.ResearchResult{
		Claim:         claim.Text,
		ClaimSource:   claim.Source,
		Status:        entities.ClaimNotFound,
		PublicSources: []entities.PublicSource{},
		Discrepancies: []entities.Discrepancy{},
	}
	if r.searcher == nil {
		return res, nil
	}

	query := claim.Text
	if companyName != "" {
		query = companyName + " " + query
	}
	found, err := r.searcher.Search(ctx, query)
	if err != nil {
		return res, fmt.Errorf("search: %w", err)
	}
	var approved []entities.PublicSource
	for _, src := range found {
		if rel := SourceReliability(src.URL); rel != "" {
			src.Reliability = rel
			approved = append(approved, src)
		}
	}
	res.SourceCount = len(approved)
	if len(approved) == 0 || r.completer == nil {
		return res, nil
	}
	if len(approved) > maxSourcesPerClaim {
		approved = approved[:maxSourcesPerClaim]
	}
	res.PublicSources = approved

	var b strings.Builder
	fmt.Fprintf(&b, "DOCUMENT CLAIM:\n%s\n\nPUBLIC SOURCES FOUND:\n", claim.Text)
	for i, src := range approved {
		fmt.Fprintf(&b, "Source %d (%s):\nURL: %s\nTitle: %s\nExcerpt: %s\n\n", i+1, src.Reliability, src.URL, src.Title, orNA(src.Excerpt))
	}
	b.WriteString("Confirmed needs three or more high-reliability sources in agreement. " +
		"Contradicted means the sources conflict with the claim. Otherwise the claim is uncertain.")

	var payload claimVerificationPayload
	if err := r.completer.Complete(ctx, ai.Prompt{System: "You verify claims against sources.", User: b.String(), Temperature: 0.1},
		claimVerificationSchema(), &payload); err != nil {
		return res, fmt.Errorf("verify claim: %w", err)
	}
	res.Status = entities.ClaimStatus(payload.Status)
	res.ConfidenceAdjustment = payload.ConfidenceAdjustment
	for _, d := range payload.Discrepancies {
		res.Discrepancies = append(res.Discrepancies, entities.Discrepancy{
			ClaimFromDocument:   d.ClaimFromDocument,
			FindingFromResearch: d.FindingFromResearch,
			Severity:            d.Severity,
			Sources:             approved,
		})
	}
	return res, nil
}

func claimVerificationSchema() ai.Schema {
	return ai.Schema{
		Name: "claim_verification",
		Definition: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []any{"status", "discrepancies", "confidence_adjustment"},
			"properties": map[string]any{
				"status": map[string]any{"type": "string", "enum": []any{"confirmed", "contradicted", "not_found", "uncertain"}},
				"discrepancies": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":                 "object",
						"additionalProperties": false,
						"required":             []any{"claim_from_document", "finding_from_research", "severity"},
						"properties": map[string]any{
							"claim_from_document":   map[string]any{"type": "string"},
							"finding_from_research": map[string]any{"type": "string"},
							"severity":              map[string]any{"type": "string", "enum": []any{"critical", "moderate", "minor"}},
						},
					},
				},
				"confidence_adjustment": map[string]any{"type": "number"},
			},
		},
	}
}
