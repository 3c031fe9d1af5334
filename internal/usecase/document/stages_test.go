package document

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/pkg/ai"
)

func TestAnalyzerBuildsBreakdownAndReview(t *testing.T) {
	responses := cannedResponses()
	payload := responses["analysis_result"].(map[string]any)
	payload["inconsistencies"] = []any{"Slide 3 says $2M ARR, slide 9 says $1.5M"}

	a := NewAnalyzer(&fakeCompleter{responses: responses}, "test-model", nil)
	res, err := a.Analyze(context.Background(), &entities.ExtractionResult{ExtractedText: "deck", ConfidenceScore: 1}, DocumentContext{Filename: "deck.txt"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Classification != entities.ClassificationPitchDeckSeed || res.AnalyzerModel != "test-model" {
		t.Errorf("result = %+v", res)
	}
	if got := res.KeyMetrics["revenue"]; got.Value != "$2M" || got.Unit != "" || !got.Stated {
		t.Errorf("revenue metric = %+v", got)
	}
	if len(res.ConfidenceBreakdown) != 4 || math.Abs(res.OverallConfidence-(1+0.9+0.9+0.9)/4) > 1e-9 {
		t.Errorf("breakdown = %v overall = %v", res.ConfidenceBreakdown, res.OverallConfidence)
	}
	if !res.RequiresHumanReview || res.ReviewReason != "Internal inconsistencies found" || res.InternalConsistency {
		t.Errorf("review = %t %q", res.RequiresHumanReview, res.ReviewReason)
	}
}

func TestAnalysisReviewReasons(t *testing.T) {
	tests := []struct {
		name       string
		res        entities.AnalysisResult
		extraction float64
		want       string
	}{
		{"low overall", entities.AnalysisResult{OverallConfidence: 0.55}, 1, "Low overall confidence (0.55)"},
		{"low extraction", entities.AnalysisResult{OverallConfidence: 0.8}, 0.5, "Low extraction quality (0.50)"},
		{"critical gap", entities.AnalysisResult{OverallConfidence: 0.8, Gaps: []entities.Gap{{Metric: "burn", Importance: "critical"}}}, 1, "Critical information gaps"},
		{"clean", entities.AnalysisResult{OverallConfidence: 0.8, Gaps: []entities.Gap{{Metric: "burn", Importance: "low"}}}, 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			review, reason := analysisReview(&tt.res, tt.extraction)
			if reason != tt.want || review != (tt.want != "") {
				t.Errorf("analysisReview = %t %q, want %q", review, reason, tt.want)
			}
		})
	}
}

func TestQuestionGeneratorSkipsInvalidEntries(t *testing.T) {
	responses := map[string]any{
		"questions": map[string]any{
			"questions": []any{
				map[string]any{"question": "Is the $2M ARR audited?", "category": "financial", "priority": "critical", "triggered_by": "metric: arr", "risk_category": "financial", "suggested_sources": []any{"auditor"}, "context": nil},
				map[string]any{"question": "Who owns the IP?", "category": "legal", "priority": "low", "triggered_by": "gap: ip", "risk_category": nil, "suggested_sources": nil, "context": "no IP section"},
				map[string]any{"question": "", "category": "financial", "priority": "high", "triggered_by": "x", "risk_category": nil, "suggested_sources": []any{}, "context": nil},
				map[string]any{"question": "What is the weather?", "category": "weather", "priority": "high", "triggered_by": "x", "risk_category": nil, "suggested_sources": []any{}, "context": nil},
			},
		},
	}
	g := NewQuestionGenerator(&fakeCompleter{responses: responses}, nil)

	set, err := g.Generate(context.Background(), &entities.AnalysisResult{}, nil, "Acme")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if set.TotalCount != 2 || len(set.Critical) != 1 || len(set.LowPriority) != 1 {
		t.Fatalf("set = %+v", set)
	}
	if set.LowPriority[0].SuggestedSources == nil || set.LowPriority[0].Context != "no IP section" {
		t.Errorf("low question = %+v", set.LowPriority[0])
	}
}

func TestQuestionGeneratorPropagatesSchemaViolation(t *testing.T) {
	g := NewQuestionGenerator(&fakeCompleter{responses: map[string]any{}}, nil)

	_, err := g.Generate(context.Background(), &entities.AnalysisResult{}, nil, "")
	if !ai.IsSchemaViolation(err) {
		t.Fatalf("err = %v, want schema violation", err)
	}
}

func TestPrioritizeClaims(t *testing.T) {
	analysis := &entities.AnalysisResult{
		KeyMetrics: map[string]entities.MetricValue{
			"revenue":     {Value: "$2M", Stated: true},
			"team_size":   {Value: "12", Stated: true},
			"arr":         {Value: "", Stated: true},
			"funding":     {Value: "$5M", Stated: false},
			"nps":         {Value: "70", Stated: true},
			"mrr_growth":  {Value: "10%", Stated: true},
			"churn_rate":  {Value: "2%", Stated: true},
			"headcount_q": {Value: "15", Stated: true},
		},
		Insights: []entities.Insight{
			{Claim: "stated strong", Confidence: 0.85, StatedVsImplied: "stated"},
			{Claim: "implied strong", Confidence: 0.95, StatedVsImplied: "implied"},
			{Claim: "stated weak", Confidence: 0.5, StatedVsImplied: "stated"},
		},
		RisksIdentified: []entities.Insight{
			{Claim: "key person risk", Confidence: 0.75},
			{Claim: "minor risk", Confidence: 0.3},
		},
	}

	claims := PrioritizeClaims(analysis, 10)
	var got []string
	for _, c := range claims {
		got = append(got, c.Text)
	}
	want := []string{"headcount_q: 15", "mrr_growth: 10%", "revenue: $2M", "team_size: 12", "stated strong", "key person risk"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("claims = %v, want %v", got, want)
	}

	if capped := PrioritizeClaims(analysis, 3); len(capped) != 3 || capped[2].Priority != 1 {
		t.Errorf("capped = %+v", capped)
	}
}

func TestSourceReliability(t *testing.T) {
	tests := map[string]string{
		"https://www.crunchbase.com/organization/acme": "high",
		"https://www.sec.gov/cgi-bin/browse-edgar":     "high",
		"https://acme.io/about":                        "medium",
		"https://www.facebook.com/acme":                "",
		"https://randomblog.xyz/post":                  "",
	}
	for url, want := range tests {
		if got := SourceReliability(url); got != want {
			t.Errorf("SourceReliability(%q) = %q, want %q", url, got, want)
		}
	}
}

type fixedSearcher struct {
	sources []entities.PublicSource
	err     error
}

func (s *fixedSearcher) Search(context.Context, string) ([]entities.PublicSource, error) {
	return s.sources, s.err
}

func TestSearchingResearcher(t *testing.T) {
	claim := Claim{Text: "revenue: $2M", Source: "page 3", Priority: 1}

	t.Run("no searcher", func(t *testing.T) {
		res, err := NewSearchingResearcher(nil, nil).Research(context.Background(), claim, "Acme")
		if err != nil || res.Status != entities.ClaimNotFound {
			t.Fatalf("res = %+v err = %v", res, err)
		}
	})

	t.Run("only approved sources are compared", func(t *testing.T) {
		responses := map[string]any{
			"claim_verification": map[string]any{
				"status": "contradicted",
				"discrepancies": []any{
					map[string]any{"claim_from_document": "$2M", "finding_from_research": "$1M reported", "severity": "critical"},
				},
				"confidence_adjustment": -0.3,
			},
		}
		searcher := &fixedSearcher{sources: []entities.PublicSource{
			{URL: "https://techcrunch.com/acme-raises", Title: "Acme raises"},
			{URL: "https://reddit.com/r/startups/acme", Title: "rumor"},
		}}
		res, err := NewSearchingResearcher(searcher, &fakeCompleter{responses: responses}).Research(context.Background(), claim, "Acme")
		if err != nil {
			t.Fatalf("Research: %v", err)
		}
		if res.Status != entities.ClaimContradicted || res.SourceCount != 1 || len(res.PublicSources) != 1 {
			t.Fatalf("res = %+v", res)
		}
		if res.PublicSources[0].Reliability != "high" || len(res.Discrepancies) != 1 || res.ConfidenceAdjustment != -0.3 {
			t.Errorf("res = %+v", res)
		}
	})

	t.Run("search error", func(t *testing.T) {
		boom := errors.New("search down")
		_, err := NewSearchingResearcher(&fixedSearcher{err: boom}, nil).Research(context.Background(), claim, "Acme")
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want %v", err, boom)
		}
	})
}
