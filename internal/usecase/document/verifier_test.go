package document

import (
	"math"
	"testing"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

func report(t entities.ContentType, body string) *entities.GeneratedContent {
	md := "# Report\n\n" + body + "\n\n## Sources\n\n[^1]: Company deck, page 2\n"
	coverage, _, _ := citationCoverage(md)
	return &entities.GeneratedContent{
		ContentType:      t,
		ContentMarkdown:  md,
		Citations:        ParseCitations(md),
		CitationCoverage: coverage,
		ConfidenceLevel:  entities.ConfidenceHigh,
	}
}

func issueTypes(res entities.VerificationResult) map[string]entities.VerificationIssue {
	out := map[string]entities.VerificationIssue{}
	for _, is := range res.Issues {
		if _, seen := out[is.IssueType]; !seen {
			out[is.IssueType] = is
		}
	}
	return out
}

func TestVerifyApprovesCitedReport(t *testing.T) {
	res := NewVerifier(nil).Verify(report(entities.ContentExecutiveSummary, "Revenue is $2M in 2024[^1]. The team has twelve engineers[^1]."), 0.85, false)

	if res.Status != entities.VerificationApproved || !res.Approved {
		t.Fatalf("Status = %q issues = %+v, want approved", res.Status, res.Issues)
	}
	if res.CitationCoverageActual != 1 {
		t.Errorf("CitationCoverageActual = %v, want 1", res.CitationCoverageActual)
	}
	if math.Abs(res.FinalConfidence-0.9) > 1e-9 {
		t.Errorf("FinalConfidence = %v, want 0.9", res.FinalConfidence)
	}
	if len(res.Recommendations) != 1 || res.Recommendations[0] != "Content meets quality standards - approved for release" {
		t.Errorf("Recommendations = %v", res.Recommendations)
	}
}

func TestVerifyRejectsUncitedClaims(t *testing.T) {
	res := NewVerifier(nil).Verify(report(entities.ContentExecutiveSummary, "Revenue is $2M in 2024[^1]. The team has grown to twelve engineers."), 0.85, true)

	is, ok := issueTypes(res)["missing_citations"]
	if !ok {
		t.Fatalf("issues = %+v, want missing_citations", res.Issues)
	}
	if is.Severity != entities.SeverityCritical {
		t.Errorf("Severity = %q, want critical", is.Severity)
	}
	if is.Description != "Only 50% of factual claims are cited (minimum: 85%)" {
		t.Errorf("Description = %q", is.Description)
	}
	if res.Status != entities.VerificationRejected {
		t.Errorf("Status = %q, want rejected", res.Status)
	}
}

func TestVerifyFlagsForbiddenPhrasesOutsideQuotes(t *testing.T) {
	v := NewVerifier(nil)

	res := v.Verify(report(entities.ContentExecutiveSummary, "Startups in this market typically double revenue[^1]."), 0.85, true)
	if _, ok := issueTypes(res)["hallucination_risk"]; !ok || !res.HallucinationDetected {
		t.Fatalf("issues = %+v, want hallucination_risk", res.Issues)
	}
	if res.Status != entities.VerificationRejected {
		t.Errorf("Status = %q, want rejected", res.Status)
	}

	quoted := v.Verify(report(entities.ContentExecutiveSummary, `The founder wrote "we usually close deals in Q4"[^1].`), 0.85, true)
	if _, ok := issueTypes(quoted)["hallucination_risk"]; ok {
		t.Errorf("quoted phrase flagged: %+v", quoted.Issues)
	}
}

func TestVerifyInvalidMarkerNeedsReview(t *testing.T) {
	res := NewVerifier(nil).Verify(report(entities.ContentExecutiveSummary, "Revenue is $2M in 2024[^1]. The team has twelve engineers[^2]."), 0.85, true)

	is, ok := issueTypes(res)["invalid_citation"]
	if !ok || is.Description != "Citation marker [^2] has no corresponding source" {
		t.Fatalf("issues = %+v", res.Issues)
	}
	if res.Status != entities.VerificationRequiresReview {
		t.Errorf("Status = %q, want requires_review", res.Status)
	}
}

func TestVerifyPIIOnlyWhenNotAllowed(t *testing.T) {
	body := "Reach the founder at jane@acme.io for the data room[^1]."
	v := NewVerifier(nil)

	blocked := v.Verify(report(entities.ContentExecutiveSummary, body), 0.85, false)
	is, ok := issueTypes(blocked)["pii_detected"]
	if !ok || !blocked.PIIDetected {
		t.Fatalf("issues = %+v, want pii_detected", blocked.Issues)
	}
	if is.Description != "EMAIL detected in external-facing content" {
		t.Errorf("Description = %q", is.Description)
	}

	allowed := v.Verify(report(entities.ContentExecutiveSummary, body), 0.85, true)
	if allowed.PIIDetected {
		t.Errorf("PII reported although allowed: %+v", allowed.Issues)
	}
}

func TestVerifyPlaceholdersAndEstimates(t *testing.T) {
	res := NewVerifier(nil).Verify(report(entities.ContentExecutiveSummary,
		"Headcount is TBD. The market is estimated at $4B[^1]. Approximately 40 firms buy the product."), 0.85, true)

	types := issueTypes(res)
	if _, ok := types["placeholder_data"]; !ok {
		t.Errorf("issues = %+v, want placeholder_data", res.Issues)
	}
	est, ok := types["unsupported_estimate"]
	if !ok {
		t.Fatalf("issues = %+v, want unsupported_estimate", res.Issues)
	}
	if est.Location[:13] != "Approximately" {
		t.Errorf("estimate location = %q, cited estimate should not be flagged", est.Location)
	}
}

func TestVerifyRequiredSectionsPerType(t *testing.T) {
	res := NewVerifier(nil).Verify(report(entities.ContentSWOTAnalysis, "## Strengths\n\nRevenue is $2M[^1]."), 0.85, true)

	var missing []string
	for _, is := range res.Issues {
		if is.IssueType == "missing_section" {
			missing = append(missing, is.Description)
			if is.Severity != entities.SeverityMedium {
				t.Errorf("%s severity = %q, want medium", is.Description, is.Severity)
			}
		}
	}
	if len(missing) != 3 {
		t.Fatalf("missing sections = %v, want Weaknesses, Opportunities, Threats", missing)
	}
	if res.Status != entities.VerificationApproved {
		t.Errorf("Status = %q, three medium issues stay approved", res.Status)
	}
	if got := res.Recommendations[0]; got != "Add required sections: Weaknesses, Opportunities, Threats" {
		t.Errorf("Recommendations[0] = %q", got)
	}
}

func TestVerifyMissingSourcesSection(t *testing.T) {
	gc := &entities.GeneratedContent{
		ContentType:      entities.ContentDueDiligence,
		ContentMarkdown:  "No heading here and nothing else.",
		CitationCoverage: 1,
		ConfidenceLevel:  entities.ConfidenceMedium,
	}
	res := NewVerifier(nil).Verify(gc, 0.85, true)

	types := issueTypes(res)
	for _, want := range []string{"missing_sources", "missing_title", "missing_section"} {
		if _, ok := types[want]; !ok {
			t.Errorf("issues = %+v, want %s", res.Issues, want)
		}
	}
	if res.FormatValid {
		t.Error("FormatValid = true, want false")
	}
	if res.Status != entities.VerificationRequiresReview {
		t.Errorf("Status = %q, want requires_review", res.Status)
	}
}

func TestConfidenceMismatch(t *testing.T) {
	gc := report(entities.ContentExecutiveSummary, "Revenue is $2M[^1].")
	gc.CitationCoverage = 0.5

	res := NewVerifier(nil).Verify(gc, 0.4, true)
	if is, ok := issueTypes(res)["confidence_mismatch"]; !ok || is.Severity != entities.SeverityMedium {
		t.Errorf("issues = %+v, want medium confidence_mismatch", res.Issues)
	}
}

func TestFinalConfidence(t *testing.T) {
	tests := []struct {
		level    entities.ConfidenceLevel
		coverage float64
		issues   int
		want     float64
	}{
		{entities.ConfidenceHigh, 1, 0, 0.9},
		{entities.ConfidenceMedium, 0.5, 3, 0.7 * 0.5 * 0.85},
		{entities.ConfidenceHigh, 1, 20, 0.9 * 0.6},
		{entities.ConfidenceLow, 1, 1, 0.5 * 0.95},
	}
	for _, tt := range tests {
		if got := finalConfidence(tt.level, tt.coverage, tt.issues); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("finalConfidence(%s, %v, %d) = %v, want %v", tt.level, tt.coverage, tt.issues, got, tt.want)
		}
	}
}
