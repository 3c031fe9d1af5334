package document

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/pii"
)

const verifierVersion = "1.0.0"

const (
	maxPhraseHits          = 3
	estimateCitationWindow = 50
	mismatchCoverage       = 0.8
	maxMediumIssues        = 5
	issuePenaltyPerIssue   = 0.05
	maxIssuePenalty        = 0.4
	recommendedMinCoverage = 0.8
)

var forbiddenPhrases = []string{
	"typically", "usually", "often", "generally", "commonly",
	"industry standard", "best practice", "it is likely", "probably",
	"presumably", "one can assume", "it can be inferred",
}

var placeholders = []string{"lorem ipsum", "xxx", "tbd", "todo", "placeholder", "example.com"}

var requiredSections = map[entities.ContentType][]string{
	entities.ContentDueDiligence:   {"Executive Summary", "Unknown", "Missing Data", "Sources"},
	entities.ContentSWOTAnalysis:   {"Strengths", "Weaknesses", "Opportunities", "Threats", "Sources"},
	entities.ContentInvestmentMemo: {"Investment Thesis", "Key Metrics", "Risks", "Sources"},
	entities.ContentRiskAssessment: {"Risks", "Sources"},
}

var (
	phrasePatterns      = compileWordPatterns(`(?i).{0,50}\b%s\b.{0,50}`, forbiddenPhrases)
	placeholderPatterns = compileWordPatterns(`(?i)\b%s\b`, placeholders)
	estimateWord        = regexp.MustCompile(`(?i)\b(?:estimated|approximately)\b`)
	titleLine           = regexp.MustCompile(`(?m)^#\s+.+`)
)

func compileWordPatterns(format string, words []string) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(words))
	for _, w := range words {
		out[w] = regexp.MustCompile(fmt.Sprintf(format, regexp.QuoteMeta(w)))
	}
	return out
}

// piiCategories are the categories that block release of generated content
var piiCategories = []entities.PIIType{
	entities.PIITypeEmail,
	entities.PIITypePhone,
	entities.PIITypeFinancialSSN,
	entities.PIITypeFinancialCC,
}

// Verifier is the quality gate for generated reports
type Verifier struct {
	detector *pii.Detector
}

// NewVerifier creates a verifier. A nil detector uses the default set.
func NewVerifier(detector *pii.Detector) *Verifier {
	if detector == nil {
		detector = pii.NewDetector()
	}
	return &Verifier{detector: detector}
}

// Verify checks one report. It never fails; problems become issues.
func (v *Verifier) Verify(content *entities.GeneratedContent, minCoverage float64, allowPII bool) entities.VerificationResult {
	md := content.ContentMarkdown
	var issues []entities.VerificationIssue

	issues = append(issues, verifyCitations(md, content.Citations, minCoverage)...)
	hallucinations := detectHallucinations(md)
	issues = append(issues, hallucinations...)
	var piiIssues []entities.VerificationIssue
	if !allowPII {
		piiIssues = v.detectPII(md)
		issues = append(issues, piiIssues...)
	}
	formatIssues := verifyFormat(md)
	issues = append(issues, formatIssues...)
	issues = append(issues, verifyRequiredSections(md, content.ContentType)...)
	if content.CitationCoverage < mismatchCoverage && content.ConfidenceLevel == entities.ConfidenceHigh {
		issues = append(issues, entities.VerificationIssue{
			IssueType:   "confidence_mismatch",
			Severity:    entities.SeverityMedium,
			Description: "High confidence claimed but citation coverage is low",
			Suggestion:  "Lower confidence level or add more citations",
		})
	}

	res := entities.VerificationResult{
		Issues:                issues,
		PIIDetected:           len(piiIssues) > 0,
		HallucinationDetected: len(hallucinations) > 0,
		FormatValid:           len(formatIssues) == 0,
		VerifierVersion:       verifierVersion,
	}
	if res.Issues == nil {
		res.Issues = []entities.VerificationIssue{}
	}
	for _, is := range issues {
		switch is.Severity {
		case entities.SeverityCritical:
			res.CriticalIssues++
		case entities.SeverityHigh:
			res.HighIssues++
		case entities.SeverityMedium:
			res.MediumIssues++
		default:
			res.LowIssues++
		}
	}

	switch {
	case res.CriticalIssues > 0:
		res.Status = entities.VerificationRejected
	case res.HighIssues > 0 || res.MediumIssues > maxMediumIssues:
		res.Status = entities.VerificationRequiresReview
	default:
		res.Status = entities.VerificationApproved
		res.Approved = true
	}

	res.CitationCoverageActual, _, _ = citationCoverage(md)
	res.FinalConfidence = finalConfidence(content.ConfidenceLevel, res.CitationCoverageActual, len(issues))
	res.Recommendations = recommendations(issues, content.CitationCoverage)
	return res
}

func verifyCitations(md string, citations []entities.Citation, minCoverage float64) []entities.VerificationIssue {
	var issues []entities.VerificationIssue
	coverage, _, uncited := citationCoverage(md)
	if uncited > 0 && coverage < minCoverage {
		issues = append(issues, entities.VerificationIssue{
			IssueType: "missing_citations",
			Severity:  entities.SeverityCritical,
			Description: fmt.Sprintf("Only %d%% of factual claims are cited (minimum: %d%%)",
				int(math.Round(coverage*100)), int(math.Round(minCoverage*100))),
			Location:   "Throughout document",
			Suggestion: fmt.Sprintf("Add citations to %d uncited factual claims", uncited),
		})
	}

	refs := make(map[string]struct{}, len(citations))
	for _, c := range citations {
		refs[c.RefID] = struct{}{}
	}
	markers := map[string]struct{}{}
	for _, m := range citationMarker.FindAllString(bodyWithoutSources(md), -1) {
		markers[m] = struct{}{}
	}
	sorted := make([]string, 0, len(markers))
	for m := range markers {
		sorted = append(sorted, m)
	}
	sort.Strings(sorted)
	for _, m := range sorted {
		if _, ok := refs[m]; !ok {
			issues = append(issues, entities.VerificationIssue{
				IssueType:   "invalid_citation",
				Severity:    entities.SeverityHigh,
				Description: fmt.Sprintf("Citation marker %s has no corresponding source", m),
				Suggestion:  "Add source to references or remove marker",
			})
		}
	}

	for _, c := range citations {
		if c.URL != "" && !strings.HasPrefix(c.URL, "http") {
			issues = append(issues, entities.VerificationIssue{
				IssueType:   "invalid_url",
				Severity:    entities.SeverityMedium,
				Description: fmt.Sprintf("Invalid URL format in %s", c.RefID),
				Location:    truncateRunes(c.SourceText, 100),
			})
		}
	}
	return issues
}

func detectHallucinations(md string) []entities.VerificationIssue {
	var issues []entities.VerificationIssue
	for _, phrase := range forbiddenPhrases {
		for _, match := range phrasePatterns[phrase].FindAllString(md, maxPhraseHits) {
			if strings.ContainsAny(match, `"'`) {
				continue
			}
			issues = append(issues, entities.VerificationIssue{
				IssueType:   "hallucination_risk",
				Severity:    entities.SeverityCritical,
				Description: fmt.Sprintf("Forbidden phrase '%s' suggests hallucination", phrase),
				Location:    strings.TrimSpace(match),
				Suggestion:  "Remove unsupported generalization or provide citation",
			})
		}
	}

	// an estimate is cited when a marker follows on the same line within the window
	for _, loc := range estimateWord.FindAllStringIndex(md, -1) {
		window := truncateRunes(md[loc[1]:], estimateCitationWindow)
		if i := strings.IndexByte(window, '\n'); i >= 0 {
			window = window[:i]
		}
		if citationMarker.MatchString(window) {
			continue
		}
		match := md[loc[0]:loc[1]] + window
		issues = append(issues, entities.VerificationIssue{
			IssueType:   "unsupported_estimate",
			Severity:    entities.SeverityHigh,
			Description: "Estimate provided without source citation",
			Location:    truncateRunes(match, 80),
			Suggestion:  "Cite source or state explicitly that this is an assumption",
		})
	}

	for _, p := range placeholders {
		if placeholderPatterns[p].MatchString(md) {
			issues = append(issues, entities.VerificationIssue{
				IssueType:   "placeholder_data",
				Severity:    entities.SeverityCritical,
				Description: fmt.Sprintf("Placeholder text detected: '%s'", p),
				Suggestion:  "Replace with real data or remove",
			})
		}
	}
	return issues
}

func (v *Verifier) detectPII(md string) []entities.VerificationIssue {
	counts := map[entities.PIIType]int{}
	for _, e := range v.detector.Detect(md) {
		counts[e.Type]++
	}
	var issues []entities.VerificationIssue
	for _, typ := range piiCategories {
		if n := counts[typ]; n > 0 {
			issues = append(issues, entities.VerificationIssue{
				IssueType:   "pii_detected",
				Severity:    entities.SeverityCritical,
				Description: fmt.Sprintf("%s detected in external-facing content", strings.ToUpper(string(typ))),
				Location:    fmt.Sprintf("Found %d instances", n),
				Suggestion:  "Redact or mask PII before external release",
			})
		}
	}
	return issues
}

func verifyFormat(md string) []entities.VerificationIssue {
	var issues []entities.VerificationIssue
	if !strings.Contains(md, "## Sources") && !strings.Contains(md, "## References") {
		issues = append(issues, entities.VerificationIssue{
			IssueType:   "missing_sources",
			Severity:    entities.SeverityHigh,
			Description: "No sources/references section found",
			Suggestion:  "Add '## Sources' section with all citations",
		})
	}
	if !titleLine.MatchString(md) {
		issues = append(issues, entities.VerificationIssue{
			IssueType:   "missing_title",
			Severity:    entities.SeverityMedium,
			Description: "No title heading found",
			Suggestion:  "Add title with # heading",
		})
	}
	return issues
}

func verifyRequiredSections(md string, contentType entities.ContentType) []entities.VerificationIssue {
	required, ok := requiredSections[contentType]
	if !ok {
		required = []string{"Sources"}
	}
	lower := strings.ToLower(md)
	var issues []entities.VerificationIssue
	for _, section := range required {
		if strings.Contains(lower, strings.ToLower(section)) {
			continue
		}
		severity := entities.SeverityMedium
		if section == "Sources" || section == "Unknown" {
			severity = entities.SeverityHigh
		}
		issues = append(issues, entities.VerificationIssue{
			IssueType:   "missing_section",
			Severity:    severity,
			Description: "Required section missing: " + section,
			Suggestion:  fmt.Sprintf("Add '%s' section", section),
		})
	}
	return issues
}

func finalConfidence(level entities.ConfidenceLevel, coverage float64, issueCount int) float64 {
	base := 0.5
	switch level {
	case entities.ConfidenceHigh:
		base = 0.9
	case entities.ConfidenceMedium:
		base = 0.7
	}
	penalty := math.Min(maxIssuePenalty, issuePenaltyPerIssue*float64(issueCount))
	return math.Max(0, math.Min(1, base*coverage*(1-penalty)))
}

func recommendations(issues []entities.VerificationIssue, claimedCoverage float64) []string {
	byType := map[string][]entities.VerificationIssue{}
	for _, is := range issues {
		byType[is.IssueType] = append(byType[is.IssueType], is)
	}

	var out []string
	if _, ok := byType["missing_citations"]; ok {
		out = append(out, "Add citations to all factual claims")
	}
	if _, ok := byType["hallucination_risk"]; ok {
		out = append(out, "Remove unsupported generalizations or add sources")
	}
	if _, ok := byType["pii_detected"]; ok {
		out = append(out, "Redact PII before external release")
	}
	if missing := byType["missing_section"]; len(missing) > 0 {
		names := make([]string, len(missing))
		for i, is := range missing {
			names[i] = strings.TrimPrefix(is.Description, "Required section missing: ")
		}
		out = append(out, "Add required sections: "+strings.Join(names, ", "))
	}
	if claimedCoverage < recommendedMinCoverage {
		out = append(out, "Increase citation coverage to at least 80%")
	}
	if len(out) == 0 {
		out = append(out, "Content meets quality standards - approved for release")
	}
	return out
}
