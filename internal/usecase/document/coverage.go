package document

import (
	"regexp"
	"strings"
)

var (
	sourcesHeading  = regexp.MustCompile(`\n#+\s*Sources\s*\n`)
	sentenceBreak   = regexp.MustCompile(`[.!?]+`)
	citationMarker  = regexp.MustCompile(`\[\^\d+\]`)
	wordToken       = regexp.MustCompile(`[a-z]+`)
	factualKeywords = map[string]struct{}{
		"is": {}, "are": {}, "was": {}, "were": {}, "has": {}, "have": {}, "had": {},
		"shows": {}, "reports": {}, "states": {}, "indicates": {},
		"million": {}, "billion": {}, "founded": {}, "raised": {},
		"revenue": {}, "growth": {}, "team": {}, "market": {}, "customer": {},
	}
)

const minFactualSentenceLength = 20

// bodyWithoutSources drops everything from the Sources heading on
func bodyWithoutSources(markdown string) string {
	if loc := sourcesHeading.FindStringIndex(markdown); loc != nil {
		return markdown[:loc[0]]
	}
	return markdown
}

// factualSentences returns body sentences that look like factual claims
func factualSentences(markdown string) []string {
	var out []string
	for _, s := range sentenceBreak.Split(bodyWithoutSources(markdown), -1) {
		s = strings.TrimSpace(s)
		if len(s) <= minFactualSentenceLength {
			continue
		}
		if isFactual(s) {
			out = append(out, s)
		}
	}
	return out
}

func isFactual(sentence string) bool {
	if strings.ContainsAny(sentence, "$%") {
		return true
	}
	for _, w := range wordToken.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := factualKeywords[w]; ok {
			return true
		}
	}
	return false
}

// citationCoverage is the share of factual sentences carrying a citation
// marker. Content without factual sentences is fully covered.
func citationCoverage(markdown string) (coverage float64, factual, uncited int) {
	sentences := factualSentences(markdown)
	if len(sentences) == 0 {
		return 1, 0, 0
	}
	for _, s := range sentences {
		if !citationMarker.MatchString(s) {
			uncited++
		}
	}
	return 1 - float64(uncited)/float64(len(sentences)), len(sentences), uncited
}
