package extraction

import (
	"context"
	"regexp"
	"strings"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

// Generator proposes candidates for one target from transcript segments
type Generator interface {
	Generate(ctx context.Context, target Target, segments []entities.NormalizedSegment) ([]Candidate, error)
	Name() string
}

const (
	heuristicGeneratorName   = "heuristic-1.0.0"
	heuristicDecisionConf    = 0.8
	heuristicOwnedActionConf = 0.85
)

var (
	sentenceEnd     = regexp.MustCompile(`[.!?]+(\s+|$)`)
	decisionPhrase  = regexp.MustCompile(`(?i)\b(?:we\s+)?(?:decided|agreed)\s+to\s+(.+)$`)
	ownerWillPhrase = regexp.MustCompile(`^([A-Z][a-z]+)\s+will\s+(.+)$`)
	ownerToPhrase   = regexp.MustCompile(`^([A-Z][a-z]+)\s+to\s+(.+)$`)
	emailInSentence = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	isoDate         = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
)

// Capitalized sentence openers that are not owners
var notOwners = map[string]struct{}{
	"I": {}, "We": {}, "You": {}, "They": {}, "He": {}, "She": {}, "It": {},
	"Someone": {}, "Somebody": {}, "Everyone": {}, "Everybody": {}, "Nobody": {},
	"This": {}, "That": {}, "These": {}, "Those": {}, "There": {}, "Who": {},
	"Need": {}, "Needs": {}, "Want": {}, "Going": {}, "Have": {}, "Plan": {},
	"Time": {}, "Remember": {}, "Try": {}, "Agreed": {}, "Decided": {},
	"Next": {}, "Also": {}, "So": {}, "And": {}, "But": {}, "Then": {}, "Nothing": {},
}

// HeuristicGenerator extracts candidates with fixed phrase patterns. It never
// fills a field whose value is not literally present in the sentence.
type HeuristicGenerator struct{}

// NewHeuristicGenerator creates a deterministic generator
func NewHeuristicGenerator() *HeuristicGenerator {
	return &HeuristicGenerator{}
}

func (g *HeuristicGenerator) Name() string {
	return heuristicGeneratorName
}

func (g *HeuristicGenerator) Generate(ctx context.Context, target Target, segments []entities.NormalizedSegment) ([]Candidate, error) {
	var out []Candidate
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, sentence := range splitSentences(seg.Text) {
			switch target {
			case TargetDecisions:
				if c, ok := decisionFrom(sentence); ok {
					out = append(out, c)
				}
			case TargetActionItems:
				if c, ok := actionItemFrom(sentence); ok {
					out = append(out, c)
				}
			}
		}
	}
	return out, nil
}

func decisionFrom(sentence string) (Candidate, bool) {
	m := decisionPhrase.FindStringSubmatch(sentence)
	if m == nil {
		return Candidate{}, false
	}
	text := strings.TrimSpace(m[1])
	if text == "" {
		return Candidate{}, false
	}
	return NewCandidate(TargetDecisions, heuristicDecisionConf).Set(FieldDecision, text), true
}

func actionItemFrom(sentence string) (Candidate, bool) {
	m := ownerWillPhrase.FindStringSubmatch(sentence)
	if m == nil {
		m = ownerToPhrase.FindStringSubmatch(sentence)
	}
	if m == nil {
		return Candidate{}, false
	}
	if _, skip := notOwners[m[1]]; skip {
		return Candidate{}, false
	}
	title := strings.TrimSpace(m[2])
	if title == "" {
		return Candidate{}, false
	}

	c := NewCandidate(TargetActionItems, heuristicOwnedActionConf).
		Set(FieldTitle, title).
		Set(FieldOwnerName, m[1])
	if email := emailInSentence.FindString(sentence); email != "" {
		c = c.Set(FieldOwnerEmail, email)
	}
	if date := isoDate.FindString(sentence); date != "" {
		c = c.Set(FieldDueDate, date)
	}
	return c, true
}

// splitSentences splits on terminal punctuation followed by whitespace or end
// of text. Terminal punctuation is dropped.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[0]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
