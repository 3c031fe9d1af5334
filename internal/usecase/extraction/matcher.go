package extraction

import (
	"regexp"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

const matcherName = "substring-matcher-1.0.0"

// Matcher attaches evidence pointers to every non-nil field of a draft
type Matcher struct{}

// NewMatcher creates a matcher
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Name identifies the matcher on extraction runs
func (m *Matcher) Name() string {
	return matcherName
}

// Match searches segments for each field value, case-insensitively, and records
// fields that have no supporting segment in draft.Unsupported.
func (m *Matcher) Match(d *Draft, segments []entities.NormalizedSegment, orgID, runID, sourceID uuid.UUID) error {
	d.Evidence = nil
	d.Unsupported = nil

	withEvidence := 0
	for _, field := range d.Target.Fields() {
		value, ok := d.Candidate.Value(field)
		if !ok {
			continue
		}
		seg, hit := findSegment(segments, value)
		if seg == nil {
			d.Unsupported = append(d.Unsupported, field)
			continue
		}
		quote := quoteAround(seg.Text, hit[0], hit[1]-hit[0], entities.EvidenceMaxQuoteLength)
		d.Evidence = append(d.Evidence, entities.NewEvidencePointer(orgID, runID, sourceID, seg.Sequence, field, quote))
		withEvidence++
	}

	if n := d.NonNullFields(); n > 0 {
		d.Traceability = float64(withEvidence) / float64(n)
		if d.Traceability > 1 {
			d.Traceability = 1
		}
	}
	return d.advance(StateEvidenceMatched)
}

// findSegment returns the first segment containing value, ignoring case, and
// the byte span of the hit in the segment's own text
func findSegment(segments []entities.NormalizedSegment, value string) (*entities.NormalizedSegment, []int) {
	pattern := regexp.MustCompile("(?i)" + regexp.QuoteMeta(value))
	for i := range segments {
		if hit := pattern.FindStringIndex(segments[i].Text); hit != nil {
			return &segments[i], hit
		}
	}
	return nil, nil
}

// quoteAround returns text when it fits, otherwise a window of at most limit
// bytes centered on the hit and aligned to rune boundaries.
func quoteAround(text string, hit, hitLen, limit int) string {
	if len(text) <= limit {
		return text
	}
	start := hit - (limit-hitLen)/2
	if start < 0 {
		start = 0
	}
	end := start + limit
	if end > len(text) {
		end = len(text)
		start = end - limit
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start++
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end--
	}
	return text[start:end]
}
