package pii

import (
	"sort"
	"strings"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

// Redact replaces every entity span with its token. A span overlapping an
// earlier-starting kept span is merged into it. Remaining copies of a detected
// value that the detectors did not match on their own (for example behind a
// word character) are replaced as well, so no detected substring survives.
// Entities outside text bounds are ignored.
func Redact(text string, ents []entities.PIIEntity) string {
	if len(ents) == 0 {
		return text
	}

	sorted := make([]entities.PIIEntity, 0, len(ents))
	for _, e := range ents {
		if e.Start < 0 || e.End > len(text) || e.Start >= e.End {
			continue
		}
		sorted = append(sorted, e)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].Len() > sorted[j].Len()
	})

	kept := MergeOverlaps(sorted)

	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for _, e := range kept {
		b.WriteString(text[cursor:e.Start])
		b.WriteString(tokenFor(e))
		cursor = e.End
	}
	b.WriteString(text[cursor:])
	return replaceRemaining(b.String(), ents)
}

// replaceRemaining swaps every leftover occurrence of a detected value for its
// token, longest value first
func replaceRemaining(text string, ents []entities.PIIEntity) string {
	tokens := make(map[string]string, len(ents))
	for _, e := range ents {
		if e.Text == "" {
			continue
		}
		if _, seen := tokens[e.Text]; !seen {
			tokens[e.Text] = tokenFor(e)
		}
	}
	if len(tokens) == 0 {
		return text
	}

	values := make([]string, 0, len(tokens))
	for v := range tokens {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		if len(values[i]) != len(values[j]) {
			return len(values[i]) > len(values[j])
		}
		return values[i] < values[j]
	})

	pairs := make([]string, 0, 2*len(values))
	for _, v := range values {
		pairs = append(pairs, v, tokens[v])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// MergeOverlaps collapses overlapping spans of sorted entities into the
// earliest-starting one, extending its end as needed
func MergeOverlaps(sorted []entities.PIIEntity) []entities.PIIEntity {
	kept := make([]entities.PIIEntity, 0, len(sorted))
	for _, e := range sorted {
		if n := len(kept); n > 0 && e.Start < kept[n-1].End {
			if e.End > kept[n-1].End {
				kept[n-1].End = e.End
			}
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

func tokenFor(e entities.PIIEntity) string {
	if e.Token != "" {
		return e.Token
	}
	return e.Type.Token()
}
