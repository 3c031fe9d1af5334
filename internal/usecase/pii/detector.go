package pii

import (
	"regexp"
	"sort"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

// CategoryDetector finds entities of a single PII category
type CategoryDetector interface {
	Category() entities.PIIType
	Detect(text string) []entities.PIIEntity
}

// PatternDetector is a CategoryDetector backed by one or more regular expressions
type PatternDetector struct {
	category   entities.PIIType
	patterns   []*regexp.Regexp
	confidence float64
	method     string
}

// NewPatternDetector compiles patterns for a category. It panics on an invalid pattern.
func NewPatternDetector(category entities.PIIType, confidence float64, method string, patterns ...string) *PatternDetector {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return &PatternDetector{
		category:   category,
		patterns:   compiled,
		confidence: confidence,
		method:     method,
	}
}

// Category returns the detected category
func (d *PatternDetector) Category() entities.PIIType {
	return d.category
}

// Detect returns every match of every pattern
func (d *PatternDetector) Detect(text string) []entities.PIIEntity {
	var out []entities.PIIEntity
	for _, re := range d.patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			out = append(out, entities.PIIEntity{
				Type:       d.category,
				Text:       text[loc[0]:loc[1]],
				Token:      d.category.Token(),
				Start:      loc[0],
				End:        loc[1],
				Confidence: d.confidence,
				Method:     d.method,
			})
		}
	}
	return out
}

// DefaultDetectors returns the built-in detector set
func DefaultDetectors() []CategoryDetector {
	return []CategoryDetector{
		NewPatternDetector(entities.PIITypeEmail, 1.0, "regex",
			`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		NewPatternDetector(entities.PIITypePhone, 0.95, "regex",
			`\+1\s?\d{3}[-.\s]?\d{3}[-.\s]?\d{4}`,
			`\(\d{3}\)\s?\d{3}[-.\s]?\d{4}`,
			`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		NewPatternDetector(entities.PIITypeFinancialSSN, 1.0, "regex",
			`\b\d{3}-\d{2}-\d{4}\b`),
		NewPatternDetector(entities.PIITypeFinancialCC, 0.9, "regex",
			`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
		NewPatternDetector(entities.PIITypePersonName, 0.70, "pattern",
			`\b[A-Z][a-z]+ [A-Z][a-z]+\b`),
		NewPatternDetector(entities.PIITypeCompany, 0.75, "pattern",
			`\b(?:[A-Z][A-Za-z0-9&]*\s){1,3}(?:Inc|LLC|Ltd|Corp|Corporation|GmbH|AG|AB|PLC|Oy)\b\.?`),
		NewPatternDetector(entities.PIITypeAddress, 0.6, "pattern",
			`\b\d{1,5}\s(?:[A-Z][a-z]+\s){1,3}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Way|Court|Ct)\b\.?`),
		NewPatternDetector(entities.PIITypeHealth, 0.6, "keyword",
			`(?i)\b(?:diagnosed with|diabetes|cancer|chemotherapy|depression|pregnan(?:t|cy)|HIV|asthma|epilepsy|sick leave)\b`),
	}
}

// Detector runs a set of category detectors over text
type Detector struct {
	detectors []CategoryDetector
}

// Option configures a Detector
type Option func(*Detector)

// WithDetectors replaces the detector set
func WithDetectors(ds ...CategoryDetector) Option {
	return func(d *Detector) { d.detectors = ds }
}

// WithExtraDetector appends a detector to the set
func WithExtraDetector(cd CategoryDetector) Option {
	return func(d *Detector) { d.detectors = append(d.detectors, cd) }
}

// NewDetector creates a Detector with the default set unless overridden
func NewDetector(opts ...Option) *Detector {
	d := &Detector{detectors: DefaultDetectors()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns all entities sorted by start offset, longer spans first on ties.
// Offsets are byte offsets into text. The result is never nil.
func (d *Detector) Detect(text string) []entities.PIIEntity {
	out := make([]entities.PIIEntity, 0)
	type span struct {
		typ        entities.PIIType
		start, end int
	}
	seen := make(map[span]struct{})

	for _, cd := range d.detectors {
		for _, e := range cd.Detect(text) {
			key := span{e.Type, e.Start, e.End}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Len() > out[j].Len()
	})
	return out
}
