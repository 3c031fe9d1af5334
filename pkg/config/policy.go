package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy holds the tunable pipeline rules read from the YAML policy file
type Policy struct {
	RetentionDays        map[string]int      `yaml:"retention_days"`
	DefaultRetentionDays int                 `yaml:"default_retention_days"`
	ContentTypes         map[string][]string `yaml:"content_types"`
	Verification         VerificationPolicy  `yaml:"verification"`
}

// VerificationPolicy holds the quality gate thresholds
type VerificationPolicy struct {
	MinCitationCoverage float64 `yaml:"min_citation_coverage"`
	OutputMode          string  `yaml:"output_mode"`
}

// DefaultPolicy returns the built-in rules
func DefaultPolicy() *Policy {
	return &Policy{
		RetentionDays: map[string]int{
			"meeting_minutes": 1095,
			"training_data":   2555,
			"analytics":       730,
			"compliance":      3650,
			"temporary":       30,
		},
		DefaultRetentionDays: 365,
		ContentTypes: map[string][]string{
			"pitch_deck":      {"due_diligence", "swot_analysis", "executive_summary"},
			"financial":       {"financial_summary", "risk_assessment"},
			"market_research": {"market_analysis", "competitive_analysis"},
			"default":         {"executive_summary"},
		},
		Verification: VerificationPolicy{
			MinCitationCoverage: 0.85,
			OutputMode:          "internal",
		},
	}
}

// LoadPolicy reads a YAML policy file and overlays it on the defaults.
// An empty path returns the defaults.
func LoadPolicy(path string) (*Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var file Policy
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	for purpose, days := range file.RetentionDays {
		if days <= 0 {
			return nil, fmt.Errorf("retention_days.%s must be positive", purpose)
		}
		p.RetentionDays[purpose] = days
	}
	if file.DefaultRetentionDays > 0 {
		p.DefaultRetentionDays = file.DefaultRetentionDays
	}
	for docType, types := range file.ContentTypes {
		p.ContentTypes[docType] = types
	}
	if file.Verification.MinCitationCoverage > 0 {
		if file.Verification.MinCitationCoverage > 1 {
			return nil, fmt.Errorf("verification.min_citation_coverage must be at most 1")
		}
		p.Verification.MinCitationCoverage = file.Verification.MinCitationCoverage
	}
	if file.Verification.OutputMode != "" {
		p.Verification.OutputMode = file.Verification.OutputMode
	}
	return p, nil
}

// ContentTypesFor returns the default report types for a document type.
// An exact key wins, then the longest key that prefixes the document type, then "default".
func (p *Policy) ContentTypesFor(documentType string) []string {
	if types, ok := p.ContentTypes[documentType]; ok {
		return types
	}
	best := ""
	for key := range p.ContentTypes {
		if key == "default" {
			continue
		}
		if strings.HasPrefix(documentType, key) && len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		return p.ContentTypes[best]
	}
	return p.ContentTypes["default"]
}
