package extraction

import (
	"fmt"
	"math"
	"strings"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

// QAGoal selects how strict the review of a draft is
type QAGoal string

const (
	GoalZeroHallucinations QAGoal = "zero_hallucinations"
	GoalBoardReadySummary  QAGoal = "board_ready_summary"
	GoalMaximizeRecall     QAGoal = "maximize_recall"
)

const (
	qaName                    = "rule-qa-1.0.0"
	strictTraceabilityMinimum = 0.9
	traceabilityWarningLevel  = 0.7
	recallApprovalScore       = 0.5
	scorePenaltyPerIssue      = 0.2
)

// ParseQAGoal defaults an empty goal to zero_hallucinations
func ParseQAGoal(s string) (QAGoal, error) {
	switch g := QAGoal(strings.TrimSpace(s)); g {
	case "":
		return GoalZeroHallucinations, nil
	case GoalZeroHallucinations, GoalBoardReadySummary, GoalMaximizeRecall:
		return g, nil
	default:
		return "", fmt.Errorf("%w: %s", entities.ErrUnknownQAGoal, s)
	}
}

// Strict reports whether any issue rejects a draft
func (g QAGoal) Strict() bool {
	return g != GoalMaximizeRecall
}

// QAResult is the outcome of reviewing one draft
type QAResult struct {
	Approved bool
	Score    float64
	Issues   []string
	// Fabrication is set when a sensitive value has no quote containing it
	Fabrication bool
	// FabricatedFields lists the sensitive fields without supporting quotes
	FabricatedFields []string
	// LowTraceability is set below the warning level for every goal
	LowTraceability bool
}

// Review scores a matched draft against the goal and moves it to approved or rejected
func Review(d *Draft, goal QAGoal) (QAResult, error) {
	res := QAResult{Issues: []string{}}

	if len(d.Evidence) == 0 {
		res.Issues = append(res.Issues, "No evidence pointers found")
	}

	for _, field := range sensitiveFields {
		value, ok := d.Candidate.Value(field)
		if !ok {
			continue
		}
		if !quoted(allQuotes(d), value) {
			res.Fabrication = true
			res.FabricatedFields = append(res.FabricatedFields, field)
			res.Issues = append(res.Issues, fmt.Sprintf("Field '%s' value %q has no supporting evidence", field, value))
		}
	}

	if goal.Strict() && d.Traceability < strictTraceabilityMinimum {
		res.Issues = append(res.Issues, fmt.Sprintf("Traceability %.2f below %.2f required for %s", d.Traceability, strictTraceabilityMinimum, goal))
	}
	res.LowTraceability = d.Traceability < traceabilityWarningLevel

	res.Score = math.Max(0, 1-scorePenaltyPerIssue*float64(len(res.Issues)))
	if goal.Strict() {
		res.Approved = len(res.Issues) == 0
	} else {
		res.Approved = res.Score >= recallApprovalScore && !res.Fabrication
	}

	d.QA = res
	next := StateQARejected
	if res.Approved {
		next = StateQAApproved
	}
	return res, d.advance(next)
}

func allQuotes(d *Draft) []string {
	out := make([]string, 0, len(d.Evidence))
	for _, e := range d.Evidence {
		out = append(out, e.Quote)
	}
	return out
}

func quoted(quotes []string, value string) bool {
	needle := strings.ToLower(value)
	for _, q := range quotes {
		if strings.Contains(strings.ToLower(q), needle) {
			return true
		}
	}
	return false
}
