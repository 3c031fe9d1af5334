package extraction

import (
	"fmt"
	"strings"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

// Target is what a run extracts
type Target string

const (
	TargetDecisions   Target = "decisions"
	TargetActionItems Target = "action_items"
)

// Field names. Sensitive fields must be backed by a quote containing their value.
const (
	FieldDecision    = "decision"
	FieldRationale   = "rationale"
	FieldImpact      = "impact"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldOwnerName   = "owner_name"
	FieldOwnerEmail  = "owner_email"
	FieldDueDate     = "due_date"
	FieldPriority    = "priority"
	FieldCompany     = "company"
)

var sensitiveFields = []string{FieldOwnerName, FieldOwnerEmail, FieldDueDate, FieldCompany}

// Fields returns the ordered field list of a target
func (t Target) Fields() []string {
	switch t {
	case TargetDecisions:
		return []string{FieldDecision, FieldRationale, FieldImpact}
	case TargetActionItems:
		return []string{FieldTitle, FieldDescription, FieldOwnerName, FieldOwnerEmail, FieldDueDate, FieldPriority}
	default:
		return nil
	}
}

// RunType maps the target to the persisted run type
func (t Target) RunType() entities.ExtractionRunType {
	if t == TargetActionItems {
		return entities.ExtractionRunActionItems
	}
	return entities.ExtractionRunDecisions
}

// Candidate is a generator proposal. Absent optional fields are nil.
type Candidate struct {
	Fields     map[string]*string
	Confidence float64
}

// NewCandidate creates a candidate with all fields of target set to nil
func NewCandidate(t Target, confidence float64) Candidate {
	fields := make(map[string]*string, len(t.Fields()))
	for _, f := range t.Fields() {
		fields[f] = nil
	}
	return Candidate{Fields: fields, Confidence: confidence}
}

// Set assigns a field. Blank values are stored as nil.
func (c Candidate) Set(field, value string) Candidate {
	value = strings.TrimSpace(value)
	if value == "" {
		c.Fields[field] = nil
		return c
	}
	c.Fields[field] = &value
	return c
}

// Value returns the field value and whether it is non-nil
func (c Candidate) Value(field string) (string, bool) {
	v, ok := c.Fields[field]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// DraftState is the position of a draft in the Generator → Matcher → QA workflow
type DraftState string

const (
	StateDrafted         DraftState = "drafted"
	StateEvidenceMatched DraftState = "evidence_matched"
	StateQAApproved      DraftState = "qa_approved"
	StateQARejected      DraftState = "qa_rejected"
)

var allowedTransitions = map[DraftState][]DraftState{
	StateDrafted:         {StateEvidenceMatched},
	StateEvidenceMatched: {StateQAApproved, StateQARejected},
}

// Draft carries one candidate through the workflow
type Draft struct {
	Target       Target
	Candidate    Candidate
	State        DraftState
	Evidence     []*entities.EvidencePointer
	Unsupported  []string
	Traceability float64
	QA           QAResult
}

// NewDraft wraps a candidate in the drafted state
func NewDraft(t Target, c Candidate) *Draft {
	return &Draft{Target: t, Candidate: c, State: StateDrafted}
}

func (d *Draft) advance(to DraftState) error {
	for _, next := range allowedTransitions[d.State] {
		if next == to {
			d.State = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", entities.ErrInvalidStateTransition, d.State, to)
}

// NonNullFields counts fields with a value
func (d *Draft) NonNullFields() int {
	n := 0
	for _, f := range d.Target.Fields() {
		if _, ok := d.Candidate.Value(f); ok {
			n++
		}
	}
	return n
}
