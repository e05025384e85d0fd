package terms

import (
	"time"

	id "consentgate/pkg/domain"
	dErrors "consentgate/pkg/domain-errors"
)

// WorkflowState is the externally owned activation workflow of a term.
// Invariant: the value must be one of the supported states.
type WorkflowState string

const (
	StateDraft    WorkflowState = "draft"
	StateEnabled  WorkflowState = "enabled"
	StateDisabled WorkflowState = "disabled"
)

var validStates = map[WorkflowState]bool{
	StateDraft:    true,
	StateEnabled:  true,
	StateDisabled: true,
}

// ParseWorkflowState constructs a WorkflowState from external input.
func ParseWorkflowState(s string) (WorkflowState, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "workflow state cannot be empty")
	}
	ws := WorkflowState(s)
	if !validStates[ws] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid workflow state: "+s)
	}
	return ws, nil
}

func (s WorkflowState) String() string { return string(s) }

// Term is one versioned terms-of-service document. The body and revoke
// consequence text are opaque HTML owned by the editing surface.
type Term struct {
	ID            id.TermID
	Title         string
	Body          string
	RevokeBody    string
	CollapseText  bool
	Lang          string
	EffectiveDate time.Time // date precision; zero means not yet scheduled
	State         WorkflowState

	// Revoke confirmation policy flags.
	CheckPasswordOnRevoke bool
	CheckTypedOnRevoke    bool
}

// IsActive reports whether the term currently binds users: the workflow must
// have it enabled and the effective date must have passed.
func (t Term) IsActive(now time.Time) bool {
	if t.State != StateEnabled {
		return false
	}
	if t.EffectiveDate.IsZero() {
		return false
	}
	return !DateOf(now).Before(DateOf(t.EffectiveDate))
}

// DateOf truncates a timestamp to its UTC calendar date. Ledger entries and
// effective dates carry date precision only.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
