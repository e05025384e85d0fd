package terms

import (
	"context"

	id "consentgate/pkg/domain"
)

// Visibility selects whether a lookup honours the caller's permissions or
// bypasses them. Internal enforcement resolves terms with VisibilityBypass so
// a user cannot dodge a term they are not allowed to view.
type Visibility int

const (
	VisibilityEnforced Visibility = iota
	VisibilityBypass
)

// Store is the queryable index of term documents. Workflow transitions are
// owned by the surrounding content-management system; this store only
// persists and filters.
type Store interface {
	Save(ctx context.Context, term Term) error
	Get(ctx context.Context, termID id.TermID, vis Visibility) (Term, error)
	// ListByState returns all terms in the given workflow state, resolved
	// with the requested visibility. Ordering is unspecified; callers sort.
	ListByState(ctx context.Context, state WorkflowState, vis Visibility) ([]Term, error)
	Delete(ctx context.Context, termID id.TermID) error
}
