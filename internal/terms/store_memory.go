package terms

import (
	"context"
	"sync"

	id "consentgate/pkg/domain"
	"consentgate/pkg/platform/sentinel"
)

// ViewPolicy decides whether the requesting actor may see a term under
// enforced visibility. A nil policy allows everything.
type ViewPolicy interface {
	CanView(ctx context.Context, term Term) bool
}

// InMemoryStore keeps terms in a map. Used by unit tests and local runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	terms  map[id.TermID]Term
	policy ViewPolicy
}

type InMemoryOption func(*InMemoryStore)

// WithViewPolicy installs a visibility policy for enforced lookups.
func WithViewPolicy(p ViewPolicy) InMemoryOption {
	return func(s *InMemoryStore) { s.policy = p }
}

func NewInMemoryStore(opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{terms: make(map[id.TermID]Term)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) visible(ctx context.Context, term Term, vis Visibility) bool {
	if vis == VisibilityBypass || s.policy == nil {
		return true
	}
	return s.policy.CanView(ctx, term)
}

func (s *InMemoryStore) Save(_ context.Context, term Term) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terms[term.ID] = term
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, termID id.TermID, vis Visibility) (Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	term, ok := s.terms[termID]
	if !ok || !s.visible(ctx, term, vis) {
		return Term{}, sentinel.ErrNotFound
	}
	return term, nil
}

func (s *InMemoryStore) ListByState(ctx context.Context, state WorkflowState, vis Visibility) ([]Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Term
	for _, term := range s.terms {
		if term.State == state && s.visible(ctx, term, vis) {
			out = append(out, term)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, termID id.TermID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.terms[termID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.terms, termID)
	return nil
}
