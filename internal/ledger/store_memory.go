package ledger

import (
	"context"
	"sync"
	"time"

	id "consentgate/pkg/domain"
)

type key struct {
	user id.UserID
	term id.TermID
	kind Kind
}

// InMemoryStore keeps ledger entries in a map. Used by unit tests and local
// runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[key]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[key]time.Time)}
}

func (s *InMemoryStore) Put(_ context.Context, userID id.UserID, termID id.TermID, kind Kind, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key{userID, termID, kind}] = date
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID id.UserID, termID id.TermID, kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key{userID, termID, kind})
	return nil
}

func (s *InMemoryStore) Entries(_ context.Context, userID id.UserID, kind Kind) (map[id.TermID]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.TermID]time.Time)
	for k, date := range s.entries {
		if k.user == userID && k.kind == kind {
			out[k.term] = date
		}
	}
	return out, nil
}

func (s *InMemoryStore) CountByTerm(_ context.Context, kind Kind) (map[id.TermID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.TermID]int)
	for k := range s.entries {
		if k.kind == kind {
			out[k.term]++
		}
	}
	return out, nil
}

func (s *InMemoryStore) ScanRevocations(_ context.Context, fn func(userID id.UserID, revoked map[id.TermID]time.Time) error) error {
	s.mu.RLock()
	byUser := make(map[id.UserID]map[id.TermID]time.Time)
	for k, date := range s.entries {
		if k.kind != KindRevoked {
			continue
		}
		if byUser[k.user] == nil {
			byUser[k.user] = make(map[id.TermID]time.Time)
		}
		byUser[k.user][k.term] = date
	}
	s.mu.RUnlock()

	for userID, revoked := range byUser {
		if err := fn(userID, revoked); err != nil {
			return err
		}
	}
	return nil
}
