package settings

import (
	"context"
	"sync"
)

// InMemoryStore keeps the singleton in memory. Used by unit tests and local
// runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	settings Settings
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load(_ context.Context) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.settings
	out.ConsentManagerIDs = append(out.ConsentManagerIDs[:0:0], s.settings.ConsentManagerIDs...)
	return out, nil
}

func (s *InMemoryStore) Save(_ context.Context, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}
