package directory

import (
	"context"
	"sort"
	"sync"

	id "consentgate/pkg/domain"
	"consentgate/pkg/platform/sentinel"
)

// InMemoryDirectory is a map-backed Directory for tests and local runs.
type InMemoryDirectory struct {
	mu    sync.RWMutex
	users map[id.UserID]User
}

func NewInMemoryDirectory(users ...User) *InMemoryDirectory {
	d := &InMemoryDirectory{users: make(map[id.UserID]User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *InMemoryDirectory) Add(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *InMemoryDirectory) Get(_ context.Context, userID id.UserID) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return User{}, sentinel.ErrNotFound
	}
	return u, nil
}

func (d *InMemoryDirectory) Scan(_ context.Context, fn func(User) error) error {
	d.mu.RLock()
	snapshot := make([]User, 0, len(d.users))
	for _, u := range d.users {
		snapshot = append(snapshot, u)
	}
	d.mu.RUnlock()

	// Stable order keeps tests deterministic.
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID.String() < snapshot[j].ID.String() })
	for _, u := range snapshot {
		if err := fn(u); err != nil {
			return err
		}
	}
	return nil
}
