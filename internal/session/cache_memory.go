package session

import (
	"context"
	"sync"
	"time"

	id "consentgate/pkg/domain"
)

// InMemoryCache implements CheckCache and TokenRevocationList for unit tests
// and single-process runs.
type InMemoryCache struct {
	mu      sync.RWMutex
	checkAt map[id.SessionID]time.Time
	graceAt map[id.SessionID]time.Time
	revoked map[string]time.Time
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		checkAt: make(map[id.SessionID]time.Time),
		graceAt: make(map[id.SessionID]time.Time),
		revoked: make(map[string]time.Time),
	}
}

func (c *InMemoryCache) CheckAgainAt(_ context.Context, sessionID id.SessionID) (time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.checkAt[sessionID], nil
}

func (c *InMemoryCache) SetCheckAgainAt(_ context.Context, sessionID id.SessionID, t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkAt[sessionID] = t
	return nil
}

func (c *InMemoryCache) ClearCheckAgainAt(_ context.Context, sessionID id.SessionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checkAt, sessionID)
	return nil
}

func (c *InMemoryCache) GraceExpiresAt(_ context.Context, sessionID id.SessionID) (time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graceAt[sessionID], nil
}

func (c *InMemoryCache) SetGraceExpiresAt(_ context.Context, sessionID id.SessionID, t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graceAt[sessionID] = t
	return nil
}

func (c *InMemoryCache) ClearGraceExpiresAt(_ context.Context, sessionID id.SessionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.graceAt, sessionID)
	return nil
}

func (c *InMemoryCache) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = time.Now().Add(ttl)
	return nil
}

func (c *InMemoryCache) IsRevoked(_ context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	expiry, ok := c.revoked[jti]
	return ok && time.Now().Before(expiry), nil
}
