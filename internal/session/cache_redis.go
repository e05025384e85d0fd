package session

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	id "consentgate/pkg/domain"
)

var cacheLookupDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "consentgate_check_cache_lookup_duration_ms",
	Help:    "Latency of consent check-cache lookups in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const (
	checkAgainKeyPrefix   = "tos:chk:"
	graceExpiryKeyPrefix  = "tos:grace:"
	revokedTokenKeyPrefix = "trl:jti:"
)

// RedisCache is the production CheckCache and TokenRevocationList. Entries
// expire on their own: the check-again key lives until the instant it stores,
// the grace key lives until lockout plus a day of slack so an expired grace
// period is still observable on the next check.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

const graceKeySlack = 24 * time.Hour

func (c *RedisCache) getTime(ctx context.Context, key string) (time.Time, error) {
	start := time.Now()
	defer func() {
		cacheLookupDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	raw, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func (c *RedisCache) setTime(ctx context.Context, key string, t time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.client.Set(ctx, key, t.UTC().Format(time.RFC3339Nano), ttl).Err()
}

func (c *RedisCache) CheckAgainAt(ctx context.Context, sessionID id.SessionID) (time.Time, error) {
	return c.getTime(ctx, checkAgainKeyPrefix+sessionID.String())
}

func (c *RedisCache) SetCheckAgainAt(ctx context.Context, sessionID id.SessionID, t time.Time) error {
	return c.setTime(ctx, checkAgainKeyPrefix+sessionID.String(), t, time.Until(t))
}

func (c *RedisCache) ClearCheckAgainAt(ctx context.Context, sessionID id.SessionID) error {
	return c.client.Del(ctx, checkAgainKeyPrefix+sessionID.String()).Err()
}

func (c *RedisCache) GraceExpiresAt(ctx context.Context, sessionID id.SessionID) (time.Time, error) {
	return c.getTime(ctx, graceExpiryKeyPrefix+sessionID.String())
}

func (c *RedisCache) SetGraceExpiresAt(ctx context.Context, sessionID id.SessionID, t time.Time) error {
	return c.setTime(ctx, graceExpiryKeyPrefix+sessionID.String(), t, time.Until(t)+graceKeySlack)
}

func (c *RedisCache) ClearGraceExpiresAt(ctx context.Context, sessionID id.SessionID) error {
	return c.client.Del(ctx, graceExpiryKeyPrefix+sessionID.String()).Err()
}

// RevokeToken adds a token to the revocation list with TTL.
// Uses Redis SETEX for atomic set-with-expiry.
func (c *RedisCache) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	// Store "1" as a simple marker; the key existence is what matters.
	return c.client.Set(ctx, revokedTokenKeyPrefix+jti, "1", ttl).Err()
}

// IsRevoked checks if a token is in the revocation list.
// Returns false if the key doesn't exist (not revoked or expired).
func (c *RedisCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	_, err := c.client.Get(ctx, revokedTokenKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
