// Package session holds the ephemeral per-browser-session state: the two
// consent check-cache timestamps and the token revocation list used for
// forced logout. Both are independent of the persisted consent ledgers.
package session

import (
	"context"
	"time"

	id "consentgate/pkg/domain"
)

// CheckCache stores two optional timestamps per session:
//
//   - check again at: consent was verified recently; skip re-checking until
//     this instant.
//   - grace expires at: missing consent was detected at some point; the user
//     is locked out once this instant passes.
//
// Absence is reported as the zero time, never an error.
type CheckCache interface {
	CheckAgainAt(ctx context.Context, sessionID id.SessionID) (time.Time, error)
	SetCheckAgainAt(ctx context.Context, sessionID id.SessionID, t time.Time) error
	ClearCheckAgainAt(ctx context.Context, sessionID id.SessionID) error

	GraceExpiresAt(ctx context.Context, sessionID id.SessionID) (time.Time, error)
	SetGraceExpiresAt(ctx context.Context, sessionID id.SessionID, t time.Time) error
	ClearGraceExpiresAt(ctx context.Context, sessionID id.SessionID) error
}

// TokenRevocationList records revoked token ids so the auth middleware can
// reject credentials after a forced logout.
type TokenRevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
