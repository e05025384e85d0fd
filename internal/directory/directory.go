// Package directory is the narrow view of the surrounding identity substrate
// that the consent subsystem needs: resolve a user id, walk all users.
package directory

import (
	"context"

	id "consentgate/pkg/domain"
)

// User is the slice of the platform user the consent layer cares about.
type User struct {
	ID    id.UserID
	Title string
	Email string
}

// Directory resolves and enumerates users.
type Directory interface {
	Get(ctx context.Context, userID id.UserID) (User, error)
	// Scan streams every user to fn. A non-nil error from fn stops the walk
	// and is returned. Full scan; admin use only.
	Scan(ctx context.Context, fn func(User) error) error
}
