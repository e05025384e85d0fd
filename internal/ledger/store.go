package ledger

import (
	"context"
	"time"

	id "consentgate/pkg/domain"
)

// Store persists ledger entries. Put overwrites any prior date for the same
// (user, term, kind) key; last write wins, which is acceptable because a
// user's ledger is not expected to race within one session.
type Store interface {
	Put(ctx context.Context, userID id.UserID, termID id.TermID, kind Kind, date time.Time) error
	Delete(ctx context.Context, userID id.UserID, termID id.TermID, kind Kind) error
	// Entries returns the user's ledger of the given kind as a term->date
	// map. A user with no entries yields an empty, non-nil map.
	Entries(ctx context.Context, userID id.UserID, kind Kind) (map[id.TermID]time.Time, error)
	// ScanRevocations streams every user holding at least one revoked entry,
	// with their full revoked map, to fn. A non-nil error from fn stops the
	// scan and is returned. Full table scan; admin use only.
	ScanRevocations(ctx context.Context, fn func(userID id.UserID, revoked map[id.TermID]time.Time) error) error
	// CountByTerm tallies entries of the given kind per term. Terms without
	// entries are absent from the map.
	CountByTerm(ctx context.Context, kind Kind) (map[id.TermID]int, error)
}
