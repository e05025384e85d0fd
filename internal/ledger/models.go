// Package ledger is the per-user consent bookkeeping: one keyed table of
// (user, term, kind) -> date entries. The agreed kind records acceptance of a
// term version; the revoked kind records an explicit withdrawal of consent
// for a term that was active at the time.
//
// The ledger performs no validity checks on term ids; callers own that.
package ledger

// Kind discriminates the two ledgers kept per user.
type Kind string

const (
	KindAgreed  Kind = "agreed"
	KindRevoked Kind = "revoked"
)
