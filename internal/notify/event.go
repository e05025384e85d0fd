// Package notify carries the revocation notification path: the event raised
// when a user withdraws consent from a still-active term, the in-process bus
// that fans it out, and the email subscriber that informs the designated
// consent managers.
package notify

import (
	"consentgate/internal/directory"
	"consentgate/internal/terms"
)

// AgreementsRevoked announces that a user no longer consents to one or more
// terms that were active at revocation time.
type AgreementsRevoked struct {
	User      directory.User
	Terms     []terms.Term
	RequestID string
}

// NewAgreementsRevoked normalizes one-or-many revoked terms into an event.
func NewAgreementsRevoked(user directory.User, revoked []terms.Term, requestID string) AgreementsRevoked {
	return AgreementsRevoked{User: user, Terms: revoked, RequestID: requestID}
}
