package terms

// Enforcement outcomes from Manager.CheckTerms. Both are error values so the
// calling boundary can distinguish them with errors.As and react: a
// NeedsAcceptanceError renders the acceptance prompt and lets the request
// proceed, a NotAcceptedError forces logout.

// NeedsAcceptanceError is the recoverable signal: at least one applicable
// term is unaccepted and the grace period has not elapsed.
type NeedsAcceptanceError struct {
	Pending []Term
}

func (e *NeedsAcceptanceError) Error() string {
	if len(e.Pending) == 1 {
		return "terms need acceptance: " + e.Pending[0].ID.String()
	}
	return "terms need acceptance"
}

// NotAcceptedError is fatal for the request: the grace period has elapsed
// with terms still unaccepted. The boundary must invalidate the session.
type NotAcceptedError struct {
	Pending []Term
}

func (e *NotAcceptedError) Error() string {
	return "terms not accepted and grace period expired"
}
