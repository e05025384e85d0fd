package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"consentgate/internal/ledger"
	"consentgate/internal/terms"
	"consentgate/internal/terms/service"
	id "consentgate/pkg/domain"
	dErrors "consentgate/pkg/domain-errors"
	"consentgate/pkg/platform/sentinel"
	"consentgate/pkg/requestcontext"
)

// PasswordVerifier re-checks the acting user's password for terms flagged
// with the password-on-revoke policy.
type PasswordVerifier interface {
	Verify(ctx context.Context, userID id.UserID, password string) error
}

// Handler is the thin HTTP layer over the consent manager. It delegates to
// the domain services without embedding business logic.
type Handler struct {
	manager   *service.Manager
	terms     terms.Store
	ledger    ledger.Store
	passwords PasswordVerifier
}

func NewHandler(manager *service.Manager, termStore terms.Store, ledgerStore ledger.Store, passwords PasswordVerifier) *Handler {
	return &Handler{manager: manager, terms: termStore, ledger: ledgerStore, passwords: passwords}
}

type termView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	RevokeBody   string `json:"revoke_body,omitempty"`
	CollapseText bool   `json:"collapse_text"`
	Lang         string `json:"lang,omitempty"`
	// Revoke confirmation policy, so the frontend can render the right form.
	CheckPasswordOnRevoke bool `json:"check_password_on_revoke"`
	CheckTypedOnRevoke    bool `json:"check_typed_on_revoke"`
}

func toTermView(t terms.Term) termView {
	return termView{
		ID:                    t.ID.String(),
		Title:                 t.Title,
		Body:                  t.Body,
		RevokeBody:            t.RevokeBody,
		CollapseText:          t.CollapseText,
		Lang:                  t.Lang,
		CheckPasswordOnRevoke: t.CheckPasswordOnRevoke,
		CheckTypedOnRevoke:    t.CheckTypedOnRevoke,
	}
}

// handlePending lists the active terms the user still needs to accept.
func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.manager.FindTOS(r.Context(), true)
	if err != nil {
		writeError(w, err)
		return
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Title < pending[j].Title })
	views := make([]termView, 0, len(pending))
	for _, t := range pending {
		views = append(views, toTermView(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"terms": views})
}

type agreeRequest struct {
	TermIDs []string `json:"term_ids"`
}

// handleAgree records acceptance of the listed terms.
func (h *Handler) handleAgree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req agreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	if len(req.TermIDs) == 0 {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "term_ids must not be empty"))
		return
	}

	accepted := make([]terms.Term, 0, len(req.TermIDs))
	for _, raw := range req.TermIDs {
		termID, err := id.ParseTermID(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		t, err := h.terms.Get(ctx, termID, terms.VisibilityBypass)
		if errors.Is(err, sentinel.ErrNotFound) {
			writeError(w, dErrors.New(dErrors.CodeNotFound, "unknown term: "+raw))
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		accepted = append(accepted, t)
	}

	if err := h.manager.AgreeTo(ctx, accepted); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": len(accepted)})
}

type revokeRequest struct {
	TermID string `json:"term_id"`
	// ConfirmTitle must repeat the term title when the term demands a typed
	// confirmation.
	ConfirmTitle string `json:"confirm_title,omitempty"`
	// Password is re-checked when the term demands it.
	Password string `json:"password,omitempty"`
}

// handleRevoke withdraws consent from one term, enforcing the term's revoke
// confirmation policy first.
func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	termID, err := id.ParseTermID(req.TermID)
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := h.terms.Get(ctx, termID, terms.VisibilityBypass)
	if errors.Is(err, sentinel.ErrNotFound) {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "unknown term"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if t.CheckTypedOnRevoke && req.ConfirmTitle != t.Title {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "typed confirmation does not match the term title"))
		return
	}
	if t.CheckPasswordOnRevoke {
		if h.passwords == nil {
			writeError(w, dErrors.New(dErrors.CodeInternal, "password verification not configured"))
			return
		}
		if err := h.passwords.Verify(ctx, requestcontext.UserID(ctx), req.Password); err != nil {
			writeError(w, dErrors.New(dErrors.CodeForbidden, "password verification failed"))
			return
		}
	}

	important, err := h.manager.RevokeAgreement(ctx, t)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]termView, 0, len(important))
	for _, rt := range important {
		views = append(views, toTermView(rt))
	}
	writeJSON(w, http.StatusOK, map[string]any{"important_revoked": views})
}

type agreementView struct {
	Term     termView `json:"term"`
	AgreedOn string   `json:"agreed_on"`
}

// handleAgreed lists the user's own recorded agreements with dates.
func (h *Handler) handleAgreed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agreed, err := h.ledger.Entries(ctx, requestcontext.UserID(ctx), ledger.KindAgreed)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]agreementView, 0, len(agreed))
	for termID, date := range agreed {
		t, err := h.terms.Get(ctx, termID, terms.VisibilityBypass)
		if errors.Is(err, sentinel.ErrNotFound) {
			// Term deleted after acceptance; the ledger entry remains but
			// there is nothing to show.
			continue
		}
		if err != nil {
			writeError(w, err)
			return
		}
		views = append(views, agreementView{Term: toTermView(t), AgreedOn: date.Format(time.DateOnly)})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Term.Title < views[j].Term.Title })
	writeJSON(w, http.StatusOK, map[string]any{"agreements": views})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation to HTTP responses so every
// handler returns the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(code),
		"message": err.Error(),
	})
}
