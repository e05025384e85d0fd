package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"consentgate/internal/directory"
	"consentgate/internal/guard"
	"consentgate/internal/ledger"
	"consentgate/internal/settings"
	"consentgate/internal/terms"
	id "consentgate/pkg/domain"
	dErrors "consentgate/pkg/domain-errors"
	"consentgate/pkg/requestcontext"
)

// AdminHandler serves the low-frequency administrative surface: term
// inventory, the revoked-users report and the site consent settings.
type AdminHandler struct {
	manager  revokedUsersSource
	terms    terms.Store
	ledger   ledger.Store
	settings settings.Store
	guards   *guard.Registry
}

type revokedUsersSource interface {
	AllRevokedUsers(ctx context.Context, filter []id.TermID, fn func(directory.User, map[id.TermID]time.Time) error) error
}

func NewAdminHandler(manager revokedUsersSource, termStore terms.Store, ledgerStore ledger.Store, settingsStore settings.Store, guards *guard.Registry) *AdminHandler {
	return &AdminHandler{manager: manager, terms: termStore, ledger: ledgerStore, settings: settingsStore, guards: guards}
}

type adminTermView struct {
	termView
	State         string `json:"state"`
	EffectiveDate string `json:"effective_date,omitempty"`
	Active        bool   `json:"active"`
	AgreedCount   int    `json:"agreed_count"`
}

// handleListTerms inventories every term regardless of workflow state, with
// the number of users currently agreed to each.
func (h *AdminHandler) handleListTerms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := requestcontext.Now(ctx)

	var all []terms.Term
	for _, state := range []terms.WorkflowState{terms.StateDraft, terms.StateEnabled, terms.StateDisabled} {
		batch, err := h.terms.ListByState(ctx, state, terms.VisibilityBypass)
		if err != nil {
			writeError(w, err)
			return
		}
		all = append(all, batch...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Title < all[j].Title })

	counts, err := h.ledger.CountByTerm(ctx, ledger.KindAgreed)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]adminTermView, 0, len(all))
	for _, t := range all {
		v := adminTermView{
			termView:    toTermView(t),
			State:       t.State.String(),
			Active:      t.IsActive(now),
			AgreedCount: counts[t.ID],
		}
		if !t.EffectiveDate.IsZero() {
			v.EffectiveDate = t.EffectiveDate.Format(time.DateOnly)
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"terms": views})
}

type revokedUserView struct {
	UserID  string            `json:"user_id"`
	Title   string            `json:"title"`
	Revoked map[string]string `json:"revoked"` // term id -> date
}

// handleRevokedUsers runs the full-population revocation report, optionally
// filtered by term_id query parameters. Synchronous O(n) scan; admin only.
func (h *AdminHandler) handleRevokedUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var filter []id.TermID
	for _, raw := range r.URL.Query()["term_id"] {
		termID, err := id.ParseTermID(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		filter = append(filter, termID)
	}

	var out []revokedUserView
	err := h.manager.AllRevokedUsers(ctx, filter, func(user directory.User, revoked map[id.TermID]time.Time) error {
		view := revokedUserView{
			UserID:  user.ID.String(),
			Title:   user.Title,
			Revoked: make(map[string]string, len(revoked)),
		}
		for termID, date := range revoked {
			view.Revoked[termID.String()] = date.Format(time.DateOnly)
		}
		out = append(out, view)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

type settingsView struct {
	DataController       string   `json:"data_controller"`
	ConsentManagerIDs    []string `json:"consent_manager_ids"`
	EmailConsentManagers bool     `json:"email_consent_managers"`
	TermsFolderID        string   `json:"terms_folder_id,omitempty"`
}

func (h *AdminHandler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsView(cfg))
}

func (h *AdminHandler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var view settingsView
	if err := json.NewDecoder(r.Body).Decode(&view); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	cfg := settings.Settings{
		DataController:       view.DataController,
		EmailConsentManagers: view.EmailConsentManagers,
	}
	for _, raw := range view.ConsentManagerIDs {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		cfg.ConsentManagerIDs = append(cfg.ConsentManagerIDs, userID)
	}
	if view.TermsFolderID != "" {
		folderID, err := id.ParseFolderID(view.TermsFolderID)
		if err != nil {
			writeError(w, err)
			return
		}
		cfg.TermsFolderID = folderID
	}
	if err := h.settings.Save(r.Context(), cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsView(cfg))
}

func toSettingsView(cfg settings.Settings) settingsView {
	view := settingsView{
		DataController:       cfg.DataController,
		ConsentManagerIDs:    make([]string, 0, len(cfg.ConsentManagerIDs)),
		EmailConsentManagers: cfg.EmailConsentManagers,
	}
	for _, managerID := range cfg.ConsentManagerIDs {
		view.ConsentManagerIDs = append(view.ConsentManagerIDs, managerID.String())
	}
	if !cfg.TermsFolderID.IsNil() {
		view.TermsFolderID = cfg.TermsFolderID.String()
	}
	return view
}

// handleGuardCheck answers the surrounding CMS's "may I delete/move this?"
// probe for terms and the designated terms folder.
func (h *AdminHandler) handleGuardCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var blocks []guard.Block
	if raw := q.Get("term_id"); raw != "" {
		termID, err := id.ParseTermID(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		t, err := h.terms.Get(ctx, termID, terms.VisibilityBypass)
		if err == nil {
			blocks = append(blocks, h.guards.CheckTerm(ctx, t)...)
		}
	}
	if raw := q.Get("folder_id"); raw != "" {
		folderID, err := id.ParseFolderID(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		folderBlocks, err := h.guards.CheckFolder(ctx, folderID)
		if err != nil {
			writeError(w, err)
			return
		}
		blocks = append(blocks, folderBlocks...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocked": len(blocks) > 0, "blocks": blocks})
}
