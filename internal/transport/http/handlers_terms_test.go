package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"consentgate/internal/directory"
	"consentgate/internal/guard"
	"consentgate/internal/ledger"
	"consentgate/internal/notify"
	"consentgate/internal/session"
	"consentgate/internal/settings"
	"consentgate/internal/terms"
	"consentgate/internal/terms/service"
	id "consentgate/pkg/domain"
	"consentgate/pkg/platform/middleware/auth"
)

const (
	testSigningKey = "test-signing-key"
	testAdminToken = "test-admin-token"
)

type serverFixture struct {
	router http.Handler

	terms     *terms.InMemoryStore
	ledger    *ledger.InMemoryStore
	settings  *settings.InMemoryStore
	cache     *session.InMemoryCache
	directory *directory.InMemoryDirectory

	user      directory.User
	sessionID id.SessionID
	password  string
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	f := &serverFixture{
		terms:    terms.NewInMemoryStore(),
		ledger:   ledger.NewInMemoryStore(),
		settings: settings.NewInMemoryStore(),
		cache:    session.NewInMemoryCache(),
		user: directory.User{
			ID:    id.UserID(uuid.New()),
			Title: "Jamie Doe",
			Email: "jamie@example.org",
		},
		sessionID: id.SessionID(uuid.New()),
		password:  "hunter2!",
	}
	f.directory = directory.NewInMemoryDirectory(f.user)

	hash, err := bcrypt.GenerateFromPassword([]byte(f.password), bcrypt.MinCost)
	require.NoError(t, err)
	passwords := directory.NewStaticPasswordVerifier(map[id.UserID]string{f.user.ID: string(hash)})

	manager := service.NewManager(
		f.terms, f.ledger, f.settings, f.cache,
		directory.NewStaticPermissions(), f.directory,
		notify.NewBus(logger), logger,
	)

	f.router = NewRouter(RouterDeps{
		Handler:    NewHandler(manager, f.terms, f.ledger, passwords),
		Admin:      NewAdminHandler(manager, f.terms, f.ledger, f.settings, guard.NewRegistry(guard.NewFolderGuard(f.settings))),
		Manager:    manager,
		Validator:  auth.NewJWTValidator(testSigningKey),
		TRL:        f.cache,
		Cache:      f.cache,
		AdminToken: testAdminToken,
		LandingURL: "https://example.org/",
		Logger:     logger,
	})
	return f
}

func (f *serverFixture) token(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": f.user.ID.String(),
		"sid": f.sessionID.String(),
		"jti": uuid.NewString(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return signed
}

func (f *serverFixture) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) addTerm(t *testing.T, term terms.Term) terms.Term {
	t.Helper()
	if term.ID.IsNil() {
		term.ID = id.TermID(uuid.New())
	}
	if term.State == "" {
		term.State = terms.StateEnabled
	}
	if term.EffectiveDate.IsZero() {
		term.EffectiveDate = time.Now().AddDate(0, 0, -1)
	}
	require.NoError(t, f.terms.Save(context.Background(), term))
	return term
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthRequired(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/tos/pending", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/tos/pending", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPendingEndpoint(t *testing.T) {
	f := newServerFixture(t)
	f.addTerm(t, terms.Term{Title: "Zebra terms"})
	f.addTerm(t, terms.Term{Title: "Acceptable use"})
	f.addTerm(t, terms.Term{Title: "Draft rules", State: terms.StateDraft})

	rec := f.do(t, http.MethodGet, "/tos/pending", f.token(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	list := body["terms"].([]any)
	require.Len(t, list, 2)
	// Sorted by title.
	assert.Equal(t, "Acceptable use", list[0].(map[string]any)["title"])
	assert.Equal(t, "Zebra terms", list[1].(map[string]any)["title"])
}

func TestAgreeEndpoint(t *testing.T) {
	f := newServerFixture(t)
	term := f.addTerm(t, terms.Term{Title: "Privacy policy"})

	t.Run("happy path empties the pending list", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/tos/agree", f.token(t), map[string]any{
			"term_ids": []string{term.ID.String()},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(1), decodeBody(t, rec)["accepted"])

		rec = f.do(t, http.MethodGet, "/tos/pending", f.token(t), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decodeBody(t, rec)["terms"])
	})

	t.Run("empty list is rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/tos/agree", f.token(t), map[string]any{"term_ids": []string{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown term id is rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/tos/agree", f.token(t), map[string]any{
			"term_ids": []string{uuid.NewString()},
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id is rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/tos/agree", f.token(t), map[string]any{
			"term_ids": []string{"not-a-uuid"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRevokeEndpoint(t *testing.T) {
	agree := func(t *testing.T, f *serverFixture, term terms.Term) {
		t.Helper()
		rec := f.do(t, http.MethodPost, "/tos/agree", f.token(t), map[string]any{
			"term_ids": []string{term.ID.String()},
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	t.Run("plain revoke returns the important revocation", func(t *testing.T) {
		f := newServerFixture(t)
		term := f.addTerm(t, terms.Term{Title: "Privacy policy"})
		agree(t, f, term)

		rec := f.do(t, http.MethodPost, "/tos/revoke", f.token(t), map[string]any{
			"term_id": term.ID.String(),
		})
		require.Equal(t, http.StatusOK, rec.Code)
		revoked := decodeBody(t, rec)["important_revoked"].([]any)
		require.Len(t, revoked, 1)
		assert.Equal(t, term.ID.String(), revoked[0].(map[string]any)["id"])
	})

	t.Run("typed confirmation must match the title", func(t *testing.T) {
		f := newServerFixture(t)
		term := f.addTerm(t, terms.Term{Title: "Privacy policy", CheckTypedOnRevoke: true})
		agree(t, f, term)

		rec := f.do(t, http.MethodPost, "/tos/revoke", f.token(t), map[string]any{
			"term_id":       term.ID.String(),
			"confirm_title": "privacy policy",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = f.do(t, http.MethodPost, "/tos/revoke", f.token(t), map[string]any{
			"term_id":       term.ID.String(),
			"confirm_title": "Privacy policy",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("password confirmation is re-checked", func(t *testing.T) {
		f := newServerFixture(t)
		term := f.addTerm(t, terms.Term{Title: "Privacy policy", CheckPasswordOnRevoke: true})
		agree(t, f, term)

		rec := f.do(t, http.MethodPost, "/tos/revoke", f.token(t), map[string]any{
			"term_id":  term.ID.String(),
			"password": "wrong",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = f.do(t, http.MethodPost, "/tos/revoke", f.token(t), map[string]any{
			"term_id":  term.ID.String(),
			"password": f.password,
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAgreedEndpoint(t *testing.T) {
	f := newServerFixture(t)
	term := f.addTerm(t, terms.Term{Title: "Privacy policy"})

	rec := f.do(t, http.MethodPost, "/tos/agree", f.token(t), map[string]any{
		"term_ids": []string{term.ID.String()},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/tos/agreed", f.token(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	agreements := decodeBody(t, rec)["agreements"].([]any)
	require.Len(t, agreements, 1)
	entry := agreements[0].(map[string]any)
	assert.Equal(t, "Privacy policy", entry["term"].(map[string]any)["title"])
	assert.NotEmpty(t, entry["agreed_on"])
}

func TestAdminEndpoints(t *testing.T) {
	adminDo := func(t *testing.T, f *serverFixture, method, target string, body any) *httptest.ResponseRecorder {
		t.Helper()
		var reader *bytes.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		} else {
			reader = bytes.NewReader(nil)
		}
		req := httptest.NewRequest(method, target, reader)
		req.Header.Set("X-Admin-Token", testAdminToken)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("rejects a missing or wrong token", func(t *testing.T) {
		f := newServerFixture(t)
		req := httptest.NewRequest(http.MethodGet, "/admin/terms", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		req.Header.Set("X-Admin-Token", "wrong")
		rec = httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("lists every term with workflow state and agree counts", func(t *testing.T) {
		f := newServerFixture(t)
		enabled := f.addTerm(t, terms.Term{Title: "Enabled one"})
		f.addTerm(t, terms.Term{Title: "Draft one", State: terms.StateDraft})
		require.NoError(t, f.ledger.Put(context.Background(), f.user.ID, enabled.ID, ledger.KindAgreed,
			time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))

		rec := adminDo(t, f, http.MethodGet, "/admin/terms", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decodeBody(t, rec)["terms"].([]any)
		require.Len(t, list, 2)
		assert.Equal(t, "draft", list[0].(map[string]any)["state"])
		assert.Equal(t, float64(0), list[0].(map[string]any)["agreed_count"])
		assert.Equal(t, "enabled", list[1].(map[string]any)["state"])
		assert.Equal(t, float64(1), list[1].(map[string]any)["agreed_count"])
	})

	t.Run("revoked users report honours the term filter", func(t *testing.T) {
		f := newServerFixture(t)
		termA := f.addTerm(t, terms.Term{Title: "A"})
		termB := f.addTerm(t, terms.Term{Title: "B"})
		ctx := context.Background()
		day := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, f.ledger.Put(ctx, f.user.ID, termA.ID, ledger.KindRevoked, day))

		rec := adminDo(t, f, http.MethodGet, "/admin/revoked-users?term_id="+termA.ID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		users := decodeBody(t, rec)["users"].([]any)
		require.Len(t, users, 1)
		entry := users[0].(map[string]any)
		assert.Equal(t, f.user.ID.String(), entry["user_id"])
		assert.Equal(t, map[string]any{termA.ID.String(): "2026-02-01"}, entry["revoked"])

		rec = adminDo(t, f, http.MethodGet, "/admin/revoked-users?term_id="+termB.ID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decodeBody(t, rec)["users"])
	})

	t.Run("settings round-trip", func(t *testing.T) {
		f := newServerFixture(t)
		folderID := uuid.NewString()

		rec := adminDo(t, f, http.MethodPut, "/admin/settings", map[string]any{
			"data_controller":        "Example Org",
			"consent_manager_ids":    []string{f.user.ID.String()},
			"email_consent_managers": true,
			"terms_folder_id":        folderID,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = adminDo(t, f, http.MethodGet, "/admin/settings", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "Example Org", body["data_controller"])
		assert.Equal(t, true, body["email_consent_managers"])
		assert.Equal(t, folderID, body["terms_folder_id"])
	})

	t.Run("guard check blocks enabled terms and the terms folder", func(t *testing.T) {
		f := newServerFixture(t)
		enabled := f.addTerm(t, terms.Term{Title: "Enabled"})
		folderID := id.FolderID(uuid.New())
		require.NoError(t, f.settings.Save(context.Background(), settings.Settings{TermsFolderID: folderID}))

		rec := adminDo(t, f, http.MethodGet, "/admin/guard-check?term_id="+enabled.ID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["blocked"])

		rec = adminDo(t, f, http.MethodGet, "/admin/guard-check?folder_id="+folderID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["blocked"])

		rec = adminDo(t, f, http.MethodGet, "/admin/guard-check?folder_id="+uuid.NewString(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, decodeBody(t, rec)["blocked"])
	})
}
