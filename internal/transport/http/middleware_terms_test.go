package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentgate/internal/directory"
	"consentgate/internal/ledger"
	"consentgate/internal/notify"
	"consentgate/internal/session"
	"consentgate/internal/settings"
	"consentgate/internal/terms"
	"consentgate/internal/terms/service"
	id "consentgate/pkg/domain"
	"consentgate/pkg/requestcontext"
)

type enforceFixture struct {
	middleware func(http.Handler) http.Handler
	cache      *session.InMemoryCache
	terms      *terms.InMemoryStore

	user      directory.User
	sessionID id.SessionID
}

func newEnforceFixture(t *testing.T, opts ...service.Option) *enforceFixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	f := &enforceFixture{
		cache: session.NewInMemoryCache(),
		terms: terms.NewInMemoryStore(),
		user: directory.User{
			ID:    id.UserID(uuid.New()),
			Title: "Jamie Doe",
			Email: "jamie@example.org",
		},
		sessionID: id.SessionID(uuid.New()),
	}
	manager := service.NewManager(
		f.terms, ledger.NewInMemoryStore(), settings.NewInMemoryStore(), f.cache,
		directory.NewStaticPermissions(), directory.NewInMemoryDirectory(f.user),
		notify.NewBus(logger), logger,
		opts...,
	)
	f.middleware = EnforceTerms(manager, f.cache, f.cache, "https://example.org/", logger)
	return f
}

func (f *enforceFixture) addPendingTerm(t *testing.T) {
	t.Helper()
	require.NoError(t, f.terms.Save(context.Background(), terms.Term{
		ID:            id.TermID(uuid.New()),
		Title:         "Privacy policy",
		State:         terms.StateEnabled,
		EffectiveDate: time.Now().AddDate(0, 0, -1),
	}))
}

// serve runs one request through the middleware with an authenticated context
// and reports whether the wrapped handler ran.
func (f *enforceFixture) serve(req *http.Request) (*httptest.ResponseRecorder, bool) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	f.middleware(next).ServeHTTP(rec, req)
	return rec, reached
}

func (f *enforceFixture) authedRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	ctx := requestcontext.WithUserID(req.Context(), f.user.ID)
	ctx = requestcontext.WithSessionID(ctx, f.sessionID)
	return req.WithContext(ctx)
}

func TestEnforceTerms(t *testing.T) {
	t.Run("passes through when nothing is pending", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec, reached := f.serve(f.authedRequest("/page"))
		assert.True(t, reached)
		assert.Empty(t, rec.Header().Get(HeaderAcceptanceRequired))
	})

	t.Run("soft failure flags the response and lets it through", func(t *testing.T) {
		f := newEnforceFixture(t)
		f.addPendingTerm(t)

		rec, reached := f.serve(f.authedRequest("/page"))
		assert.True(t, reached)
		assert.Equal(t, "true", rec.Header().Get(HeaderAcceptanceRequired))
	})

	t.Run("fatal failure ends the session", func(t *testing.T) {
		f := newEnforceFixture(t, service.WithConfig(service.Config{GracePeriod: 0}))
		f.addPendingTerm(t)

		rec, reached := f.serve(f.authedRequest("/page"))
		assert.False(t, reached)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "terms_not_accepted", body["error"])
		assert.Equal(t, "https://example.org/", body["location"])

		// The grace timer is wiped so a fresh login starts clean.
		grace, err := f.cache.GraceExpiresAt(context.Background(), f.sessionID)
		require.NoError(t, err)
		assert.True(t, grace.IsZero())
	})

	t.Run("XHR requests are never challenged", func(t *testing.T) {
		f := newEnforceFixture(t, service.WithConfig(service.Config{GracePeriod: 0}))
		f.addPendingTerm(t)

		req := f.authedRequest("/page")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		rec, reached := f.serve(req)
		assert.True(t, reached)
		assert.Empty(t, rec.Header().Get(HeaderAcceptanceRequired))
	})

	t.Run("the consent endpoints stay reachable", func(t *testing.T) {
		f := newEnforceFixture(t, service.WithConfig(service.Config{GracePeriod: 0}))
		f.addPendingTerm(t)

		_, reached := f.serve(f.authedRequest("/tos/pending"))
		assert.True(t, reached)
	})

	t.Run("unauthenticated requests pass untouched", func(t *testing.T) {
		f := newEnforceFixture(t, service.WithConfig(service.Config{GracePeriod: 0}))
		f.addPendingTerm(t)

		req := httptest.NewRequest(http.MethodGet, "/page", nil)
		_, reached := f.serve(req)
		assert.True(t, reached)
	})
}
