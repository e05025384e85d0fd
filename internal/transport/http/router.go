// Package httptransport is the thin HTTP layer over the consent subsystem.
// Handlers delegate to domain services; enforcement runs as middleware on
// every authenticated route.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"consentgate/internal/session"
	"consentgate/internal/terms/service"
	adminmw "consentgate/pkg/platform/middleware/admin"
	"consentgate/pkg/platform/middleware/auth"
	requestmw "consentgate/pkg/platform/middleware/request"
)

// RouterDeps bundles what the router wires together.
type RouterDeps struct {
	Handler    *Handler
	Admin      *AdminHandler
	Manager    *service.Manager
	Validator  auth.TokenValidator
	TRL        session.TokenRevocationList
	Cache      session.CheckCache
	AdminToken string
	LandingURL string
	Logger     *slog.Logger
}

// NewRouter wires all endpoints. The /tos surface runs under authentication
// and the consent-enforcement middleware; /admin is token-guarded and exempt
// from enforcement so a locked-out administrator can still manage terms.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestmw.Metadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Validator, deps.TRL, deps.Logger))
		r.Use(EnforceTerms(deps.Manager, deps.TRL, deps.Cache, deps.LandingURL, deps.Logger))

		r.Get("/tos/pending", deps.Handler.handlePending)
		r.Post("/tos/agree", deps.Handler.handleAgree)
		r.Post("/tos/revoke", deps.Handler.handleRevoke)
		r.Get("/tos/agreed", deps.Handler.handleAgreed)
	})

	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(deps.AdminToken, deps.Logger))

		r.Get("/admin/terms", deps.Admin.handleListTerms)
		r.Get("/admin/revoked-users", deps.Admin.handleRevokedUsers)
		r.Get("/admin/settings", deps.Admin.handleGetSettings)
		r.Put("/admin/settings", deps.Admin.handleUpdateSettings)
		r.Get("/admin/guard-check", deps.Admin.handleGuardCheck)
	})

	return r
}
