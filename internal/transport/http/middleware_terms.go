package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"consentgate/internal/session"
	"consentgate/internal/terms"
	"consentgate/internal/terms/service"
	"consentgate/pkg/platform/middleware/auth"
	"consentgate/pkg/requestcontext"
)

// HeaderAcceptanceRequired flags a response whose request went through while
// terms are pending; the frontend reacts by opening the acceptance prompt.
const HeaderAcceptanceRequired = "X-Terms-Acceptance-Required"

// revokedTokenTTL bounds how long a force-logged-out token stays on the
// revocation list; it only needs to outlive the token itself.
const revokedTokenTTL = 24 * time.Hour

// EnforceTerms is the per-request consent subscriber. It skips XHR requests,
// unauthenticated requests and the consent endpoints themselves, then asks
// the manager. A soft failure lets the request through flagged; a fatal one
// revokes the credential and ends the session.
func EnforceTerms(manager *service.Manager, trl session.TokenRevocationList, cache session.CheckCache, landingURL string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				requestcontext.UserID(ctx).IsNil() ||
				isConsentEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			err := manager.CheckTerms(ctx)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			var needs *terms.NeedsAcceptanceError
			if errors.As(err, &needs) {
				w.Header().Set(HeaderAcceptanceRequired, "true")
				next.ServeHTTP(w, r)
				return
			}

			var fatal *terms.NotAcceptedError
			if errors.As(err, &fatal) {
				sessionID := requestcontext.SessionID(ctx)
				if jti := auth.JTI(ctx); jti != "" {
					if err := trl.RevokeToken(ctx, jti, revokedTokenTTL); err != nil {
						logger.ErrorContext(ctx, "could not revoke token on lockout",
							"error", err,
							"request_id", requestcontext.RequestID(ctx),
						)
					}
				}
				_ = cache.ClearCheckAgainAt(ctx, sessionID)
				_ = cache.ClearGraceExpiresAt(ctx, sessionID)
				logger.InfoContext(ctx, "forced logout, terms not accepted",
					"user_id", requestcontext.UserID(ctx).String(),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":    "terms_not_accepted",
					"message":  "You have been logged out because the terms of service were not accepted in time.",
					"location": landingURL,
				})
				return
			}

			logger.ErrorContext(ctx, "consent check failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			writeError(w, err)
		})
	}
}

// The consent endpoints stay reachable while acceptance is pending so the
// user can actually accept or revoke.
func isConsentEndpoint(path string) bool {
	return strings.HasPrefix(path, "/tos/")
}
