// Package request provides middleware for per-request metadata: a request id
// and the request-scoped timestamp, plus the negotiated locale. All of it
// lands in pkg/requestcontext so services stay HTTP-free.
package request

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"consentgate/pkg/requestcontext"
)

// Metadata captures the request time, assigns a request id (honouring an
// incoming X-Request-ID) and extracts the locale from Accept-Language.
func Metadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())

		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx = requestcontext.WithRequestID(ctx, reqID)
		ctx = requestcontext.WithLocale(ctx, localeFromHeader(r.Header.Get("Accept-Language")))

		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// localeFromHeader reduces an Accept-Language header to its first primary
// language subtag: "sv-SE,sv;q=0.9,en;q=0.8" -> "sv". Full content
// negotiation belongs to the surrounding framework.
func localeFromHeader(header string) string {
	if header == "" {
		return ""
	}
	first := header
	if idx := strings.IndexAny(first, ",;"); idx != -1 {
		first = first[:idx]
	}
	first = strings.TrimSpace(first)
	if idx := strings.IndexByte(first, '-'); idx != -1 {
		first = first[:idx]
	}
	return strings.ToLower(first)
}
