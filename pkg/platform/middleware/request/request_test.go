package request

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"consentgate/pkg/requestcontext"
)

func TestLocaleFromHeader(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"sv", "sv"},
		{"sv-SE", "sv"},
		{"sv-SE,sv;q=0.9,en;q=0.8", "sv"},
		{"en-US;q=0.7", "en"},
		{" de-CH ", "de"},
		{"EN", "en"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, localeFromHeader(tt.header), "header %q", tt.header)
	}
}

func TestMetadata(t *testing.T) {
	t.Run("assigns a request id and captures metadata", func(t *testing.T) {
		var gotRequestID, gotLocale string
		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			gotRequestID = requestcontext.RequestID(r.Context())
			gotLocale = requestcontext.Locale(r.Context())
			assert.False(t, requestcontext.Now(r.Context()).IsZero())
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Language", "sv-SE,sv;q=0.9")
		rec := httptest.NewRecorder()
		Metadata(next).ServeHTTP(rec, req)

		assert.NotEmpty(t, gotRequestID)
		assert.Equal(t, gotRequestID, rec.Header().Get("X-Request-ID"))
		assert.Equal(t, "sv", gotLocale)
	})

	t.Run("honours an incoming request id", func(t *testing.T) {
		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "upstream-id", requestcontext.RequestID(r.Context()))
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "upstream-id")
		rec := httptest.NewRecorder()
		Metadata(next).ServeHTTP(rec, req)

		assert.Equal(t, "upstream-id", rec.Header().Get("X-Request-ID"))
	})
}
