package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CORS([]string{"https://site-a.example.org", "https://site-b.example.org/"}, next)

	t.Run("preflight for allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/calendar.json", nil)
		req.Header.Set("Origin", "https://site-a.example.org")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "https://site-a.example.org", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-Site-ID")
	})

	t.Run("preflight for unknown origin gets no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/calendar.json", nil)
		req.Header.Set("Origin", "https://evil.example.org")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("trailing slash in configuration is normalized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/calendar.json", nil)
		req.Header.Set("Origin", "https://site-b.example.org")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "https://site-b.example.org", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("request without origin passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/agenda", nil)
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})
}
