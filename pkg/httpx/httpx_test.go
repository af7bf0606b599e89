package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	mk := func(authz string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if authz != "" {
			r.Header.Set("Authorization", authz)
		}
		return r
	}

	t.Run("extracts the token", func(t *testing.T) {
		require.Equal(t, "abc123", BearerToken(mk("Bearer abc123")))
	})

	t.Run("scheme is case-insensitive", func(t *testing.T) {
		require.Equal(t, "abc123", BearerToken(mk("bearer abc123")))
		require.Equal(t, "abc123", BearerToken(mk("BEARER abc123")))
	})

	t.Run("rejects other schemes", func(t *testing.T) {
		require.Empty(t, BearerToken(mk("Basic dXNlcjpwYXNz")))
	})

	t.Run("rejects missing or empty header", func(t *testing.T) {
		require.Empty(t, BearerToken(mk("")))
		require.Empty(t, BearerToken(mk("Bearer")))
		require.Empty(t, BearerToken(mk("Bearer ")))
	})
}

func TestChainOrder(t *testing.T) {
	var order []string

	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), tag("first"), tag("second"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestWriteJSONSetsNoCache(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]string{"ok": "yes"})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
}
