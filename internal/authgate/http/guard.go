package http

import (
	"context"
	"net/http"

	"github.com/lumeos/authgate/pkg/httpx"
	"github.com/lumeos/authgate/pkg/idpclient"
)

// AuthnMiddleware is the session guard. It extracts the bearer token, binds a
// per-request identity-provider client to it and attaches both to the request
// context. Requests without a well-formed "Bearer <token>" header are
// rejected before any orchestrator code runs.
//
// The token is not pre-validated here; a bad token fails at the first bound
// provider call, exactly once.
func AuthnMiddleware(idp *idpclient.Client) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := httpx.BearerToken(r)
			if token == "" {
				writeBearerError(w, "missing or malformed bearer token")
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, httpx.CtxKeyAccessToken, token)
			ctx = context.WithValue(ctx, httpx.CtxKeyUserClient, idp.Bind(token))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userClientFromContext returns the bound client injected by AuthnMiddleware,
// or nil on routes that skipped the guard.
func userClientFromContext(ctx context.Context) *idpclient.UserClient {
	uc, _ := ctx.Value(httpx.CtxKeyUserClient).(*idpclient.UserClient)
	return uc
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}
