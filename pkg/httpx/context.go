// Package httpx holds transport-level helpers shared by HTTP handlers:
// middleware chaining, bearer token extraction, per-request auth context and
// JSON response writing.
package httpx

import "context"

type ctxKey string

const (
	// CtxKeyAccessToken carries the raw bearer token of the current request.
	CtxKeyAccessToken ctxKey = "access_token"

	// CtxKeyUserClient carries the identity-provider client bound to the
	// current request's bearer token.
	CtxKeyUserClient ctxKey = "user_client"
)

// AccessTokenFromContext returns the raw bearer token attached by the auth
// middleware, or "" when the request was not authenticated.
func AccessTokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyAccessToken).(string); ok {
		return v
	}
	return ""
}
