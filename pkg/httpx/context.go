package httpx

import "context"

type ctxKey string

const (
	// CtxKeyEmail is the authenticated subject (user email).
	CtxKeyEmail ctxKey = "email"
	// CtxKeySID is the session ID bound to the presented token.
	CtxKeySID ctxKey = "sid"
	// CtxKeyRole is the role claim from the token.
	CtxKeyRole ctxKey = "role"
	// CtxKeyClaims carries the full verified claims value.
	CtxKeyClaims ctxKey = "claims"
)

// EmailFromContext returns the authenticated email, or "" when the request
// didn't pass the auth gate.
func EmailFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyEmail).(string); ok {
		return v
	}
	return ""
}

// SIDFromContext returns the session ID of the presented token, or "".
func SIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeySID).(string); ok {
		return v
	}
	return ""
}

// RoleFromContext returns the role claim, or "".
func RoleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyRole).(string); ok {
		return v
	}
	return ""
}
