package middleware

import (
	"context"

	"crm-dashboard/backend/internal/security"
)

type contextKey struct{ name string }

var (
	identityKey    = contextKey{"identity"}
	accessTokenKey = contextKey{"access_token"}
	requestIDKey   = contextKey{"request_id"}
)

// WithIdentity returns a context carrying the caller's verified identity and the access token it came from.
// Handlers read them back via GetIdentity, GetUserID, GetOrgID and GetAccessToken.
func WithIdentity(ctx context.Context, id security.Identity, accessToken string) context.Context {
	ctx = context.WithValue(ctx, identityKey, id)
	ctx = context.WithValue(ctx, accessTokenKey, accessToken)
	return ctx
}

// GetIdentity returns the identity from context and true if set; otherwise the zero value, false.
func GetIdentity(ctx context.Context) (security.Identity, bool) {
	v, ok := ctx.Value(identityKey).(security.Identity)
	return v, ok
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	id, ok := GetIdentity(ctx)
	if !ok || id.UserID == "" {
		return "", false
	}
	return id.UserID, true
}

// GetOrgID returns the org_id from context and true if set; otherwise "", false.
func GetOrgID(ctx context.Context) (string, bool) {
	id, ok := GetIdentity(ctx)
	if !ok || id.OrgID == "" {
		return "", false
	}
	return id.OrgID, true
}

// GetAccessToken returns the raw access token the request authenticated with.
func GetAccessToken(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(accessTokenKey).(string)
	return v, ok && v != ""
}

// GetRequestID returns the request id set by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}
