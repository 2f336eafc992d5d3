package common

import "context"

// contextKey keeps request-scoped values from colliding with keys set
// by other packages
type contextKey string

const (
	contextKeyUserID    contextKey = "user_id"
	contextKeyRequestID contextKey = "request_id"
	contextKeyUserRoles contextKey = "user_roles"
)

// WithUserID records the authenticated reader on the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// GetUserID returns the authenticated reader, if any
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKeyUserID).(string)
	return userID, ok
}

// WithRequestID records the request ID on the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// GetRequestID returns the request ID, if any
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(contextKeyRequestID).(string)
	return requestID, ok
}

// WithUserRoles records the reader's roles on the context
func WithUserRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, contextKeyUserRoles, roles)
}

// GetUserRoles returns the reader's roles, if any
func GetUserRoles(ctx context.Context) ([]string, bool) {
	roles, ok := ctx.Value(contextKeyUserRoles).([]string)
	return roles, ok
}

// HasRole reports whether the context carries the named role
func HasRole(ctx context.Context, role string) bool {
	roles, ok := GetUserRoles(ctx)
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
