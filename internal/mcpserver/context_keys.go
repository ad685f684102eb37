package mcpserver

import "context"

type contextKey string

const (
	userContextKey       contextKey = "user"
	authMethodContextKey contextKey = "auth_method"
	clientIPContextKey   contextKey = "client_ip"
	requestIDContextKey  contextKey = "request_id"
)

func getAuthMethodFromContext(ctx context.Context) string {
	v, _ := ctx.Value(authMethodContextKey).(string)
	return v
}

func getClientIPFromContext(ctx context.Context) string {
	v, _ := ctx.Value(clientIPContextKey).(string)
	return v
}

func getRequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDContextKey).(string)
	return v
}

// UserFromContext returns the verified bearer token claims, if any.
func UserFromContext(ctx context.Context) (*TokenInfo, bool) {
	v, ok := ctx.Value(userContextKey).(*TokenInfo)
	return v, ok
}
