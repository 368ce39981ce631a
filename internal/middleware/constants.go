// File: internal/middleware/constants.go
package middleware

import "context"

// Context keys for middleware communication
type contextKey string

const UsernameKey contextKey = "username"

// UsernameFrom extracts the authenticated username set by the JWT
// middleware.
func UsernameFrom(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok && username != ""
}
