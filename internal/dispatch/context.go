package dispatch

import "context"

type contextKey int

const (
	bearerKey contextKey = iota
	callerKey
)

// WithBearerToken returns a context carrying a token taken from an
// Authorization header. An access_token argument takes precedence.
func WithBearerToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, bearerKey, token)
}

// BearerToken returns the token stored by WithBearerToken.
func BearerToken(ctx context.Context) string {
	s, _ := ctx.Value(bearerKey).(string)
	return s
}

// Caller identifies the client whose token authorized a call.
type Caller struct {
	ClientID string
	AppID    string
	Role     string
	Scopes   []string
}

func withCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFrom returns the authorized caller, if any.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}
