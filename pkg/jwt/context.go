package jwt

import "context"

type contextKey struct{ name string }

func (c contextKey) String() string { return c.name }

var tokenContextKey = &contextKey{name: "jwt"}

// SetToken stores the raw token string in the context.
func SetToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// GetToken returns the raw token string from the context.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey).(string)
	return token, ok && token != ""
}
