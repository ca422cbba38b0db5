package auth

import "context"

type ctxKey string

const subjectKey ctxKey = "auth.subject"

// WithSubject attaches the verified subject claim to ctx.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey, sub)
}

// Subject returns the subject claim attached by the auth middleware, or
// "" if the request was never authenticated.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}
