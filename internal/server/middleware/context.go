// Package middleware provides HTTP middleware and request-context helpers for
// authentication and per-request metadata.
package middleware

import "context"

type contextKey struct{ name string }

var (
	actorKey    = contextKey{"actor"}
	clientIPKey = contextKey{"client_ip"}
)

// Actor is the authenticated caller extracted from the access token.
type Actor struct {
	UserID string
	OrgID  string
	Role   string
}

// WithActor returns a context carrying the authenticated actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFrom returns the actor from context and true if set; otherwise a zero Actor, false.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}

// WithClientIP returns a context carrying the request's client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFrom returns the client IP from context, or "" if not set.
// Satisfies audit.IPExtractor.
func ClientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
