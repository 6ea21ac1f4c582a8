package middleware

import (
	"net"
	"net/http"
	"strings"

	"shiftledger/internal/security"
	"shiftledger/internal/server/respond"
)

const bearerPrefix = "bearer "

// Auth returns middleware that validates the Bearer access token and puts the
// actor and client IP in the request context. Requests without a valid token
// get 401.
func Auth(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				unauthenticated(w)
				return
			}
			userID, orgID, role, err := tokens.ValidateAccess(token)
			if err != nil {
				unauthenticated(w)
				return
			}
			ctx := WithActor(r.Context(), Actor{UserID: userID, OrgID: orgID, Role: role})
			ctx = WithClientIP(ctx, clientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireManager rejects non-manager actors with 403. Must run after Auth.
func RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		if !ok {
			unauthenticated(w)
			return
		}
		if actor.Role != security.RoleManager {
			respond.Error(w, http.StatusForbidden, "forbidden", "manager role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthenticated(w http.ResponseWriter) {
	respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization", nil)
}

// extractBearer returns the Bearer token from the Authorization header, or ""
// if missing or malformed. The scheme match is case-insensitive.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
