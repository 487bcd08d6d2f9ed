package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Caller roles, each identified by its own API key.
const (
	RoleAdmin    = "admin"
	RoleDispatch = "dispatch"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const roleContextKey contextKey = "role"

// KeyRing holds the bcrypt hashes of the API keys, by role.
// An empty hash disables that role.
type KeyRing map[string]string

// roleFor returns the first role whose hash matches key.
func (k KeyRing) roleFor(key string, allowed []string) (string, bool) {
	for _, role := range allowed {
		hash := k[role]
		if hash == "" {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil {
			return role, true
		}
	}
	return "", false
}

// RequireRole returns middleware that admits requests carrying
// "Authorization: Bearer <key>" for one of roles.
func RequireRole(keys KeyRing, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="mccenter"`)
				http.Error(w, "missing API key", http.StatusUnauthorized)
				return
			}
			role, ok := keys.roleFor(key, roles)
			if !ok {
				slog.Warn("auth_rejected", "path", r.URL.Path, "ip", r.RemoteAddr)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), roleContextKey, role)))
		})
	}
}

// RoleFromContext returns the role RequireRole admitted the request as.
func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleContextKey).(string)
	return role, ok
}

// ContextWithRole returns a context carrying role.
// Intended for use in tests.
func ContextWithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleContextKey, role)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}
