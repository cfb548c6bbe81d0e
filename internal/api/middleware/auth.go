package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/wkite/neutron-fwaas/internal/domain"
)

type contextKey string

const AuthContextKey contextKey = "auth_context"

// Auth extracts the caller's authorization context from the X-Project-ID and
// X-Roles headers set by the fronting layer. Requests without a project are
// rejected.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		projectID := r.Header.Get("X-Project-ID")
		if projectID == "" {
			http.Error(w, `{"code":401,"message":"missing X-Project-ID header"}`, http.StatusUnauthorized)
			return
		}

		auth := domain.AuthContext{ProjectID: projectID}
		for _, role := range strings.Split(r.Header.Get("X-Roles"), ",") {
			if strings.TrimSpace(role) == "admin" {
				auth.IsAdmin = true
				break
			}
		}

		ctx := context.WithValue(r.Context(), AuthContextKey, auth)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext retrieves the authorization context from the request context.
func GetAuthContext(ctx context.Context) domain.AuthContext {
	auth, _ := ctx.Value(AuthContextKey).(domain.AuthContext)
	return auth
}
