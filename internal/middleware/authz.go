package middleware

import (
	"fmt"
	"net/http"

	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/problem"
	"github.com/lumenforge/lumenforge/internal/services/iam"
)

// RequireAuthenticated rejects anonymous requests with 401.
func RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := iam.PrincipalFromContext(r.Context()); !ok {
				unauthenticated(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole admits principals holding role. Anonymous requests get 401,
// authenticated principals without the role get 403.
//
// The check reads only the pre-resolved Principal.Roles; it never touches the
// database or the cache.
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := iam.PrincipalFromContext(r.Context())
			if !ok {
				unauthenticated(w, r)
				return
			}
			if !principal.HasRole(role) {
				problem.Forbidden(w, r, fmt.Sprintf("requires role %s", role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthenticated(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="lumenapi"`)
	problem.Unauthorized(w, r, "a bearer token is required")
}
