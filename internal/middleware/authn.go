package middleware

import (
	"errors"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/problem"
	"github.com/lumenforge/lumenforge/internal/services/iam"
)

// Authenticate is the request authentication middleware.
//
// It hands the request headers to iamService.AuthenticateRequest, which runs
// the registered authenticators (bearer token verification followed by role
// resolution) and stores the resulting Principal in the request context.
//
// Outcomes:
//   - no credentials: the request continues anonymously; the gates decide
//   - invalid token: 401 problem
//   - role resolution failure (database down): 500 problem, nothing cached
func Authenticate(iamService iam.Service, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			principal, err := iamService.AuthenticateRequest(ctx, iam.NewAuthRequest(r))
			if err != nil {
				entry := logger.WithError(err).WithFields(logrus.Fields{
					"request_id": chimiddleware.GetReqID(ctx),
					"method":     r.Method,
					"path":       r.URL.Path,
				})
				if errors.Is(err, auth.ErrInvalidToken) {
					entry.Debug("authentication rejected")
					problem.Unauthorized(w, r, "bearer token is invalid or expired")
					return
				}
				entry.Error("authentication failed")
				problem.Internal(w, r)
				return
			}

			if principal != nil {
				ctx = iam.WithPrincipal(ctx, principal)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
