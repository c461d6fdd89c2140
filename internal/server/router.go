package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/lumenforge/lumenforge/internal/auth"
	lumenmiddleware "github.com/lumenforge/lumenforge/internal/middleware"
	"github.com/lumenforge/lumenforge/internal/services/iam"
	"github.com/lumenforge/lumenforge/internal/telemetry"
)

// APIPrefix is where the IAM surface is mounted.
const APIPrefix = "/api/v1/auth"

// RouterOptions controls the construction of the HTTP router.
// IAMService is required; everything else has a usable default.
type RouterOptions struct {
	IAMService    iam.Service
	Logger        logrus.FieldLogger
	Metrics       *telemetry.Metrics
	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
	ExtraRoutes   func(chi.Router)
}

// DefaultCORSOptions returns the development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}
}

// CORSOptionsFor builds the policy for the configured origins, falling back
// to the development defaults when none are set.
func CORSOptionsFor(origins []string) cors.Options {
	opts := DefaultCORSOptions()
	if len(origins) > 0 {
		opts.AllowedOrigins = origins
	}
	return opts
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewRouter assembles a chi.Router with shared middleware, the CORS policy,
// operational endpoints and the IAM routes.
func NewRouter(opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r := chi.NewRouter()

	// Baseline middleware shared across entrypoints.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(lumenmiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(lumenmiddleware.Metrics(opts.Metrics))
	}

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	if opts.IAMService != nil {
		r.Route(APIPrefix, func(api chi.Router) {
			MountIAMRoutes(api, opts.IAMService, logger)
		})
	} else {
		logger.Warn("IAM service not configured, skipping " + APIPrefix + " routes")
	}

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r
}

// MountIAMRoutes registers the IAM endpoints on r. Every route runs the
// authentication middleware; the gate on each route decides what is required.
func MountIAMRoutes(r chi.Router, iamService iam.Service, logger logrus.FieldLogger) {
	r.Use(lumenmiddleware.Authenticate(iamService, logger))

	authenticated := lumenmiddleware.RequireAuthenticated()
	requireRole := lumenmiddleware.RequireRole

	r.With(authenticated).Get("/me", HandleMe())
	r.With(requireRole(auth.RoleRoleRead)).Get("/roles", HandleRoleCatalog(iamService))

	r.Route("/users", func(r chi.Router) {
		r.With(requireRole(auth.RoleUserCreate)).Put("/", HandleCreateUser(iamService, logger))

		r.Route("/{subjectId}", func(r chi.Router) {
			r.Use(authenticated)
			r.Get("/", HandleGetUser(iamService, logger))
			r.Delete("/", HandleDeleteUser(iamService, logger))
			r.Get("/roles", HandleGetUserRoles(iamService, logger))
		})
	})

	r.Route("/groups", func(r chi.Router) {
		r.With(requireRole(auth.RoleGroupCreate)).Put("/", HandleCreateGroup(iamService, logger))
		r.With(authenticated).Get("/", HandleListGroups(iamService, logger))

		r.Route("/{guid}", func(r chi.Router) {
			r.Use(authenticated)
			r.Get("/", HandleGetGroup(iamService, logger))
			r.Delete("/", HandleDeleteGroup(iamService, logger))
			r.Put("/users", HandleAssignUserToGroup(iamService, logger))
			r.Delete("/users/{subjectId}", HandleRemoveUserFromGroup(iamService, logger))
			r.Put("/roles/{roleName}", HandleAssignRoleToGroup(iamService, logger))
			r.Delete("/roles/{roleName}", HandleRemoveRoleFromGroup(iamService, logger))
		})
	})
}
