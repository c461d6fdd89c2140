package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lumenforge/lumenforge/cmd/cmdutil"
	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/config"
	"github.com/lumenforge/lumenforge/internal/db/bunx"
	"github.com/lumenforge/lumenforge/internal/repository"
	"github.com/lumenforge/lumenforge/internal/server"
	"github.com/lumenforge/lumenforge/internal/services/iam"
	"github.com/lumenforge/lumenforge/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the LumenForge API server",
	Long:  `Starts the HTTP server with the /api/v1/auth endpoints, /health and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := cmdutil.NewLogger(cfg)
		if err != nil {
			return fmt.Errorf("configure logging: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTracing, err := telemetry.Init(ctx, cfg.Observability, logger)
		if err != nil {
			return fmt.Errorf("initialize tracing: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(flushCtx); err != nil {
				logger.WithError(err).Warn("tracing shutdown failed")
			}
		}()

		db, err := bunx.NewDBWithPool(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)
		logger.WithFields(logrus.Fields{
			"database": string(bunx.DetectDatabaseType(cfg.DatabaseURL)),
			"dsn":      bunx.RedactDSN(cfg.DatabaseURL),
		}).Info("connected to database")

		metrics := telemetry.NewMetrics()

		userRepo := repository.NewBunUserRepository(db)
		groupRepo := repository.NewBunGroupRepository(db)
		membershipRepo := repository.NewBunMembershipRepository(db)

		var authenticators []iam.Authenticator
		if cfg.OIDC.Enabled {
			cache, closeCache, err := newRoleCache(ctx, cfg.RoleCache, logger)
			if err != nil {
				return err
			}
			defer closeCache()

			verifier, err := newTokenVerifier(cfg.OIDC, logger)
			if err != nil {
				return err
			}

			resolver := iam.NewRoleResolver(iam.RoleResolverDependencies{
				Cache:   cache,
				Source:  membershipRepo,
				Metrics: metrics,
				Logger:  logger,
			}, cfg.OIDC.PrivilegedRoles)

			authenticators = append(authenticators, iam.NewBearerAuthenticator(verifier, resolver))
			logger.WithFields(logrus.Fields{
				"issuer":           cfg.OIDC.IssuerURL(),
				"privileged_roles": cfg.OIDC.PrivilegedRoles,
				"cache_backend":    cfg.RoleCache.Backend,
				"cache_ttl":        cfg.RoleCache.TTL.String(),
			}).Info("bearer authentication enabled")
		} else {
			logger.Warn("OIDC disabled: every request is anonymous and all IAM routes answer 401")
		}

		iamService := iam.NewIAMService(iam.IAMServiceDependencies{
			Users:          userRepo,
			Groups:         groupRepo,
			Memberships:    membershipRepo,
			Authenticators: authenticators,
			Logger:         logger,
		})

		oidcEnabled := cfg.OIDC.Enabled
		healthHandler := func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := db.PingContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprint(w, `{"status":"unavailable"}`)
				return
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"ok","oidc_enabled":%t}`, oidcEnabled)
		}

		corsOpts := server.CORSOptionsFor(cfg.CORSAllowedOrigins)
		router := server.NewRouter(server.RouterOptions{
			IAMService:    iamService,
			Logger:        logger,
			Metrics:       metrics,
			CORSOptions:   &corsOpts,
			HealthHandler: healthHandler,
		})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.WithFields(logrus.Fields{"addr": cfg.ServerAddr, "url": cfg.ServerURL}).Info("starting server")
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("shutting down gracefully")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			logger.Info("server stopped")
			return nil
		}
	},
}

// newRoleCache builds the configured cache backend. The memory backend gets a
// sweeper goroutine bound to ctx; the returned func releases backend resources.
func newRoleCache(ctx context.Context, cfg config.RoleCacheConfig, logger logrus.FieldLogger) (iam.RoleCache, func(), error) {
	switch cfg.Backend {
	case "redis":
		cache, err := iam.DialRedisRoleCache(ctx, cfg.RedisURL, cfg.TTL, cfg.KeyPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("connect role cache: %w", err)
		}
		return cache, func() {
			if err := cache.Close(); err != nil {
				logger.WithError(err).Warn("close redis role cache")
			}
		}, nil
	default:
		cache := iam.NewMemoryRoleCache(cfg.TTL, nil)
		sweepCtx, cancel := context.WithCancel(ctx)
		go cache.RunSweeper(sweepCtx, cfg.SweepInterval)
		return cache, cancel, nil
	}
}

// newTokenVerifier prefers an explicit JWKS URL and falls back to issuer discovery.
func newTokenVerifier(cfg config.OIDCConfig, logger logrus.FieldLogger) (auth.TokenVerifier, error) {
	if cfg.JWKSURL != "" {
		verifier, err := auth.NewJWKSVerifier(auth.JWKSVerifierConfig{
			JWKSURL:         cfg.JWKSURL,
			Issuer:          cfg.IssuerURL(),
			ClientID:        cfg.ClientID,
			RealmRolesClaim: cfg.RealmRolesClaim,
			RefreshInterval: cfg.JWKSRefreshInterval,
			Leeway:          cfg.Leeway,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("configure jwks verifier: %w", err)
		}
		return verifier, nil
	}

	verifier, err := auth.NewOIDCVerifier(auth.OIDCVerifierConfig{
		Issuer:          cfg.IssuerURL(),
		ClientID:        cfg.ClientID,
		RealmRolesClaim: cfg.RealmRolesClaim,
	})
	if err != nil {
		return nil, fmt.Errorf("configure oidc verifier: %w", err)
	}
	return verifier, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
