package cmdutil

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/lumenforge/lumenforge/internal/config"
	"github.com/lumenforge/lumenforge/internal/db/bunx"
	"github.com/lumenforge/lumenforge/internal/logging"
	"github.com/lumenforge/lumenforge/internal/repository"
	"github.com/lumenforge/lumenforge/internal/services/iam"
)

// IAMServiceBundle bundles the service with its underlying DB connection so callers can
// reuse the connection for other repositories when necessary.
type IAMServiceBundle struct {
	Service iam.Service
	DB      *bun.DB
	Logger  *logrus.Logger
}

// Close releases the underlying database connection.
func (b *IAMServiceBundle) Close() {
	if b == nil || b.DB == nil {
		return
	}
	_ = bunx.Close(b.DB)
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg *config.Config) (*logrus.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Debug:  cfg.Debug,
	})
}

// NewIAMServiceBundle centralizes IAM service construction for CLI commands.
// The service has no authenticators: CLI commands act as the operator and
// never see bearer tokens.
func NewIAMServiceBundle(cfg *config.Config) (*IAMServiceBundle, error) {
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := bunx.NewDBWithPool(cfg.DatabaseURL, cfg.MaxDBConnections)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	service := iam.NewIAMService(iam.IAMServiceDependencies{
		Users:       repository.NewBunUserRepository(db),
		Groups:      repository.NewBunGroupRepository(db),
		Memberships: repository.NewBunMembershipRepository(db),
		Logger:      logger,
	})

	return &IAMServiceBundle{
		Service: service,
		DB:      db,
		Logger:  logger,
	}, nil
}
