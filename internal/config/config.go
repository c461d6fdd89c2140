package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable (LUMEN_DATABASE_URL, LUMEN_OIDC_REALM, ...).
const EnvPrefix = "LUMEN"

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN)
	DatabaseURL string `mapstructure:"database_url"`

	// Server bind address (host:port)
	ServerAddr string `mapstructure:"server_addr"`

	// Public base URL of this API
	ServerURL string `mapstructure:"server_url"`

	// Maximum database connection pool size
	MaxDBConnections int `mapstructure:"max_db_connections"`

	// Enable debug logging (forces log level debug)
	Debug bool `mapstructure:"debug"`

	// Log level (trace, debug, info, warn, error) and format (text, json)
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Allowed CORS origins for the HTTP API
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// OIDC token validation configuration
	OIDC OIDCConfig `mapstructure:"oidc"`

	// Role resolution cache configuration
	RoleCache RoleCacheConfig `mapstructure:"role_cache"`

	// Tracing configuration
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// OIDCConfig describes the external identity provider whose tokens this API accepts.
//
// The service is a resource server only: it never issues tokens. A Keycloak-style
// realm is assumed, so the issuer defaults to {BaseURL}/realms/{Realm} and the
// JWKS endpoint to {issuer}/protocol/openid-connect/certs.
type OIDCConfig struct {
	// Enabled turns bearer token authentication on. When false every request is
	// anonymous and only /health and /metrics are usable.
	Enabled bool `mapstructure:"enabled"`

	// BaseURL is the identity provider root (e.g. "https://sso.example.com")
	BaseURL string `mapstructure:"base_url"`

	// Realm is the identity provider realm name
	Realm string `mapstructure:"realm"`

	// ClientID is the required audience of accepted tokens (optional)
	ClientID string `mapstructure:"client_id"`

	// Issuer overrides the derived issuer URL
	Issuer string `mapstructure:"issuer"`

	// JWKSURL overrides the derived JWKS endpoint. When set, keys are fetched
	// directly instead of through issuer discovery.
	JWKSURL string `mapstructure:"jwks_url"`

	// JWKSRefreshInterval controls background key refresh for JWKSURL mode
	JWKSRefreshInterval time.Duration `mapstructure:"jwks_refresh_interval"`

	// Leeway tolerated on exp/nbf/iat checks
	Leeway time.Duration `mapstructure:"leeway"`

	// RealmRolesClaim is the dot path of the realm roles array in the token
	RealmRolesClaim string `mapstructure:"realm_roles_claim"`

	// PrivilegedRoles are realm role names that grant the full application
	// role catalog without a database lookup
	PrivilegedRoles []string `mapstructure:"privileged_roles"`
}

// IssuerURL returns the configured issuer or the one derived from BaseURL and Realm.
func (c OIDCConfig) IssuerURL() string {
	if c.Issuer != "" {
		return c.Issuer
	}
	if c.BaseURL == "" || c.Realm == "" {
		return ""
	}
	return strings.TrimRight(c.BaseURL, "/") + "/realms/" + c.Realm
}

// RoleCacheConfig configures the (subject, token id) role resolution cache.
type RoleCacheConfig struct {
	// Backend is "memory" (per process) or "redis" (shared between replicas)
	Backend string `mapstructure:"backend"`

	// TTL is the absolute lifetime of a cache entry, measured from write
	TTL time.Duration `mapstructure:"ttl"`

	// SweepInterval controls how often expired memory entries are dropped
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	// RedisURL is used when Backend is "redis" (redis://host:6379/0)
	RedisURL string `mapstructure:"redis_url"`

	// KeyPrefix namespaces redis keys
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ObservabilityConfig configures OpenTelemetry tracing export.
type ObservabilityConfig struct {
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`

	// SampleRatio is the fraction of root spans kept, 0..1.
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// setDefaults registers every key. Viper only maps environment variables onto
// keys it already knows about during Unmarshal, so each key needs a default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "")
	v.SetDefault("server_addr", "localhost:8080")
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("max_db_connections", 25)
	v.SetDefault("debug", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("cors_allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("oidc.enabled", true)
	v.SetDefault("oidc.base_url", "")
	v.SetDefault("oidc.realm", "")
	v.SetDefault("oidc.client_id", "")
	v.SetDefault("oidc.issuer", "")
	v.SetDefault("oidc.jwks_url", "")
	v.SetDefault("oidc.jwks_refresh_interval", 15*time.Minute)
	v.SetDefault("oidc.leeway", 30*time.Second)
	v.SetDefault("oidc.realm_roles_claim", "realm_access.roles")
	v.SetDefault("oidc.privileged_roles", []string{"REALM_ADMIN", "REALM_OWNER"})

	v.SetDefault("role_cache.backend", "memory")
	v.SetDefault("role_cache.ttl", 5*time.Minute)
	v.SetDefault("role_cache.sweep_interval", time.Minute)
	v.SetDefault("role_cache.redis_url", "")
	v.SetDefault("role_cache.key_prefix", "lumen:rbac:roles")

	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", "http/protobuf")
	v.SetDefault("observability.otlp_insecure", false)
	v.SetDefault("observability.service_name", "lumenapi")
	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.sample_ratio", 1.0)
}

// Load reads configuration from the global viper instance: defaults, an
// optional config file already read by the caller, bound CLI flags and
// LUMEN_ prefixed environment variables (highest precedence).
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against an explicit viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	cfg.OIDC.PrivilegedRoles = splitList(cfg.OIDC.PrivilegedRoles)
	cfg.CORSAllowedOrigins = splitList(cfg.CORSAllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and cross-field constraints.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}

	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}

	if c.RoleCache.TTL <= 0 {
		return fmt.Errorf("role_cache.ttl must be positive")
	}

	switch c.RoleCache.Backend {
	case "memory":
		if c.RoleCache.SweepInterval <= 0 {
			return fmt.Errorf("role_cache.sweep_interval must be positive")
		}
	case "redis":
		if c.RoleCache.RedisURL == "" {
			return fmt.Errorf("role_cache.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("role_cache.backend must be memory or redis, got %q", c.RoleCache.Backend)
	}

	if r := c.Observability.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("observability.sample_ratio must be between 0 and 1, got %v", r)
	}

	if c.OIDC.Enabled {
		if c.OIDC.IssuerURL() == "" && c.OIDC.JWKSURL == "" {
			return fmt.Errorf("oidc requires base_url and realm, issuer, or jwks_url")
		}
		if len(c.OIDC.PrivilegedRoles) == 0 {
			return fmt.Errorf("oidc.privileged_roles must name at least one realm role")
		}
	}

	return nil
}

// splitList normalises list values coming from env vars ("a,b" arrives as one element).
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
