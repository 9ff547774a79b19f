package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/idbridge/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Identity store (PostgreSQL)
	Store StoreConfig

	// Session store (Redis)
	Redis RedisConfig

	// External identity provider
	Provider ProviderConfig

	// Webhook ingress
	Webhook WebhookConfig

	// Role mapping
	RoleMapping RoleMappingConfig

	// Reconciliation sweep
	Sweep SweepConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	BaseURL         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// Session cookie
	SessionCookieName string
	SessionTTL        time.Duration
	CookieSecure      bool
}

// StoreConfig holds identity store configuration
type StoreConfig struct {
	PostgresURL      string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	IdentityCacheLen int
}

// RedisConfig holds session store configuration
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

// ProviderConfig holds external identity provider configuration
type ProviderConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Management API (role reads, metadata writes)
	ManagementBaseURL      string
	ManagementTokenURL     string
	ManagementClientID     string
	ManagementClientSecret string
	ManagementAudience     string

	// Bounded timeout for every provider call
	RequestTimeout time.Duration

	// Default locale for newly provisioned users
	DefaultLocale string
}

// WebhookConfig holds webhook ingress configuration
type WebhookConfig struct {
	// Bearer token the provider log stream must present
	Token string
}

// RoleMappingConfig holds role mapping configuration
type RoleMappingConfig struct {
	// Path to the YAML mapping file
	Path string
	// Reload the mapping when the file changes
	Watch bool
}

// SweepConfig holds the periodic full-reconciliation sweep configuration
type SweepConfig struct {
	Enabled  bool
	Schedule string
	Workers  int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Store:         loadStoreConfig(),
		Redis:         loadRedisConfig(),
		Provider:      loadProviderConfig(),
		Webhook:       loadWebhookConfig(),
		RoleMapping:   loadRoleMappingConfig(),
		Sweep:         loadSweepConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:              getEnv("IDBRIDGE_HOST", "0.0.0.0"),
		Port:              getEnv("IDBRIDGE_PORT", "8080"),
		BaseURL:           getEnv("IDBRIDGE_BASE_URL", "http://localhost:8080"),
		ReadTimeout:       getEnvDuration("IDBRIDGE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      getEnvDuration("IDBRIDGE_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getEnvDuration("IDBRIDGE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getEnvDuration("IDBRIDGE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:        getEnv("IDBRIDGE_HEALTH_PORT", "9090"),
		SessionCookieName: getEnv("IDBRIDGE_SESSION_COOKIE", "idbridge_session"),
		SessionTTL:        getEnvDuration("IDBRIDGE_SESSION_TTL", 24*time.Hour),
		CookieSecure:      getEnvBool("IDBRIDGE_COOKIE_SECURE", true),
	}
}

// loadStoreConfig loads identity store configuration from environment
func loadStoreConfig() StoreConfig {
	return StoreConfig{
		PostgresURL:      getEnv("IDBRIDGE_POSTGRES_URL", ""),
		MaxOpenConns:     getEnvInt("IDBRIDGE_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns:     getEnvInt("IDBRIDGE_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime:  getEnvDuration("IDBRIDGE_POSTGRES_CONN_LIFETIME", 5*time.Minute),
		IdentityCacheLen: getEnvInt("IDBRIDGE_IDENTITY_CACHE_SIZE", 4096),
	}
}

// loadRedisConfig loads session store configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:      getEnv("IDBRIDGE_REDIS_URL", "localhost:6379"),
		Password: getEnv("IDBRIDGE_REDIS_PASSWORD", ""),
		DB:       getEnvInt("IDBRIDGE_REDIS_DB", 0),
		PoolSize: getEnvInt("IDBRIDGE_REDIS_POOL_SIZE", 10),
	}
}

// loadProviderConfig loads identity provider configuration from environment
func loadProviderConfig() ProviderConfig {
	scopes := strings.Split(getEnv("IDBRIDGE_OIDC_SCOPES", "openid,profile,email,offline_access"), ",")
	for i := range scopes {
		scopes[i] = strings.TrimSpace(scopes[i])
	}

	return ProviderConfig{
		IssuerURL:              getEnv("IDBRIDGE_OIDC_ISSUER_URL", ""),
		ClientID:               getEnv("IDBRIDGE_OIDC_CLIENT_ID", ""),
		ClientSecret:           getEnv("IDBRIDGE_OIDC_CLIENT_SECRET", ""),
		RedirectURL:            getEnv("IDBRIDGE_OIDC_REDIRECT_URL", ""),
		Scopes:                 scopes,
		ManagementBaseURL:      getEnv("IDBRIDGE_MGMT_BASE_URL", ""),
		ManagementTokenURL:     getEnv("IDBRIDGE_MGMT_TOKEN_URL", ""),
		ManagementClientID:     getEnv("IDBRIDGE_MGMT_CLIENT_ID", ""),
		ManagementClientSecret: getEnv("IDBRIDGE_MGMT_CLIENT_SECRET", ""),
		ManagementAudience:     getEnv("IDBRIDGE_MGMT_AUDIENCE", ""),
		RequestTimeout:         getEnvDuration("IDBRIDGE_PROVIDER_TIMEOUT", 10*time.Second),
		DefaultLocale:          getEnv("IDBRIDGE_DEFAULT_LOCALE", "en"),
	}
}

// loadWebhookConfig loads webhook ingress configuration from environment
func loadWebhookConfig() WebhookConfig {
	return WebhookConfig{
		Token: getEnv("IDBRIDGE_WEBHOOK_TOKEN", ""),
	}
}

// loadRoleMappingConfig loads role mapping configuration from environment
func loadRoleMappingConfig() RoleMappingConfig {
	return RoleMappingConfig{
		Path:  getEnv("IDBRIDGE_ROLE_MAPPING_FILE", "role-mapping.yaml"),
		Watch: getEnvBool("IDBRIDGE_ROLE_MAPPING_WATCH", true),
	}
}

// loadSweepConfig loads the sweep configuration from environment
func loadSweepConfig() SweepConfig {
	return SweepConfig{
		Enabled:  getEnvBool("IDBRIDGE_SWEEP_ENABLED", true),
		Schedule: getEnv("IDBRIDGE_SWEEP_SCHEDULE", "30 3 * * *"),
		Workers:  getEnvInt("IDBRIDGE_SWEEP_WORKERS", 4),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("IDBRIDGE_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("IDBRIDGE_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Store.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Provider.IssuerURL == "" {
		return fmt.Errorf("OIDC issuer URL is required")
	}
	if c.Provider.ClientID == "" {
		return fmt.Errorf("OIDC client id is required")
	}
	if c.Provider.ClientSecret == "" {
		return fmt.Errorf("OIDC client secret is required")
	}
	if c.Provider.RedirectURL == "" {
		return fmt.Errorf("OIDC redirect URL is required")
	}
	hasOpenID := false
	for _, scope := range c.Provider.Scopes {
		if scope == "openid" {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		return fmt.Errorf("'openid' scope is required")
	}

	if c.Provider.ManagementBaseURL == "" {
		return fmt.Errorf("management API base URL is required")
	}
	if c.Provider.ManagementTokenURL == "" {
		return fmt.Errorf("management API token URL is required")
	}
	if c.Provider.ManagementClientID == "" || c.Provider.ManagementClientSecret == "" {
		return fmt.Errorf("management API client credentials are required")
	}

	if c.Webhook.Token == "" {
		return fmt.Errorf("webhook token is required")
	}

	if c.RoleMapping.Path == "" {
		return fmt.Errorf("role mapping file path is required")
	}

	if c.Sweep.Enabled {
		if c.Sweep.Schedule == "" {
			return fmt.Errorf("sweep schedule is required when sweep is enabled")
		}
		if c.Sweep.Workers < 1 {
			return fmt.Errorf("sweep workers must be at least 1")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
