// Package config provides configuration management for the risk-platform API
// gateway. It supports environment variable-based configuration with
// validation and default values for the server, upstream services, token
// validation, Redis, security, and logging settings.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// MinSharedSecretLength is the minimum required length for the shared
	// token-signing secret.
	MinSharedSecretLength = 32
	// MinPortNumber is the minimum valid port number.
	MinPortNumber = 1
	// MaxPortNumber is the maximum valid port number.
	MaxPortNumber = 65535

	// devFallbackSecret is the documented development-only default used when
	// no shared secret is configured. Refused outright in PROD.
	devFallbackSecret = "dev-only-shared-secret-do-not-use-in-production" // pragma: allowlist secret
)

// Config represents the complete configuration for the gateway service,
// aggregating all component-specific configurations.
type Config struct {
	// Environment holds environment-specific settings.
	Environment EnvironmentConfig `envconfig:"ENVIRONMENT"`
	// Server contains HTTP server configuration including ports, timeouts, and TLS settings.
	Server ServerConfig `envconfig:"SERVER"`
	// Upstreams contains base URLs for the proxied platform services.
	Upstreams UpstreamConfig `envconfig:"UPSTREAM"`
	// Auth contains token validation settings for the authentication middleware.
	Auth AuthConfig `envconfig:"AUTH"`
	// Redis contains Redis connection configuration for rate limiting.
	Redis RedisConfig `envconfig:"REDIS"`
	// Security contains security-related settings like CORS and rate limiting.
	Security SecurityConfig `envconfig:"SECURITY"`
	// Logging contains logging configuration.
	Logging LoggingConfig `envconfig:"LOGGING"`
}

type Environment string

const (
	Local   Environment = "LOCAL"
	NonProd Environment = "NONPROD"
	Prod    Environment = "PROD"
)

// EnvironmentConfig holds environment-specific settings.
type EnvironmentConfig struct {
	// Environment indicates the current running environment (LOCAL, NONPROD, PROD).
	Environment Environment `envconfig:"ENV" default:"LOCAL"`
}

// ServerConfig holds HTTP server configuration including network settings,
// timeouts, and TLS certificate paths.
type ServerConfig struct {
	// Port is the HTTP server listening port.
	Port int `envconfig:"PORT"             default:"8080"`
	// Host is the network interface to bind to.
	Host string `envconfig:"HOST"             default:"0.0.0.0"`
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `envconfig:"READ_TIMEOUT"     default:"15s"`
	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT"    default:"30s"`
	// IdleTimeout is the maximum amount of time to wait for keep-alive connections.
	IdleTimeout time.Duration `envconfig:"IDLE_TIMEOUT"     default:"60s"`
	// ShutdownTimeout is the maximum time to wait for graceful server shutdown.
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	// TLSCert is the path to the TLS certificate file for HTTPS.
	TLSCert string `envconfig:"TLS_CERT"`
	// TLSKey is the path to the TLS private key file for HTTPS.
	TLSKey string `envconfig:"TLS_KEY"`
}

// UpstreamConfig contains base URLs for the platform services behind the
// gateway. Each value is the scheme://host:port root of the service; route
// prefixes are defined in the YAML route table.
type UpstreamConfig struct {
	// AuthServiceURL is the base URL of the authentication service. Its
	// /validate-token endpoint is also the remote authority for the token
	// validation middleware.
	AuthServiceURL string `envconfig:"AUTH_SERVICE_URL"          default:"http://localhost:3001"`
	// QuestionnaireServiceURL is the base URL of the questionnaire service.
	QuestionnaireServiceURL string `envconfig:"QUESTIONNAIRE_SERVICE_URL" default:"http://localhost:3002"`
	// PaymentServiceURL is the base URL of the payment service.
	PaymentServiceURL string `envconfig:"PAYMENT_SERVICE_URL"       default:"http://localhost:3003"`
	// AnalysisServiceURL is the base URL of the analysis service.
	AnalysisServiceURL string `envconfig:"ANALYSIS_SERVICE_URL"      default:"http://localhost:3004"`
	// ReportServiceURL is the base URL of the report service.
	ReportServiceURL string `envconfig:"REPORT_SERVICE_URL"        default:"http://localhost:3005"`
}

// AuthConfig contains token validation settings: cache policy, remote-call
// retry behavior, circuit breaker thresholds, and the shared signing secret
// used for local fallback verification.
type AuthConfig struct {
	// CacheTTL is the base TTL for a cached validation result. The effective
	// TTL scales with an entry's usage count.
	CacheTTL time.Duration `envconfig:"CACHE_TTL"             default:"5m"`
	// CacheMaxTTL is the hard ceiling for the adaptive TTL.
	CacheMaxTTL time.Duration `envconfig:"CACHE_MAX_TTL"         default:"30m"`
	// CacheMaxIdle evicts entries not used for this long regardless of TTL.
	CacheMaxIdle time.Duration `envconfig:"CACHE_MAX_IDLE"        default:"10m"`
	// SweepInterval is how often the background sweep scans the cache.
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL"        default:"2m"`
	// PendingTimeout is the stale cutoff for in-flight validation markers.
	PendingTimeout time.Duration `envconfig:"PENDING_TIMEOUT"       default:"30s"`
	// RemoteTimeout bounds each individual validation call to the authority.
	RemoteTimeout time.Duration `envconfig:"REMOTE_TIMEOUT"        default:"3s"`
	// MaxRetries is the number of retries after the initial attempt for
	// transient authority failures.
	MaxRetries int `envconfig:"MAX_RETRIES"           default:"2"`
	// RetryBackoffBase is the initial retry backoff delay.
	RetryBackoffBase time.Duration `envconfig:"RETRY_BACKOFF_BASE"    default:"100ms"`
	// RetryBackoffCap is the maximum retry backoff delay.
	RetryBackoffCap time.Duration `envconfig:"RETRY_BACKOFF_CAP"     default:"2s"`
	// BreakerFailureCount is the number of consecutive authority failures
	// that opens the circuit breaker.
	BreakerFailureCount int `envconfig:"BREAKER_FAILURE_COUNT" default:"5"`
	// BreakerCooldown is how long the breaker stays open before probing.
	BreakerCooldown time.Duration `envconfig:"BREAKER_COOLDOWN"      default:"30s"`
	// FallbackEnabled toggles local signature verification when the
	// authority is unreachable or the breaker is open.
	FallbackEnabled bool `envconfig:"FALLBACK_ENABLED"      default:"true"`
	// ServiceSecret is the auth-service-specific signing secret. Takes
	// precedence over SharedSecret.
	ServiceSecret string `envconfig:"SERVICE_JWT_SECRET"`
	// SharedSecret is the platform-wide token signing secret.
	SharedSecret string `envconfig:"JWT_SECRET"`
}

// RedisConfig contains Redis connection configuration including
// connection pool settings and timeouts.
type RedisConfig struct {
	// URL is the Redis connection URL.
	URL string `envconfig:"URL"           default:"redis://localhost:6379"`
	// Password is the Redis authentication password.
	Password string `envconfig:"PASSWORD"`
	// DB is the Redis database number to use.
	DB int `envconfig:"DB"            default:"0"`
	// MaxRetries is the maximum number of retry attempts for failed operations.
	MaxRetries int `envconfig:"MAX_RETRIES"   default:"3"`
	// PoolSize is the maximum number of socket connections.
	PoolSize int `envconfig:"POOL_SIZE"     default:"10"`
	// MinIdleConn is the minimum number of idle connections.
	MinIdleConn int `envconfig:"MIN_IDLE_CONN" default:"5"`
	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration `envconfig:"DIAL_TIMEOUT"  default:"5s"`
	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration `envconfig:"READ_TIMEOUT"  default:"3s"`
	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

// SecurityConfig contains security-related settings including
// rate limiting and CORS configuration.
type SecurityConfig struct {
	// RateLimitRPS is the maximum requests per second per client.
	RateLimitRPS int `envconfig:"RATE_LIMIT_RPS"    default:"100"`
	// RateLimitBurst is the maximum burst size for rate limiting.
	RateLimitBurst int `envconfig:"RATE_LIMIT_BURST"  default:"200"`
	// AllowedOrigins are the CORS allowed origins.
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"   default:"*"`
	// AllowedMethods are the CORS allowed HTTP methods.
	AllowedMethods []string `envconfig:"ALLOWED_METHODS"   default:"GET,POST,PUT,DELETE,OPTIONS"`
	// AllowedHeaders are the CORS allowed headers.
	AllowedHeaders []string `envconfig:"ALLOWED_HEADERS"   default:"*"`
	// AllowCredentials determines if CORS allows credentials.
	AllowCredentials bool `envconfig:"ALLOW_CREDENTIALS" default:"true"`
	// MaxAge is the CORS preflight cache duration in seconds.
	MaxAge int `envconfig:"MAX_AGE"           default:"86400"`
	// TrustedProxies are the trusted proxy IP addresses.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
}

// LoggingConfig contains logging configuration including
// log level, format, and output destination.
type LoggingConfig struct {
	// Level is the logging level (debug, info, warn, error).
	Level string `envconfig:"LEVEL"  default:"info"`
	// Format is the log output format (json, text).
	Format string `envconfig:"FORMAT" default:"json"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `envconfig:"OUTPUT" default:"stdout"`
}

// Load reads configuration from environment variables and returns
// a validated Config instance. It returns an error if configuration
// is invalid or required values are missing.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate performs comprehensive validation of all configuration values,
// ensuring they meet security and operational requirements.
func (c *Config) Validate() error {
	if c.Server.Port < MinPortNumber || c.Server.Port > MaxPortNumber {
		return errors.New("server port must be between 1 and 65535")
	}

	if c.Environment.Environment == Prod {
		secret := c.Auth.ServiceSecret
		if secret == "" {
			secret = c.Auth.SharedSecret
		}
		if secret == "" {
			return errors.New("a token signing secret is required in PROD")
		}
		if len(secret) < MinSharedSecretLength {
			return fmt.Errorf("token signing secret must be at least %d characters long", MinSharedSecretLength)
		}
	}

	if c.Auth.CacheTTL <= 0 {
		return errors.New("auth cache TTL must be positive")
	}

	if c.Auth.CacheMaxTTL < c.Auth.CacheTTL {
		return errors.New("auth cache max TTL must be at least the base TTL")
	}

	if c.Auth.MaxRetries < 0 {
		return errors.New("auth max retries must not be negative")
	}

	if c.Auth.RemoteTimeout <= 0 {
		return errors.New("auth remote timeout must be positive")
	}

	return nil
}

// EffectiveAuthSecret resolves the token signing secret used for local
// fallback verification. Precedence: service-specific secret, then the
// platform-wide shared secret, then the documented development default.
// In PROD the development default is never returned; Validate already
// rejects a PROD config without an explicit secret.
func (c *Config) EffectiveAuthSecret() string {
	if c.Auth.ServiceSecret != "" {
		return c.Auth.ServiceSecret
	}
	if c.Auth.SharedSecret != "" {
		return c.Auth.SharedSecret
	}
	if c.Environment.Environment == Prod {
		return ""
	}
	return devFallbackSecret
}

// ServerAddr returns the formatted server address string in host:port format.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsTLSEnabled returns true if both TLS certificate and key paths are configured.
func (c *Config) IsTLSEnabled() bool {
	return c.Server.TLSCert != "" && c.Server.TLSKey != ""
}

// UpstreamURL returns the configured base URL for a named platform service,
// or an empty string for an unknown service name.
func (c *Config) UpstreamURL(service string) string {
	switch service {
	case "auth":
		return c.Upstreams.AuthServiceURL
	case "questionnaire":
		return c.Upstreams.QuestionnaireServiceURL
	case "payment":
		return c.Upstreams.PaymentServiceURL
	case "analysis":
		return c.Upstreams.AnalysisServiceURL
	case "report":
		return c.Upstreams.ReportServiceURL
	default:
		return ""
	}
}
