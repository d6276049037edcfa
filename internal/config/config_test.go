package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jusscott/risk-assessment-app-sub002/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, config.Local, cfg.Environment.Environment)
	assert.Equal(t, 5*time.Minute, cfg.Auth.CacheTTL)
	assert.Equal(t, 30*time.Minute, cfg.Auth.CacheMaxTTL)
	assert.Equal(t, 2, cfg.Auth.MaxRetries)
	assert.True(t, cfg.Auth.FallbackEnabled)
	assert.Equal(t, "http://localhost:3001", cfg.Upstreams.AuthServiceURL)
	assert.Equal(t, 100, cfg.Security.RateLimitRPS)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("AUTH_CACHE_TTL", "90s")
	t.Setenv("AUTH_MAX_RETRIES", "4")
	t.Setenv("UPSTREAM_REPORT_SERVICE_URL", "http://reports.internal:8443")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Auth.CacheTTL)
	assert.Equal(t, 4, cfg.Auth.MaxRetries)
	assert.Equal(t, "http://reports.internal:8443", cfg.Upstreams.ReportServiceURL)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg := &config.Config{}
		cfg.Environment.Environment = config.Local
		cfg.Server.Port = 8080
		cfg.Auth.CacheTTL = time.Minute
		cfg.Auth.CacheMaxTTL = 10 * time.Minute
		cfg.Auth.RemoteTimeout = 3 * time.Second
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:   "valid_config",
			mutate: func(_ *config.Config) {},
		},
		{
			name:    "port_out_of_range",
			mutate:  func(c *config.Config) { c.Server.Port = 0 },
			wantErr: "server port",
		},
		{
			name:    "zero_cache_ttl",
			mutate:  func(c *config.Config) { c.Auth.CacheTTL = 0 },
			wantErr: "cache TTL",
		},
		{
			name:    "max_ttl_below_base",
			mutate:  func(c *config.Config) { c.Auth.CacheMaxTTL = time.Second },
			wantErr: "max TTL",
		},
		{
			name:    "negative_retries",
			mutate:  func(c *config.Config) { c.Auth.MaxRetries = -1 },
			wantErr: "retries",
		},
		{
			name:    "zero_remote_timeout",
			mutate:  func(c *config.Config) { c.Auth.RemoteTimeout = 0 },
			wantErr: "remote timeout",
		},
		{
			name:    "prod_without_secret",
			mutate:  func(c *config.Config) { c.Environment.Environment = config.Prod },
			wantErr: "signing secret is required",
		},
		{
			name: "prod_with_short_secret",
			mutate: func(c *config.Config) {
				c.Environment.Environment = config.Prod
				c.Auth.SharedSecret = "too-short"
			},
			wantErr: "at least",
		},
		{
			name: "prod_with_valid_secret",
			mutate: func(c *config.Config) {
				c.Environment.Environment = config.Prod
				c.Auth.SharedSecret = strings.Repeat("s", 40)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEffectiveAuthSecretPrecedence(t *testing.T) {
	cfg := &config.Config{}
	cfg.Environment.Environment = config.Local

	// No secrets configured: the development default applies outside PROD.
	assert.NotEmpty(t, cfg.EffectiveAuthSecret())

	cfg.Auth.SharedSecret = "shared-secret-value"
	assert.Equal(t, "shared-secret-value", cfg.EffectiveAuthSecret())

	cfg.Auth.ServiceSecret = "service-secret-value"
	assert.Equal(t, "service-secret-value", cfg.EffectiveAuthSecret(),
		"service secret takes precedence over shared secret")

	// PROD never falls back to the development default.
	prod := &config.Config{}
	prod.Environment.Environment = config.Prod
	assert.Empty(t, prod.EffectiveAuthSecret())
}

func TestServerAddr(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 9999

	assert.Equal(t, "127.0.0.1:9999", cfg.ServerAddr())
}

func TestIsTLSEnabled(t *testing.T) {
	cfg := &config.Config{}
	assert.False(t, cfg.IsTLSEnabled())

	cfg.Server.TLSCert = "/etc/tls/cert.pem"
	assert.False(t, cfg.IsTLSEnabled(), "certificate without key is incomplete")

	cfg.Server.TLSKey = "/etc/tls/key.pem"
	assert.True(t, cfg.IsTLSEnabled())
}

func TestUpstreamURL(t *testing.T) {
	cfg := &config.Config{}
	cfg.Upstreams.AuthServiceURL = "http://auth:3001"
	cfg.Upstreams.ReportServiceURL = "http://report:3005"

	assert.Equal(t, "http://auth:3001", cfg.UpstreamURL("auth"))
	assert.Equal(t, "http://report:3005", cfg.UpstreamURL("report"))
	assert.Empty(t, cfg.UpstreamURL("nonexistent"))
}
