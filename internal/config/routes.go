// Package config provides configuration management for the gateway service.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Route describes one proxied path prefix: which upstream service handles
// it, how the path is rewritten, and whether requests must be authenticated.
type Route struct {
	// Service is the upstream service name (auth, questionnaire, payment,
	// analysis, report); its base URL comes from UpstreamConfig.
	Service string `mapstructure:"service"`
	// Prefix is the inbound path prefix handled by this route.
	Prefix string `mapstructure:"prefix"`
	// Rewrite replaces Prefix on the upstream path. Empty keeps the
	// inbound path unchanged.
	Rewrite string `mapstructure:"rewrite"`
	// Public marks the route as requiring no authentication (e.g. login and
	// registration endpoints).
	Public bool `mapstructure:"public"`
}

// routesFile mirrors the YAML route table document.
type routesFile struct {
	Routes []Route `mapstructure:"routes"`
}

// LoadRoutes loads the gateway route table from YAML. defaults.yaml is
// always loaded; an environment-specific file (local.yaml, nonprod.yaml,
// prod.yaml) optionally overlays it.
func LoadRoutes(env Environment) ([]Route, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("defaults")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read defaults config: %w", err)
	}

	var envConfigFile string
	switch env {
	case NonProd:
		envConfigFile = "nonprod"
	case Prod:
		envConfigFile = "prod"
	default:
		envConfigFile = "local"
	}

	envViper := viper.New()
	envViper.SetConfigType("yaml")
	envViper.SetConfigName(envConfigFile)
	envViper.AddConfigPath("./configs")
	envViper.AddConfigPath("../configs")
	envViper.AddConfigPath("../../configs")

	if err := envViper.ReadInConfig(); err != nil {
		// The environment overlay is optional; only a malformed file is an error.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s config: %w", envConfigFile, err)
		}
	} else if err := v.MergeConfigMap(envViper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to merge environment config: %w", err)
	}

	var rf routesFile
	if err := v.Unmarshal(&rf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal route table: %w", err)
	}

	if err := validateRoutes(rf.Routes); err != nil {
		return nil, err
	}

	return rf.Routes, nil
}

// validateRoutes rejects route tables that would misroute traffic: empty or
// duplicate prefixes, unknown service names, prefixes without a leading slash.
func validateRoutes(routes []Route) error {
	if len(routes) == 0 {
		return errors.New("route table contains no routes")
	}

	known := map[string]bool{
		"auth": true, "questionnaire": true, "payment": true,
		"analysis": true, "report": true,
	}

	seen := make(map[string]bool, len(routes))
	for _, r := range routes {
		if !known[r.Service] {
			return fmt.Errorf("route %q references unknown service %q", r.Prefix, r.Service)
		}
		if !strings.HasPrefix(r.Prefix, "/") {
			return fmt.Errorf("route prefix %q must start with '/'", r.Prefix)
		}
		if seen[r.Prefix] {
			return fmt.Errorf("duplicate route prefix %q", r.Prefix)
		}
		seen[r.Prefix] = true
	}

	return nil
}
