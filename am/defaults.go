package am

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{})

	// Client side
	v.SetDefault("registry.url", DefaultRegistryURL)
	v.SetDefault("registry.port", DefaultServerPort)

	// Fetch
	v.SetDefault("fetch.base_url", "https://github.com")
	v.SetDefault("fetch.git_url_template", "https://github.com/{owner}/{repo}.git")
	v.SetDefault("fetch.verify_tag", false)
	v.SetDefault("fetch.min_free_mb", 256)
	v.SetDefault("fetch.max_archive_mb", 512)
	v.SetDefault("fetch.timeout_seconds", 120)
	v.SetDefault("fetch.allow_private", false)

	// Build (npm-compatible tooling)
	v.SetDefault("build.install_command", "npm install --no-audit --no-fund")
	v.SetDefault("build.run_command", "npm run --silent")
	v.SetDefault("build.script", "build")
	v.SetDefault("build.manifest_file", "package.json")

	// Publish
	v.SetDefault("publish.timeout_seconds", 600)
	v.SetDefault("publish.work_root", "")
	v.SetDefault("publish.keep_workdir", false)
	v.SetDefault("publish.rate_per_minute", 30)
	v.SetDefault("publish.burst", 5)

	v.SetDefault("log.json", false)
}

// BindEnvVars binds the unprefixed REGISTRY_* variables alongside the
// SNPM_* automatic bindings.
func BindEnvVars(v *viper.Viper) {
	v.BindEnv("server.port", "SNPM_SERVER_PORT", "REGISTRY_PORT")
	v.BindEnv("registry.port", "SNPM_REGISTRY_PORT", "REGISTRY_PORT")
	v.BindEnv("registry.url", "SNPM_REGISTRY_URL", "REGISTRY_URL")
}

// GetServerPort returns the configured server port, or DefaultServerPort
func GetServerPort() int {
	cfg, err := Load()
	if err != nil || cfg.Server.Port <= 0 {
		return DefaultServerPort
	}
	return cfg.Server.Port
}

// RegistryAddress returns the base http(s) address of the registry, e.g. http://localhost:3000
func (c *Config) RegistryAddress() string {
	base := strings.TrimRight(c.Registry.URL, "/")
	if base == "" {
		base = DefaultRegistryURL
	}
	port := c.Registry.Port
	if port <= 0 {
		port = DefaultServerPort
	}
	return fmt.Sprintf("%s:%d", base, port)
}
