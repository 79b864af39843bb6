package am

import (
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/teranos/snpm/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be within 0-65535, got %d", c.Server.Port)
	}
	if c.Registry.Port < 0 || c.Registry.Port > 65535 {
		return errors.Newf("registry.port must be within 0-65535, got %d", c.Registry.Port)
	}

	if c.Fetch.BaseURL == "" {
		return errors.New("fetch.base_url cannot be empty")
	}
	if c.Fetch.VerifyTag {
		if !strings.Contains(c.Fetch.GitURLTemplate, "{owner}") || !strings.Contains(c.Fetch.GitURLTemplate, "{repo}") {
			return errors.Newf("fetch.git_url_template must contain {owner} and {repo}, got %q", c.Fetch.GitURLTemplate)
		}
	}
	if c.Fetch.MinFreeMB < 0 {
		return errors.Newf("fetch.min_free_mb must be >= 0, got %d", c.Fetch.MinFreeMB)
	}
	if c.Fetch.MaxArchiveMB < 0 {
		return errors.Newf("fetch.max_archive_mb must be >= 0, got %d", c.Fetch.MaxArchiveMB)
	}
	if c.Fetch.TimeoutSeconds < 0 {
		return errors.Newf("fetch.timeout_seconds must be >= 0, got %d", c.Fetch.TimeoutSeconds)
	}

	for key, line := range map[string]string{
		"build.install_command": c.Build.InstallCommand,
		"build.run_command":     c.Build.RunCommand,
	} {
		words, err := shellquote.Split(line)
		if err != nil {
			return errors.Wrapf(err, "%s is not a valid command line", key)
		}
		if len(words) == 0 {
			return errors.Newf("%s cannot be empty", key)
		}
	}
	if c.Build.Script == "" {
		return errors.New("build.script cannot be empty")
	}
	if c.Build.ManifestFile == "" {
		return errors.New("build.manifest_file cannot be empty")
	}

	if c.Publish.TimeoutSeconds < 0 {
		return errors.Newf("publish.timeout_seconds must be >= 0, got %d", c.Publish.TimeoutSeconds)
	}
	if c.Publish.RatePerMinute < 0 {
		return errors.Newf("publish.rate_per_minute must be >= 0, got %d", c.Publish.RatePerMinute)
	}
	if c.Publish.RatePerMinute > 0 && c.Publish.Burst <= 0 {
		return errors.Newf("publish.burst must be > 0 when rate limiting is on, got %d", c.Publish.Burst)
	}

	return nil
}
