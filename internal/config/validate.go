package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"candyshop/internal/services"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validatePaths,
		c.validateRepository,
		c.validateIngest,
		c.validateNotifications,
		c.validateNetwork,
		c.validateLogging,
	} {
		if err := check(); err != nil {
			return fmt.Errorf("%w: %w", services.ErrConfiguration, err)
		}
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.RepoRoot == "" {
		return errors.New("paths.repo_root must be set")
	}
	if filepath.IsAbs(c.Paths.BinariesDir) || strings.HasPrefix(c.Paths.BinariesDir, "..") {
		return errors.New("paths.binaries_dir must be relative to paths.repo_root")
	}
	if filepath.IsAbs(c.Paths.PreviewsDir) || strings.HasPrefix(c.Paths.PreviewsDir, "..") {
		return errors.New("paths.previews_dir must be relative to paths.repo_root")
	}
	if c.Paths.BinariesDir == c.Paths.PreviewsDir {
		return errors.New("paths.binaries_dir and paths.previews_dir must differ")
	}
	return nil
}

func (c *Config) validateRepository() error {
	if strings.Count(c.Repository.Slug, "/") != 1 {
		return fmt.Errorf("repository.slug %q must look like owner/name", c.Repository.Slug)
	}
	for name, raw := range map[string]string{
		"repository.raw_base_url": c.Repository.RawBaseURL,
		"repository.api_base_url": c.Repository.APIBaseURL,
	} {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", name)
		}
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.MinFreeMiB < 0 {
		return errors.New("ingest.min_free_mib must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.WebhookURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.WebhookURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("notifications.webhook_url must be an absolute URL")
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if c.Network.RetryAttempts < 0 {
		return errors.New("network.retry_attempts must be >= 0")
	}
	if c.Network.MaxBackoffMS < c.Network.RetryBackoffMS {
		return errors.New("network.max_backoff_ms must be >= network.retry_backoff_ms")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
