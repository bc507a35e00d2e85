package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRepository()
	c.normalizeIngest()
	c.normalizeNotifications()
	c.normalizeNetwork()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.RepoRoot, err = expandPath(c.Paths.RepoRoot); err != nil {
		return fmt.Errorf("paths.repo_root: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	for _, field := range []*string{&c.Paths.CatalogFile, &c.Paths.ImagesFile, &c.Paths.PackOutput} {
		value := strings.TrimSpace(*field)
		if strings.HasPrefix(value, "~") {
			if value, err = expandPath(value); err != nil {
				return err
			}
		}
		*field = value
	}
	c.Paths.BinariesDir = cleanRelativeDir(c.Paths.BinariesDir, defaultBinariesDir)
	c.Paths.PreviewsDir = cleanRelativeDir(c.Paths.PreviewsDir, defaultPreviewsDir)
	if c.Paths.CatalogFile == "" {
		c.Paths.CatalogFile = defaultCatalogFile
	}
	if c.Paths.ImagesFile == "" {
		c.Paths.ImagesFile = defaultImagesFile
	}
	if c.Paths.PackOutput == "" {
		c.Paths.PackOutput = defaultPackOutput
	}
	return nil
}

// cleanRelativeDir normalizes an artifact directory to forward slashes so it can
// be used both on disk and inside recorded artifact paths.
func cleanRelativeDir(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	value = filepath.ToSlash(filepath.Clean(value))
	return strings.Trim(value, "/")
}

func (c *Config) normalizeRepository() {
	if c.Repository.Slug == "" {
		if value, ok := os.LookupEnv("CANDYSHOP_REPO"); ok {
			c.Repository.Slug = value
		}
	}
	c.Repository.Slug = strings.Trim(strings.TrimSpace(c.Repository.Slug), "/")
	if c.Repository.Slug == "" {
		c.Repository.Slug = defaultRepoSlug
	}
	c.Repository.Branch = strings.TrimSpace(c.Repository.Branch)
	if c.Repository.Branch == "" {
		c.Repository.Branch = defaultRepoBranch
	}
	c.Repository.HostLink = strings.Trim(strings.TrimSpace(c.Repository.HostLink), "/")
	if c.Repository.HostLink == "" {
		c.Repository.HostLink = defaultHostLink
	}
	c.Repository.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Repository.APIBaseURL), "/")
	if c.Repository.APIBaseURL == "" {
		c.Repository.APIBaseURL = defaultAPIBaseURL
	}
	c.Repository.RawBaseURL = strings.TrimSpace(c.Repository.RawBaseURL)
	if c.Repository.RawBaseURL == "" {
		c.Repository.RawBaseURL = fmt.Sprintf("https://%s/%s/raw/%s", c.Repository.HostLink, c.Repository.Slug, c.Repository.Branch)
	}
	c.Repository.RawBaseURL = strings.TrimRight(c.Repository.RawBaseURL, "/") + "/"
	if c.Repository.Token == "" {
		if value, ok := os.LookupEnv("GITHUB_TOKEN"); ok {
			c.Repository.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeIngest() {
	c.Ingest.Sentinel = strings.TrimSpace(c.Ingest.Sentinel)
	if c.Ingest.Sentinel == "" {
		c.Ingest.Sentinel = defaultSentinel
	}
	labels := make([]string, 0, len(c.Ingest.SkipLabels))
	seen := make(map[string]struct{}, len(c.Ingest.SkipLabels))
	for _, label := range c.Ingest.SkipLabels {
		label = strings.ToLower(strings.TrimSpace(label))
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	c.Ingest.SkipLabels = labels
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.WebhookURL == "" {
		if value, ok := os.LookupEnv("DISCORD_WEBHOOK_URL"); ok {
			c.Notifications.WebhookURL = value
		}
	}
	c.Notifications.WebhookURL = strings.TrimSpace(c.Notifications.WebhookURL)
	c.Notifications.Username = strings.TrimSpace(c.Notifications.Username)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeNetwork() {
	if c.Network.TimeoutSeconds <= 0 {
		c.Network.TimeoutSeconds = defaultNetworkTimeoutSeconds
	}
	if c.Network.RetryBackoffMS <= 0 {
		c.Network.RetryBackoffMS = defaultNetworkRetryBackoffMS
	}
	if c.Network.MaxBackoffMS <= 0 {
		c.Network.MaxBackoffMS = defaultNetworkMaxBackoffMS
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
