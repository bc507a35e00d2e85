package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"candyshop/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	cfg *config.Config
}

// RawBaseURL is the public raw-content base used by test configurations.
const RawBaseURL = "https://github.com/owner/shop/raw/main/"

// NewConfig produces a config seeded with unique temp directories per test.
// The content tree lives under BaseDir/repo and local state under
// BaseDir/state. Values are already in normalized form.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RepoRoot = filepath.Join(base, "repo")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "state", "logs")
	cfgVal.Repository.Slug = "owner/shop"
	cfgVal.Repository.RawBaseURL = RawBaseURL
	cfgVal.Ingest.MinFreeMiB = 0
	cfgVal.Network.RetryAttempts = 1
	cfgVal.Network.RetryBackoffMS = 1
	cfgVal.Network.MaxBackoffMS = 1

	if err := os.MkdirAll(cfgVal.Paths.RepoRoot, 0o755); err != nil {
		t.Fatalf("mkdir repo root: %v", err)
	}

	builder := &configBuilder{cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithWebhook sets the notification webhook URL.
func WithWebhook(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.WebhookURL = url
	}
}

// WithAPIBase points the repository API at url, typically an httptest server.
func WithAPIBase(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Repository.APIBaseURL = url
	}
}

// WithRequirePreview toggles the preview requirement.
func WithRequirePreview(required bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.RequirePreview = required
	}
}

// WithRequireBinary toggles the binary requirement.
func WithRequireBinary(required bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.RequireBinary = required
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.RepoRoot)
}
