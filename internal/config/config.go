package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"candyshop/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the content tree layout and local state directories.
//
// CatalogFile, BinariesDir, PreviewsDir, ImagesFile, and PackOutput are
// relative to RepoRoot unless given as absolute paths. BinariesDir and
// PreviewsDir must stay relative because they are also the first segment of
// every artifact path recorded in the catalog.
type Paths struct {
	RepoRoot    string `toml:"repo_root"`
	CatalogFile string `toml:"catalog_file"`
	BinariesDir string `toml:"binaries_dir"`
	PreviewsDir string `toml:"previews_dir"`
	ImagesFile  string `toml:"images_file"`
	PackOutput  string `toml:"pack_output"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
}

// Repository describes the hosting repository used for pull request lookups
// and public artifact URLs.
type Repository struct {
	Slug       string `toml:"slug"`
	Branch     string `toml:"branch"`
	RawBaseURL string `toml:"raw_base_url"`
	HostLink   string `toml:"host_link"`
	APIBaseURL string `toml:"api_base_url"`
	Token      string `toml:"token"`
}

// Ingest contains submission acceptance policy.
type Ingest struct {
	Sentinel              string   `toml:"sentinel"`
	SkipLabels            []string `toml:"skip_labels"`
	RequireBinary         bool     `toml:"require_binary"`
	RequirePreview        bool     `toml:"require_preview"`
	DerivePreviewDuration bool     `toml:"derive_preview_duration"`
	MinFreeMiB            int      `toml:"min_free_mib"`
}

// Prune contains settings for the preview sweep.
type Prune struct {
	DryRun bool `toml:"dry_run"`
}

// Notifications contains configuration for the chat webhook sink.
type Notifications struct {
	WebhookURL     string `toml:"webhook_url"`
	Username       string `toml:"username"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Network bounds every collaborator call.
type Network struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	RetryAttempts  int `toml:"retry_attempts"`
	RetryBackoffMS int `toml:"retry_backoff_ms"`
	MaxBackoffMS   int `toml:"max_backoff_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for candyshop. It is built once
// at process start and passed explicitly to every component.
//
// Configuration sections by subsystem:
//   - Paths: content tree layout, ledger/log state
//   - Repository: pull request source and public URL construction
//   - Ingest: sentinel marker, skip labels, required attachments
//   - Prune: preview sweep defaults
//   - Notifications: chat webhook settings
//   - Network: collaborator timeouts and retry backoff
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Repository    Repository    `toml:"repository"`
	Ingest        Ingest        `toml:"ingest"`
	Prune         Prune         `toml:"prune"`
	Notifications Notifications `toml:"notifications"`
	Network       Network       `toml:"network"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/candyshop/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("%w: parse config: %w", services.ErrConfiguration, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("candyshop.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the local state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CatalogPath returns the absolute path of the catalog JSON file.
func (c *Config) CatalogPath() string {
	return c.resolveInRepo(c.Paths.CatalogFile)
}

// ImagesPath returns the absolute path of the game image map used when packaging.
func (c *Config) ImagesPath() string {
	return c.resolveInRepo(c.Paths.ImagesFile)
}

// PackOutputPath returns the absolute path of the distributable archive.
func (c *Config) PackOutputPath() string {
	return c.resolveInRepo(c.Paths.PackOutput)
}

// LedgerPath returns the SQLite ingestion ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LogPath returns the file the logger appends to alongside stderr.
func (c *Config) LogPath() string {
	if c.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "candyshop.log")
}

// RetryPolicy converts the network section into a retry policy for collaborators.
func (c *Config) RetryPolicy() services.RetryPolicy {
	return services.RetryPolicy{
		Attempts:       c.Network.RetryAttempts,
		InitialBackoff: time.Duration(c.Network.RetryBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(c.Network.MaxBackoffMS) * time.Millisecond,
		AttemptTimeout: time.Duration(c.Network.TimeoutSeconds) * time.Second,
	}
}

func (c *Config) resolveInRepo(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Paths.RepoRoot, p)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
