package config

const (
	defaultRepoRoot              = "."
	defaultCatalogFile           = "mapping.json"
	defaultBinariesDir           = "binaries"
	defaultPreviewsDir           = "previews"
	defaultImagesFile            = "images.json"
	defaultPackOutput            = "full_pack.zip"
	defaultStateDir              = "~/.local/share/candyshop"
	defaultLogDir                = "~/.local/share/candyshop/logs"
	defaultRepoSlug              = "theballaam96/candys-shop"
	defaultRepoBranch            = "main"
	defaultHostLink              = "github.com"
	defaultAPIBaseURL            = "https://api.github.com"
	defaultSentinel              = "IS SONG - DO NOT DELETE THIS LINE"
	defaultSkipLabel             = "no-ingest"
	defaultMinFreeMiB            = 64
	defaultNotifyUsername        = "Candy's Shop"
	defaultNotifyRequestTimeout  = 10
	defaultNetworkTimeoutSeconds = 30
	defaultNetworkRetryAttempts  = 3
	defaultNetworkRetryBackoffMS = 500
	defaultNetworkMaxBackoffMS   = 8000
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults. The repository
// slug is left empty so the CANDYSHOP_REPO fallback can apply during normalize.
func Default() Config {
	return Config{
		Paths: Paths{
			RepoRoot:    defaultRepoRoot,
			CatalogFile: defaultCatalogFile,
			BinariesDir: defaultBinariesDir,
			PreviewsDir: defaultPreviewsDir,
			ImagesFile:  defaultImagesFile,
			PackOutput:  defaultPackOutput,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
		},
		Repository: Repository{
			Branch:     defaultRepoBranch,
			HostLink:   defaultHostLink,
			APIBaseURL: defaultAPIBaseURL,
		},
		Ingest: Ingest{
			Sentinel:              defaultSentinel,
			SkipLabels:            []string{defaultSkipLabel},
			RequireBinary:         true,
			DerivePreviewDuration: true,
			MinFreeMiB:            defaultMinFreeMiB,
		},
		Prune: Prune{
			DryRun: true,
		},
		Notifications: Notifications{
			Username:       defaultNotifyUsername,
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Network: Network{
			TimeoutSeconds: defaultNetworkTimeoutSeconds,
			RetryAttempts:  defaultNetworkRetryAttempts,
			RetryBackoffMS: defaultNetworkRetryBackoffMS,
			MaxBackoffMS:   defaultNetworkMaxBackoffMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
