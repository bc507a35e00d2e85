package preflight

import (
	"context"

	"candyshop/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check that applies to cfg. Remote checks are skipped
// when their endpoint is not configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Repository root", cfg.Paths.RepoRoot),
		CheckFreeSpace("Content tree free space", cfg.Paths.RepoRoot, uint64(cfg.Ingest.MinFreeMiB)),
	}
	if cfg.Paths.StateDir != "" {
		results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	}

	results = append(results, CheckGitHub(ctx, cfg.Repository.APIBaseURL, cfg.Repository.Token))

	if cfg.Notifications.WebhookURL != "" {
		results = append(results, CheckWebhook(ctx, cfg.Notifications.WebhookURL))
	}
	return results
}
