package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"candyshop/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check the candyshop configuration",
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return cmd
}

// initTarget resolves where `config init` writes. An empty flag means the
// default per-user location.
func initTarget(flag string) (string, error) {
	if flag = strings.TrimSpace(flag); flag == "" {
		return config.DefaultConfigPath()
	}
	return config.ExpandPath(flag)
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration for a catalog checkout",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}
			switch _, err := os.Stat(target); {
			case err == nil && !overwrite:
				return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
			case err != nil && !errors.Is(err, fs.ErrNotExist):
				return fmt.Errorf("check config path: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set paths.repo_root to your catalog checkout and repository.token (or export GITHUB_TOKEN) before ingesting.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing configuration file")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and print the catalog layout it resolves to",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if ctx.configFlag != nil {
				path = *ctx.configFlag
			}
			cfg, resolved, exists, err := config.Load(strings.TrimSpace(path))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			out := cmd.OutOrStdout()
			if !exists {
				fmt.Fprintf(out, "No file at %s; using defaults\n", resolved)
			} else {
				fmt.Fprintf(out, "Config path: %s\n", resolved)
			}
			printLayout(out, cfg)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

// printLayout lists where each catalog artifact lives under cfg.
func printLayout(out io.Writer, cfg *config.Config) {
	logFile := cfg.LogPath()
	if logFile == "" {
		logFile = "(stderr only)"
	}
	rows := [][2]string{
		{"Repository", cfg.Repository.Slug},
		{"Catalog", cfg.CatalogPath()},
		{"Binaries", filepath.Join(cfg.Paths.RepoRoot, cfg.Paths.BinariesDir)},
		{"Previews", filepath.Join(cfg.Paths.RepoRoot, cfg.Paths.PreviewsDir)},
		{"Pack output", cfg.PackOutputPath()},
		{"Ledger", cfg.LedgerPath()},
		{"Log file", logFile},
		{"Webhook", yesNo(cfg.Notifications.WebhookURL != "")},
	}
	for _, row := range rows {
		fmt.Fprintf(out, "%-12s %s\n", row[0]+":", row[1])
	}
}
