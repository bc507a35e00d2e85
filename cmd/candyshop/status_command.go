package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"candyshop/internal/config"
	"candyshop/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show catalog health and check external services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			report := newStatusReport(out)

			report.section("Catalog")
			catalogStatus(report, ctx, cfg)
			report.section("Ledger")
			ledgerStatus(report, ctx, cmd)
			report.section("Checks")
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				report.check(result, isRemoteCheck(result.Name))
			}
			fmt.Fprintln(out, report.String())

			if strict && report.failed > 0 {
				return fmt.Errorf("%d required check(s) failed", report.failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when a required check fails")
	return cmd
}

func catalogStatus(report *statusReport, ctx *commandContext, cfg *config.Config) {
	store, err := ctx.catalogStore()
	if err != nil {
		report.add("Catalog", healthFail, err.Error())
		return
	}
	cat, warnings, err := store.Load()
	switch {
	case err != nil:
		report.add("Catalog", healthFail, err.Error())
		return
	case len(warnings) > 0:
		report.add("Catalog", healthFail, warnings[0].Message)
		return
	}
	pruned := 0
	for _, entry := range cat.Entries() {
		if entry.Pruned {
			pruned++
		}
	}
	if cat.Len() == 0 {
		report.add("Catalog", healthInfo, "empty or not created yet")
	} else {
		report.add("Catalog", healthOK, fmt.Sprintf("%d entries (%d pruned)", cat.Len(), pruned))
	}
	report.add("Catalog file", healthInfo, cfg.CatalogPath())
	report.add("Repository", healthInfo, cfg.Repository.Slug)
}

func ledgerStatus(report *statusReport, ctx *commandContext, cmd *cobra.Command) {
	store, err := ctx.openLedger()
	if err != nil {
		report.add("Ledger", healthFail, err.Error())
		return
	}
	defer store.Close()
	records, err := store.List(cmd.Context(), 1)
	switch {
	case err != nil:
		report.add("Ledger", healthFail, err.Error())
	case len(records) == 0:
		report.add("Ledger", healthInfo, "No ingestions recorded")
	default:
		last := toLedgerRow(records[0])
		report.add("Last ingestion", healthInfo, fmt.Sprintf("#%d %s at %s", last.PullRequest, last.Outcome, last.CreatedAt))
	}
}

func isRemoteCheck(name string) bool {
	return name == "GitHub API" || name == "Notification webhook"
}
