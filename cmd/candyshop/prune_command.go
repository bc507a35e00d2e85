package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"candyshop/internal/prune"
)

func newPruneCommand(ctx *commandContext) *cobra.Command {
	var apply bool
	var dryRun bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove preview files no longer referenced by the catalog",
		Long: "Reduce the catalog to the newest preview per song, mark superseded entries as pruned, " +
			"and delete preview files nothing references. Pruned flags are always saved; deletion only " +
			"happens with --apply or when prune.dry_run is false in the configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if apply && dryRun {
				return fmt.Errorf("--apply and --dry-run are mutually exclusive")
			}
			store, err := ctx.catalogStore()
			if err != nil {
				return err
			}

			mode := cfg.Prune.DryRun
			switch {
			case apply:
				mode = false
			case dryRun:
				mode = true
			}

			svc := prune.New(cfg, store, ctx.notifier(), ctx.log())
			report, err := svc.Run(cmd.Context(), prune.Options{DryRun: mode})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}
			printPruneReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Delete files and persist pruned flags")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be removed without changing anything")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the prune report as JSON")
	return cmd
}

func printPruneReport(out io.Writer, report *prune.Report) {
	if report.DryRun {
		fmt.Fprintln(out, "Dry run: no files were deleted (pruned flags were saved)")
	}
	rows := [][]string{
		{"Candidates", fmt.Sprintf("%d", report.CandidatesFound)},
		{"Deleted", fmt.Sprintf("%d", report.Deleted)},
		{"Retained", fmt.Sprintf("%d", report.Retained)},
		{"Entries pruned", fmt.Sprintf("%d", report.MarkedPruned)},
		{"Missing previews", fmt.Sprintf("%d", len(report.MissingPreviews))},
		{"Missing binaries", fmt.Sprintf("%d", len(report.MissingBinaries))},
		{"Orphaned binaries", fmt.Sprintf("%d", len(report.OrphanedBinaries))},
	}
	writeTable(out, []column{textColumn("Check"), countColumn("Count")}, rows)

	if len(report.Candidates) > 0 {
		verb := "Deleted"
		if report.DryRun {
			verb = "Would delete"
		}
		fmt.Fprintf(out, "%s:\n", verb)
		for _, rel := range report.Candidates {
			fmt.Fprintf(out, "  %s\n", rel)
		}
	}
	printEntryRefs(out, "Missing previews", report.MissingPreviews)
	printEntryRefs(out, "Missing binaries", report.MissingBinaries)
	if len(report.OrphanedBinaries) > 0 {
		fmt.Fprintln(out, "Orphaned binaries (not deleted):")
		for _, rel := range report.OrphanedBinaries {
			fmt.Fprintf(out, "  %s\n", rel)
		}
	}
}

func printEntryRefs(out io.Writer, title string, refs []prune.EntryRef) {
	if len(refs) == 0 {
		return
	}
	fmt.Fprintf(out, "%s:\n", title)
	for _, ref := range refs {
		line := fmt.Sprintf("  #%d %s - %s", ref.Index, ref.Game, ref.Song)
		if ref.Reason != "" {
			line += " (" + ref.Reason + ")"
		}
		fmt.Fprintln(out, line)
	}
}
