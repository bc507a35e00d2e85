package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"candyshop/internal/config"
	"candyshop/internal/pack"
)

func newPackCommand(ctx *commandContext) *cobra.Command {
	var output string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Build the distributable archive of the newest revision of every song",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.catalogStore()
			if err != nil {
				return err
			}
			opts := pack.Options{}
			if target := strings.TrimSpace(output); target != "" {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve output path: %w", err)
				}
				opts.Output = expanded
			}

			report, err := pack.NewBuilder(cfg, store, ctx.log()).Build(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}
			printPackReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive destination (defaults to paths.pack_output)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the pack report as JSON")
	return cmd
}

func printPackReport(out io.Writer, report *pack.Report) {
	fmt.Fprintf(out, "Wrote %s\n", report.Output)
	fmt.Fprintf(out, "Packed %d songs (%d older revisions, %d pruned skipped)\n",
		report.Packed, report.SkippedDuplicates, report.SkippedPruned)

	if len(report.Categories) > 0 {
		rows := make([][]string, 0, len(report.Categories))
		for _, key := range report.SortedCategories() {
			rows = append(rows, []string{pack.CategoryLabel(key), strconv.Itoa(report.Categories[key])})
		}
		writeTable(out, []column{textColumn("Category"), countColumn("Songs")}, rows, "Total", strconv.Itoa(report.Packed))
	}
	if len(report.MissingBinaries) > 0 {
		fmt.Fprintln(out, "Missing binaries:")
		for _, rel := range report.MissingBinaries {
			fmt.Fprintf(out, "  %s\n", rel)
		}
	}
	for _, w := range report.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", w.String())
	}
}
