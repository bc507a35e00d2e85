package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"candyshop/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var requestID string
	var match string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log lines",
		Long: "Print the tail of the candyshop log file. --request narrows the output to one " +
			"ingestion using the request id shown by `candyshop ledger --json`.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogPath()
			if path == "" {
				return errors.New("paths.log_dir is not configured")
			}
			if requestID = strings.TrimSpace(requestID); requestID != "" && strings.TrimSpace(match) != "" {
				return errors.New("--request and --grep are mutually exclusive")
			}
			filter := requestID
			if filter == "" {
				filter = strings.TrimSpace(match)
			}

			out := cmd.OutOrStdout()
			tail, offset, err := logs.Last(path, logs.Options{Limit: lines, Match: filter})
			if err != nil {
				return err
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, filter, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are written")
	cmd.Flags().StringVar(&requestID, "request", "", "Only show lines for this ingestion request id")
	cmd.Flags().StringVar(&match, "grep", "", "Only show lines containing this text")
	return cmd
}
