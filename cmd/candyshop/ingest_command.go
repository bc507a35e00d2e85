package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"candyshop/internal/catalog"
	"candyshop/internal/ingest"
	"candyshop/internal/logging"
	"candyshop/internal/services"
)

type ingestOutput struct {
	PullRequest int                `json:"pull_request"`
	RequestID   string             `json:"request_id"`
	Index       int                `json:"index"`
	Revision    int                `json:"revision"`
	Entry       catalog.Entry      `json:"entry"`
	Warnings    []services.Warning `json:"warnings,omitempty"`
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var jsonOutput bool
	var comment bool

	cmd := &cobra.Command{
		Use:   "ingest <pull-request>",
		Short: "Add a merged song submission to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parsePullNumber(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.catalogStore()
			if err != nil {
				return err
			}
			client, err := ctx.sourceClient()
			if err != nil {
				return err
			}
			ledgerStore, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer ledgerStore.Close()

			engine := ingest.NewEngine(cfg, store, client,
				ingest.WithLogger(ctx.log()),
				ingest.WithNotifier(ctx.notifier()),
				ingest.WithLedger(ledgerStore),
			)

			runCtx := cmd.Context()
			result, err := engine.Ingest(runCtx, number, ingest.Options{Force: force})
			if err != nil {
				if comment && shouldComment(err) {
					if cerr := client.Comment(runCtx, number, services.UserMessage(err)); cerr != nil {
						logging.WarnWithContext(ctx.log(), "pull request comment failed", "comment_failed",
							logging.PullRequest(number),
							logging.Error(cerr),
							logging.Impact("contributor was not told why the submission was rejected"),
						)
					}
				}
				return err
			}

			if comment {
				postAddedComment(runCtx, ctx, client.Comment, number, result)
			}

			if jsonOutput {
				return writeJSON(cmd, ingestOutput{
					PullRequest: result.PullRequest,
					RequestID:   result.RequestID,
					Index:       result.Index,
					Revision:    result.Revision,
					Entry:       result.Entry,
					Warnings:    result.Warnings,
				})
			}
			printIngestResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Ingest even when the ledger shows the pull request was already added")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the created entry as JSON")
	cmd.Flags().BoolVar(&comment, "comment", false, "Post the outcome as a comment on the pull request")
	return cmd
}

func parsePullNumber(arg string) (int, error) {
	arg = strings.TrimPrefix(strings.TrimSpace(arg), "#")
	number, err := strconv.Atoi(arg)
	if err != nil || number <= 0 {
		return 0, fmt.Errorf("invalid pull request number %q", arg)
	}
	return number, nil
}

// shouldComment limits contributor-facing comments to problems the
// contributor can fix.
func shouldComment(err error) bool {
	return errors.Is(err, services.ErrMissingRequiredArtifact) || errors.Is(err, services.ErrValidation)
}

func postAddedComment(runCtx context.Context, ctx *commandContext, post func(context.Context, int, string) error, number int, result *ingest.Result) {
	body := fmt.Sprintf("Added **%s - %s** to the catalog.", result.Entry.Game, result.Entry.Song)
	if err := post(runCtx, number, body); err != nil {
		logging.WarnWithContext(ctx.log(), "pull request comment failed", "comment_failed",
			logging.PullRequest(number),
			logging.Error(err),
		)
	}
}

func printIngestResult(out io.Writer, result *ingest.Result) {
	fmt.Fprintf(out, "Added #%d: %s - %s\n", result.Index, result.Entry.Game, result.Entry.Song)
	if result.Revision > 0 {
		fmt.Fprintf(out, "Revision: %d\n", result.Revision)
	}
	fmt.Fprintf(out, "Binary: %s\n", result.Entry.Binary)
	if result.Entry.Audio != "" {
		fmt.Fprintf(out, "Preview: %s\n", result.Entry.Audio)
	}
	if result.Entry.Duration != nil {
		fmt.Fprintf(out, "Duration: %s\n", formatSeconds(*result.Entry.Duration))
	}
	if len(result.Warnings) == 0 {
		return
	}
	fmt.Fprintf(out, "Warnings (%d):\n", len(result.Warnings))
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "  - %s\n", w.String())
	}
}

func formatSeconds(seconds float64) string {
	total := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
