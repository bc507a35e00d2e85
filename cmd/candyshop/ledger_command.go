package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"candyshop/internal/ledger"
)

type ledgerRow struct {
	ID          int64  `json:"id"`
	PullRequest int    `json:"pull_request"`
	Outcome     string `json:"outcome"`
	Game        string `json:"game,omitempty"`
	Song        string `json:"song,omitempty"`
	Revision    int    `json:"revision"`
	EntryIndex  *int   `json:"entry_index,omitempty"`
	RequestID   string `json:"request_id"`
	Message     string `json:"message,omitempty"`
	Warnings    int    `json:"warnings"`
	CreatedAt   string `json:"created_at"`
}

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var pull int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show the ingestion history",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			var records []ledger.Record
			if pull > 0 {
				records, err = store.ForPullRequest(cmd.Context(), pull)
			} else {
				records, err = store.List(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			rows := make([]ledgerRow, 0, len(records))
			for _, rec := range records {
				rows = append(rows, toLedgerRow(rec))
			}
			if jsonOutput {
				return writeJSON(cmd, rows)
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No ingestions recorded")
				return nil
			}
			table := make([][]string, 0, len(rows))
			for _, row := range rows {
				subject := row.Message
				if row.Outcome == string(ledger.OutcomeIngested) {
					subject = fmt.Sprintf("%s - %s", row.Game, row.Song)
				}
				table = append(table, []string{
					row.CreatedAt,
					"#" + strconv.Itoa(row.PullRequest),
					row.Outcome,
					subject,
					strconv.Itoa(row.Warnings),
				})
			}
			writeTable(out,
				[]column{textColumn("When"), countColumn("PR"), textColumn("Outcome"), textColumn("Detail"), countColumn("Warnings")},
				table,
			)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show")
	cmd.Flags().IntVar(&pull, "pr", 0, "Only show records for this pull request")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output records as JSON")
	return cmd
}

func toLedgerRow(rec ledger.Record) ledgerRow {
	row := ledgerRow{
		ID:          rec.ID,
		PullRequest: rec.PullNumber,
		Outcome:     string(rec.Outcome),
		Game:        rec.Game,
		Song:        rec.Song,
		Revision:    rec.Revision,
		RequestID:   rec.RequestID,
		Message:     rec.Message,
		Warnings:    rec.Warnings,
		CreatedAt:   rec.CreatedAt.Local().Format(time.DateTime),
	}
	if rec.EntryIndex >= 0 {
		index := rec.EntryIndex
		row.EntryIndex = &index
	}
	return row
}
