package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"candyshop/internal/catalog"
)

type catalogRow struct {
	Index int           `json:"index"`
	Entry catalog.Entry `json:"entry"`
}

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect catalog entries",
	}
	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	catalogCmd.AddCommand(newCatalogShowCommand(ctx))
	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var game string
	var includePruned bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			game = strings.TrimSpace(game)
			var rows []catalogRow
			for i, entry := range cat.Entries() {
				if entry.Pruned && !includePruned {
					continue
				}
				if game != "" && !strings.EqualFold(entry.Game, game) {
					continue
				}
				rows = append(rows, catalogRow{Index: i, Entry: entry})
			}
			if jsonOutput {
				if rows == nil {
					rows = []catalogRow{}
				}
				return writeJSON(cmd, rows)
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No catalog entries")
				return nil
			}
			writeTable(out,
				[]column{countColumn("#"), textColumn("Game"), textColumn("Song"), textColumn("Category"), countColumn("Length"), textColumn("Pruned")},
				catalogTableRows(rows),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&game, "game", "", "Only list entries for this game")
	cmd.Flags().BoolVar(&includePruned, "all", false, "Include entries whose preview was pruned")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output entries as JSON")
	return cmd
}

func newCatalogShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <index>",
		Short: "Show one catalog entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil || index < 0 {
				return fmt.Errorf("invalid entry index %q", args[0])
			}
			cat, err := loadCatalog(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			entry, ok := cat.At(index)
			if !ok {
				return fmt.Errorf("entry %d out of range (catalog has %d entries)", index, cat.Len())
			}
			if jsonOutput {
				return writeJSON(cmd, catalogRow{Index: index, Entry: entry})
			}
			printEntry(cmd.OutOrStdout(), index, entry)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the entry as JSON")
	return cmd
}

func loadCatalog(ctx *commandContext, warnOut io.Writer) (*catalog.Catalog, error) {
	store, err := ctx.catalogStore()
	if err != nil {
		return nil, err
	}
	cat, warnings, err := store.Load()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		fmt.Fprintf(warnOut, "Warning: %s\n", w.String())
	}
	if cat == nil {
		return nil, errors.New("catalog unavailable")
	}
	return cat, nil
}

func catalogTableRows(rows []catalogRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		length := "-"
		if row.Entry.Duration != nil {
			length = formatSeconds(*row.Entry.Duration)
		}
		category := row.Entry.Category
		if category == "" {
			category = "-"
		}
		out = append(out, []string{
			strconv.Itoa(row.Index),
			row.Entry.Game,
			row.Entry.Song,
			category,
			length,
			yesNo(row.Entry.Pruned),
		})
	}
	return out
}

func printEntry(out io.Writer, index int, entry catalog.Entry) {
	field := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(out, "%-13s %s\n", label+":", value)
	}
	field("Index", strconv.Itoa(index))
	field("Game", entry.Game)
	field("Song", entry.Song)
	field("Category", entry.Category)
	field("Composers", entry.Composers)
	field("Converters", entry.Converters)
	field("Binary", entry.Binary)
	field("Preview", entry.Audio)
	if entry.Duration != nil {
		field("Length", formatSeconds(*entry.Duration))
	}
	if entry.Tracks != nil {
		field("Tracks", strconv.Itoa(*entry.Tracks))
	}
	field("Tags", strings.Join(entry.Tags, ", "))
	field("Verified", yesNo(entry.Verified))
	field("Date", entry.Date)
	field("Notes", entry.AdditionalNotes)
	field("Update notes", entry.UpdateNotes)
	field("Pruned", yesNo(entry.Pruned))
}
