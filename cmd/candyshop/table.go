package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column is one table column. Count columns hold numbers and are right aligned.
type column struct {
	header string
	count  bool
}

func textColumn(header string) column { return column{header: header} }

func countColumn(header string) column { return column{header: header, count: true} }

// Song titles wider than this wrap inside their cell.
const maxCellWidth = 48

// writeTable prints rows under cols. Short rows are padded with blanks and
// extra cells are dropped. A non-empty footer becomes the table footer.
func writeTable(w io.Writer, cols []column, rows [][]string, footer ...string) {
	if len(cols) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(tableRow(cols, headers(cols)))
	for _, row := range rows {
		tw.AppendRow(tableRow(cols, row))
	}
	if len(footer) > 0 {
		tw.AppendFooter(tableRow(cols, footer))
	}

	configs := make([]table.ColumnConfig, len(cols))
	for i, col := range cols {
		align := text.AlignLeft
		if col.count {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignFooter: align,
			AlignHeader: text.AlignLeft,
			WidthMax:    maxCellWidth,
		}
	}
	tw.SetColumnConfigs(configs)
	fmt.Fprintln(w, tw.Render())
}

func headers(cols []column) []string {
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = col.header
	}
	return out
}

func tableRow(cols []column, cells []string) table.Row {
	row := make(table.Row, len(cols))
	for i := range row {
		row[i] = ""
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	return row
}
