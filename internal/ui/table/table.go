// Package table prints rows of text cells aligned in columns.
package table

import (
	"io"
	"strings"

	"github.com/jskov/backup/internal/ui"
)

// Table contains data for a table to be printed.
type Table struct {
	columns []string
	rows    [][]string
	footer  []string

	CellSeparator string
}

// New initializes a new Table with the given column headers.
func New(columns ...string) *Table {
	return &Table{
		columns:       columns,
		CellSeparator: "  ",
	}
}

// AddRow adds a row of cells. Missing cells are left empty, extra cells
// are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.columns))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// AddFooter prints line after the table
func (t *Table) AddFooter(line string) {
	t.footer = append(t.footer, line)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) line(cells []string, widths []int) string {
	var b strings.Builder
	for i, c := range cells {
		if i > 0 {
			b.WriteString(t.CellSeparator)
		}
		b.WriteString(c)
		if pad := widths[i] - ui.DisplayWidth(c); pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		}
	}
	return strings.TrimRight(b.String(), " ") + "\n"
}

// Write prints the table to w.
func (t *Table) Write(w io.Writer) error {
	if len(t.columns) == 0 {
		return nil
	}

	widths := make([]int, len(t.columns))
	for i, c := range t.columns {
		widths[i] = ui.DisplayWidth(c)
	}
	for _, row := range t.rows {
		for i, c := range row {
			widths[i] = max(widths[i], ui.DisplayWidth(c))
		}
	}

	total := (len(widths) - 1) * len(t.CellSeparator)
	for _, n := range widths {
		total += n
	}
	sep := strings.Repeat("-", total) + "\n"

	var b strings.Builder
	b.WriteString(t.line(t.columns, widths))
	b.WriteString(sep)
	for _, row := range t.rows {
		b.WriteString(t.line(row, widths))
	}
	b.WriteString(sep)
	for _, l := range t.footer {
		b.WriteString(l + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
