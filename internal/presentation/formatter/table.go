// Package formatter renders plain-text tables for the CLI listing commands.
package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Alignment controls how a column pads its cells.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// Column describes one table column.
type Column struct {
	Header string
	Align  Alignment
}

// Table accumulates rows and renders them with box-drawing borders. Cell
// widths are display widths, so wide characters in session titles line up.
type Table struct {
	columns []Column
	rows    [][]string
}

// NewTable creates a table with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{columns: columns}
}

// AddRow appends one row. Missing cells render empty; extra cells are
// dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.columns))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	t.rows = append(t.rows, row)
}

// Render writes the table to w.
func (t *Table) Render(w io.Writer) error {
	widths := t.columnWidths()

	if err := t.writeBorder(w, widths, "┌", "┬", "┐"); err != nil {
		return err
	}
	headers := make([]string, len(t.columns))
	for i, col := range t.columns {
		headers[i] = col.Header
	}
	if err := t.writeRow(w, widths, headers); err != nil {
		return err
	}
	if err := t.writeBorder(w, widths, "├", "┼", "┤"); err != nil {
		return err
	}
	for _, row := range t.rows {
		if err := t.writeRow(w, widths, row); err != nil {
			return err
		}
	}
	return t.writeBorder(w, widths, "└", "┴", "┘")
}

func (t *Table) columnWidths() []int {
	widths := make([]int, len(t.columns))
	for i, col := range t.columns {
		widths[i] = runewidth.StringWidth(col.Header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

func (t *Table) writeBorder(w io.Writer, widths []int, left, middle, right string) error {
	var b strings.Builder
	b.WriteString(left)
	for i, width := range widths {
		b.WriteString(strings.Repeat("─", width+2))
		if i < len(widths)-1 {
			b.WriteString(middle)
		}
	}
	b.WriteString(right)
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func (t *Table) writeRow(w io.Writer, widths []int, cells []string) error {
	var b strings.Builder
	b.WriteString("│")
	for i, cell := range cells {
		pad := widths[i] - runewidth.StringWidth(cell)
		if pad < 0 {
			pad = 0
		}
		if t.columns[i].Align == AlignRight {
			fmt.Fprintf(&b, " %s%s │", strings.Repeat(" ", pad), cell)
		} else {
			fmt.Fprintf(&b, " %s%s │", cell, strings.Repeat(" ", pad))
		}
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
