package formatter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRendersAlignedColumns(t *testing.T) {
	tbl := NewTable(
		Column{Header: "Session"},
		Column{Header: "Entries", Align: AlignRight},
	)
	tbl.AddRow("sess-1", "12")
	tbl.AddRow("a-much-longer-session-id", "3")

	var out strings.Builder
	require.NoError(t, tbl.Render(&out))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[1], "Session")
	assert.Contains(t, lines[2], "┼")
	assert.Contains(t, lines[3], "│ sess-1")
	assert.Contains(t, lines[3], "12 │")

	// Every row is the same rendered width.
	width := utf8.RuneCountInString(lines[0])
	for _, line := range lines[1:] {
		assert.Equal(t, width, utf8.RuneCountInString(line))
	}
}

func TestTableHandlesWideRunes(t *testing.T) {
	tbl := NewTable(Column{Header: "Title"})
	tbl.AddRow("修复扫描器")
	tbl.AddRow("fix")

	var out strings.Builder
	require.NoError(t, tbl.Render(&out))
	assert.Contains(t, out.String(), "修复扫描器")
}

func TestTableMissingCellsRenderEmpty(t *testing.T) {
	tbl := NewTable(Column{Header: "A"}, Column{Header: "B"})
	tbl.AddRow("only")

	var out strings.Builder
	require.NoError(t, tbl.Render(&out))
	assert.Contains(t, out.String(), "only")
}
