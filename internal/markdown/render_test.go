package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cellRow(values ...any) []Cell {
	row := make([]Cell, len(values))
	for i, v := range values {
		row[i] = Cell{Value: v, MergeOriginRow: -1, MergeOriginCol: -1}
	}
	return row
}

func TestRender_Basic(t *testing.T) {
	sheet := Sheet{
		Name: "Products",
		Rows: [][]Cell{
			cellRow("Name", "Price"),
			cellRow("Widget", 19.99),
			cellRow("Gadget|Pro", nil),
		},
	}
	out, err := Render(sheet, 0)
	require.NoError(t, err)
	assert.Contains(t, out, "| Name | Price |")
	assert.Contains(t, out, "| --- | --- |")
	assert.Contains(t, out, "| Widget | 19.99 |")
	assert.Contains(t, out, "Gadget\\|Pro")
}

func TestRender_MergedCellFillDown(t *testing.T) {
	sheet := Sheet{
		Name: "Merged",
		Rows: [][]Cell{
			cellRow("Category", "Name"),
			{{Value: "Electronics", MergeOriginRow: -1, MergeOriginCol: -1}, {Value: "Phone", MergeOriginRow: -1, MergeOriginCol: -1}},
			{{Value: "Electronics", MergeOriginRow: 1, MergeOriginCol: 0}, {Value: "Laptop", MergeOriginRow: -1, MergeOriginCol: -1}},
		},
	}
	out, err := Render(sheet, 0)
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	assert.Contains(t, lines[3], "Electronics")
}

func TestRender_TruncatesLongCells(t *testing.T) {
	sheet := Sheet{
		Name: "Long",
		Rows: [][]Cell{
			cellRow("Name"),
			cellRow(strings.Repeat("x", 100)),
		},
	}
	out, err := Render(sheet, 10)
	require.NoError(t, err)
	assert.Contains(t, out, strings.Repeat("x", 10)+"...")
}

func TestRender_EmptySheet(t *testing.T) {
	_, err := Render(Sheet{Name: "Empty"}, 0)
	assert.Error(t, err)
}

func TestChunk_OverlapCoversEveryRow(t *testing.T) {
	rows := [][]Cell{cellRow("Name")}
	for i := 0; i < 25; i++ {
		rows = append(rows, cellRow("item"))
	}
	sheet := Sheet{Name: "Big", Rows: rows}

	chunks, err := Chunk(sheet, 10, 3, 0)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	covered := make(map[int]int)
	for _, c := range chunks {
		for r := c.StartRow; r < c.EndRow; r++ {
			covered[r]++
		}
	}
	for r := 0; r < 25; r++ {
		assert.GreaterOrEqual(t, covered[r], 1, "row %d must be covered", r)
	}
	// Rows in the overlap between the first two chunks ([0,10) and [7,17))
	// appear in both.
	assert.GreaterOrEqual(t, covered[8], 2)
}

func TestChunk_TotalRowsStamped(t *testing.T) {
	rows := [][]Cell{cellRow("Name"), cellRow("a"), cellRow("b")}
	sheet := Sheet{Name: "Small", Rows: rows}
	chunks, err := Chunk(sheet, 10, 2, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 2, chunks[0].TotalRows)
}
