// Package markdown converts a spreadsheet grid into a Markdown table and
// splits it into overlapping row-chunks for LLM extraction. File decoding
// (xlsx/csv/pdf) is an upstream, out-of-scope concern; this
// package operates on an already-parsed grid of cells.
package markdown

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/domainerr"
)

// MaxCellLength is the default truncation length for an emitted cell.
const MaxCellLength = 50

// Cell is one grid cell before Markdown emission. Value holds the
// interpreted scalar (nil, bool, float64, or string); MergeOriginRow/Col
// mark the top-left cell of a merged range this cell belongs to, or -1 if
// the cell isn't merged.
type Cell struct {
	Value         any
	MergeOriginRow int
	MergeOriginCol int
}

// Sheet is a rectangular grid of cells plus its header row.
type Sheet struct {
	Name string
	Rows [][]Cell
}

// Info returns the sheet-introspection record used by the selector.
func (s Sheet) Info() catalog.SheetInfo {
	rowCount := len(s.Rows)
	if rowCount > 0 {
		rowCount--
	}
	colCount := 0
	if len(s.Rows) > 0 {
		colCount = len(s.Rows[0])
	}
	return catalog.SheetInfo{
		Name:     s.Name,
		RowCount: rowCount,
		ColCount: colCount,
		IsEmpty:  len(s.Rows) == 0,
	}
}

// fillMergedCells forward-fills every cell that belongs to a merged range
// with its origin cell's value, so downstream code sees a rectangular table.
func fillMergedCells(rows [][]Cell) [][]Cell {
	out := make([][]Cell, len(rows))
	for r, row := range rows {
		out[r] = make([]Cell, len(row))
		for c, cell := range row {
			if cell.MergeOriginRow >= 0 && cell.MergeOriginCol >= 0 &&
				(cell.MergeOriginRow != r || cell.MergeOriginCol != c) {
				origin := rows[cell.MergeOriginRow][cell.MergeOriginCol]
				out[r][c] = Cell{Value: origin.Value, MergeOriginRow: -1, MergeOriginCol: -1}
			} else {
				out[r][c] = Cell{Value: cell.Value, MergeOriginRow: -1, MergeOriginCol: -1}
			}
		}
	}
	return out
}

// formatCell renders a cell value: None/nil -> empty, bools
// preserved, floats in natural form, embedded pipes escaped, long cells
// truncated with a trailing "...".
func formatCell(v any, maxLen int) string {
	var s string
	switch val := v.(type) {
	case nil:
		s = ""
	case bool:
		if val {
			s = "true"
		} else {
			s = "false"
		}
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		s = val
	default:
		s = fmt.Sprintf("%v", val)
	}
	s = strings.ReplaceAll(s, "|", "\\|")
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}

// Render converts one sheet to a single Markdown table.
func Render(sheet Sheet, maxCellLength int) (string, error) {
	if maxCellLength <= 0 {
		maxCellLength = MaxCellLength
	}
	if len(sheet.Rows) == 0 {
		return "", domainerr.Parsing("sheet %q has no rows", sheet.Name)
	}
	filled := fillMergedCells(sheet.Rows)

	header := filled[0]
	var b strings.Builder
	b.WriteString("|")
	for _, cell := range header {
		b.WriteString(" " + formatCell(cell.Value, maxCellLength) + " |")
	}
	b.WriteString("\n|")
	for range header {
		b.WriteString(" --- |")
	}
	for _, row := range filled[1:] {
		b.WriteString("\n|")
		for _, cell := range row {
			b.WriteString(" " + formatCell(cell.Value, maxCellLength) + " |")
		}
	}
	return b.String(), nil
}

// Chunk splits a rendered Markdown table back into overlapping row-blocks.
// Given chunkSize=N and overlap=k, chunks cover rows [0,N), [N-k,2N-k), ...
// so the last k rows of each chunk are repeated at the start of the next;
// rows outside those overlaps appear in exactly one chunk.
func Chunk(sheet Sheet, chunkSize, overlap, maxCellLength int) ([]catalog.ChunkData, error) {
	if maxCellLength <= 0 {
		maxCellLength = MaxCellLength
	}
	if len(sheet.Rows) == 0 {
		return nil, domainerr.Parsing("sheet %q has no rows", sheet.Name)
	}
	if chunkSize <= 0 {
		chunkSize = 50
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	filled := fillMergedCells(sheet.Rows)
	header := filled[0]
	dataRows := filled[1:]
	totalRows := len(dataRows)

	renderHeader := func() string {
		var b strings.Builder
		b.WriteString("|")
		for _, cell := range header {
			b.WriteString(" " + formatCell(cell.Value, maxCellLength) + " |")
		}
		b.WriteString("\n|")
		for range header {
			b.WriteString(" --- |")
		}
		return b.String()
	}

	var chunks []catalog.ChunkData
	chunkID := 0
	start := 0
	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}
	for start < totalRows {
		end := start + chunkSize
		if end > totalRows {
			end = totalRows
		}
		var b strings.Builder
		b.WriteString(renderHeader())
		for _, row := range dataRows[start:end] {
			b.WriteString("\n|")
			for _, cell := range row {
				b.WriteString(" " + formatCell(cell.Value, maxCellLength) + " |")
			}
		}
		chunks = append(chunks, catalog.ChunkData{
			ChunkID:   chunkID,
			StartRow:  start,
			EndRow:    end,
			Markdown:  b.String(),
			TotalRows: totalRows,
		})
		chunkID++
		if end >= totalRows {
			break
		}
		start += step
	}
	return chunks, nil
}
