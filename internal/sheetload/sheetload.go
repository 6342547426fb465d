// Package sheetload decodes a submitted file (xlsx, csv, pdf) into the
// markdown.Sheet grids the renderer and selector operate on. File decoding
// is the one upstream concern the rest of the pipeline treats as opaque;
// this package is where that concern is actually discharged for the three
// formats the courier's FileKind enumerates.
package sheetload

import (
	"encoding/csv"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/Valecer/market-sub001/internal/domainerr"
	"github.com/Valecer/market-sub001/internal/markdown"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// LoadWorkbook parses every worksheet of an xlsx file into markdown.Sheet
// grids, preserving merge spans via excelize's own merged-cell index so
// markdown.Render can forward-fill them.
func LoadWorkbook(path string) ([]markdown.Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.KindParsing, err, "sheetload: open workbook %q", path)
	}
	defer f.Close()

	var sheets []markdown.Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, domainerr.Wrap(domainerr.KindParsing, err, "sheetload: read sheet %q", name)
		}
		merges, err := f.GetMergeCells(name)
		if err != nil {
			return nil, domainerr.Wrap(domainerr.KindParsing, err, "sheetload: read merges for %q", name)
		}
		sheets = append(sheets, markdown.Sheet{Name: name, Rows: cellsFromRows(rows, merges)})
	}
	return sheets, nil
}

func cellsFromRows(rows [][]string, merges []excelize.MergeCell) [][]markdown.Cell {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	grid := make([][]markdown.Cell, len(rows))
	for r, row := range rows {
		grid[r] = make([]markdown.Cell, width)
		for c := range grid[r] {
			grid[r][c] = markdown.Cell{MergeOriginRow: -1, MergeOriginCol: -1}
			if c < len(row) && row[c] != "" {
				grid[r][c].Value = row[c]
			}
		}
	}

	for _, m := range merges {
		startCol, startRow, err1 := excelize.CellNameToCoordinates(m.GetStartAxis())
		endCol, endRow, err2 := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err1 != nil || err2 != nil {
			continue
		}
		originRow, originCol := startRow-1, startCol-1
		for r := startRow - 1; r <= endRow-1 && r < len(grid); r++ {
			for c := startCol - 1; c <= endCol-1 && c < len(grid[r]); c++ {
				grid[r][c].MergeOriginRow = originRow
				grid[r][c].MergeOriginCol = originCol
			}
		}
	}
	return grid
}

// LoadCSV parses a CSV file into a single markdown.Sheet named "Sheet1",
// mirroring the one-sheet-per-file shape a spreadsheet upload would have.
func LoadCSV(path string) (markdown.Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return markdown.Sheet{}, domainerr.Wrap(domainerr.KindParsing, err, "sheetload: open csv %q", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var grid [][]markdown.Cell
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return markdown.Sheet{}, domainerr.Wrap(domainerr.KindParsing, err, "sheetload: read csv %q", path)
		}
		row := make([]markdown.Cell, len(record))
		for i, v := range record {
			row[i] = markdown.Cell{Value: v, MergeOriginRow: -1, MergeOriginCol: -1}
		}
		grid = append(grid, row)
	}
	return markdown.Sheet{Name: "Sheet1", Rows: grid}, nil
}

var pdfTablePattern = regexp.MustCompile(`^\|(.+)\|$`)

// LoadPDF extracts text from a PDF and recovers table-shaped rows from it.
// Real table structure is lost in a PDF's text layer, so this applies the
// same two-pass heuristic pdf_strategy.py falls back to when no
// Markdown-table pattern is present: split on runs of 2+ spaces or tabs,
// treat the first multi-column line as a header, and close the table at the
// first line that no longer looks tabular.
func LoadPDF(path string) ([]markdown.Sheet, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.KindParsing, err, "sheetload: open pdf %q", path)
	}
	defer f.Close()

	var text strings.Builder
	totalPage := r.NumPage()
	for i := 1; i <= totalPage; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(content)
		text.WriteString("\n")
	}

	sheets := tablesFromText(text.String())
	if len(sheets) == 0 {
		return nil, domainerr.Parsing("sheetload: no tabular content found in pdf %q", path)
	}
	return sheets, nil
}

var splitRun = regexp.MustCompile(`\t|\s{2,}`)

func tablesFromText(text string) []markdown.Sheet {
	var sheets []markdown.Sheet
	var header []string
	var body [][]string

	flush := func() {
		if header == nil || len(body) == 0 {
			header, body = nil, nil
			return
		}
		width := len(header)
		grid := make([][]markdown.Cell, 0, len(body)+1)
		grid = append(grid, cellsFromStrings(header, width))
		for _, row := range body {
			grid = append(grid, cellsFromStrings(row, width))
		}
		sheets = append(sheets, markdown.Sheet{Name: "Sheet" + strconv.Itoa(len(sheets)+1), Rows: grid})
		header, body = nil, nil
	}

	for _, line := range strings.Split(text, "\n") {
		cells := splitTabularLine(line)
		switch {
		case len(cells) >= 2 && header == nil:
			header = cells
		case len(cells) >= 2 && header != nil:
			body = append(body, cells)
		default:
			flush()
		}
	}
	flush()
	return sheets
}

func splitTabularLine(line string) []string {
	if pdfTablePattern.MatchString(strings.TrimSpace(line)) {
		trimmed := strings.Trim(strings.TrimSpace(line), "|")
		parts := strings.Split(trimmed, "|")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		return nonEmpty(parts)
	}
	return nonEmpty(splitRun.Split(strings.TrimRight(line, "\r\n"), -1))
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

func cellsFromStrings(values []string, width int) []markdown.Cell {
	row := make([]markdown.Cell, width)
	for i := range row {
		row[i] = markdown.Cell{MergeOriginRow: -1, MergeOriginCol: -1}
		if i < len(values) {
			row[i].Value = values[i]
		}
	}
	return row
}
