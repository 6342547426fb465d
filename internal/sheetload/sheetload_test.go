package sheetload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestLoadCSV_ParsesRowsIntoSingleSheet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,price,sku\nWidget,9.99,W-1\nGadget,19.99,G-1\n"), 0o644))

	sheet, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "name", sheet.Rows[0][0].Value)
	assert.Equal(t, "Widget", sheet.Rows[1][0].Value)
	assert.Equal(t, "19.99", sheet.Rows[2][1].Value)
}

func TestLoadWorkbook_FillsMergedCellSpan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.xlsx")

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "name"))
	require.NoError(t, f.SetCellValue(sheet, "B1", "category"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "Widget"))
	require.NoError(t, f.SetCellValue(sheet, "B2", "Tools"))
	require.NoError(t, f.SetCellValue(sheet, "A3", "Gadget"))
	require.NoError(t, f.MergeCell(sheet, "B2", "B3"))
	require.NoError(t, f.SaveAs(path))

	sheets, err := LoadWorkbook(path)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, 1, sheets[0].Rows[2][1].MergeOriginRow)
	assert.Equal(t, 1, sheets[0].Rows[2][1].MergeOriginCol)
}

func TestTablesFromText_RecoversWhitespaceAlignedTable(t *testing.T) {
	text := "Supplier Price List\n\nname        price     sku\nWidget      9.99      W-1\nGadget      19.99     G-1\n\nEnd of document"

	sheets := tablesFromText(text)
	require.Len(t, sheets, 1)
	assert.Equal(t, "name", sheets[0].Rows[0][0].Value)
	assert.Equal(t, "Widget", sheets[0].Rows[1][0].Value)
	assert.Equal(t, "G-1", sheets[0].Rows[2][2].Value)
}
