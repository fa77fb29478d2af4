package source

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	input := "\ufeffName,Organization ID,,Organization ID\n" +
		"Alfa,100,x,101\n" +
		",,,\n" +
		"\"Beta, a.s.\",200\n"

	table, err := ReadCSV(strings.NewReader(input), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Organization ID", "Unnamed: 2", "Organization ID.1"}, table.Columns)
	require.Equal(t, 2, table.Len(), "blank rows are skipped")
	assert.Equal(t, "101", table.Rows[0]["Organization ID.1"])
	assert.Equal(t, "Beta, a.s.", table.Rows[1]["Name"])
	assert.Nil(t, table.Rows[1]["Unnamed: 2"], "short rows are padded")
}

func TestReadCSVHeaderRow(t *testing.T) {
	input := "Accounts export 2024\nName;ZIP\nAlfa;110 00\n"

	table, err := ReadCSV(strings.NewReader(input), Options{HeaderRow: 1, Comma: ';'})
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "ZIP"}, table.Columns)
	assert.Equal(t, "110 00", table.Rows[0]["ZIP"])
}

func TestReadCSVInvalidUTF8(t *testing.T) {
	input := "Name\nPlze\xf2\n"

	table, err := ReadCSV(strings.NewReader(input), Options{})
	require.NoError(t, err)
	assert.Equal(t, "Plze\ufffd", table.Rows[0]["Name"])
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), Options{})
	assert.ErrorIs(t, err, ErrEmptySheet)

	_, err = ReadCSV(strings.NewReader("only,header\n"), Options{HeaderRow: 3})
	assert.ErrorIs(t, err, ErrNoHeaderRow)
}

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	rows := [][]any{
		{"Reg.č. Produktu", "Množství (MNF)", "Strom", "Blocked", "Note"},
		{"00123", 2.5, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), true, nil},
		{"P2", 10, "1.1.", false, "ok"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	style, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "C2", "C2", style))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadXLSX(t *testing.T) {
	table, err := ReadXLSX(bytes.NewReader(workbook(t)), Options{})
	require.NoError(t, err)

	require.Equal(t, 2, table.Len())
	first := table.Rows[0]
	assert.Equal(t, "00123", first["Reg.č. Produktu"], "text keeps leading zeros")
	assert.Equal(t, 2.5, first["Množství (MNF)"])
	assert.Equal(t, true, first["Blocked"])
	assert.Nil(t, first["Note"])

	date, ok := first["Strom"].(time.Time)
	require.True(t, ok, "date cell should load as time.Time, got %T", first["Strom"])
	assert.Equal(t, 1, date.Day())
	assert.Equal(t, time.February, date.Month())

	second := table.Rows[1]
	assert.Equal(t, 10.0, second["Množství (MNF)"])
	assert.Equal(t, "1.1.", second["Strom"])
	assert.Equal(t, false, second["Blocked"])
}

func TestReadXLSXMissingSheet(t *testing.T) {
	_, err := ReadXLSX(bytes.NewReader(workbook(t)), Options{Sheet: "BOM"})
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "bom.xlsx")
	require.NoError(t, os.WriteFile(path, workbook(t), 0o644))
	table, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	csvPath := filepath.Join(dir, "products.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("ProductCode,Salesforce_ID\nP1,01t1\n"), 0o644))
	table, err = Load(csvPath, Options{})
	require.NoError(t, err)
	assert.Equal(t, "01t1", table.Rows[0]["Salesforce_ID"])

	_, err = Load(filepath.Join(dir, "missing.csv"), Options{})
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = Load(filepath.Join(dir, "notes.pdf"), Options{})
	assert.ErrorIs(t, err, ErrFileNotFound)

	pdf := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))
	_, err = Load(pdf, Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
