// Package source loads tabular extracts (CSV and XLSX) into core.RawTable.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/crmimport/internal/core"
)

var (
	// ErrFileNotFound indicates the input file does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrUnsupportedFormat indicates an extension no reader handles.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptySheet indicates the input has no rows at all.
	ErrEmptySheet = errors.New("empty sheet")
	// ErrNoHeaderRow indicates the configured header row is past the end of the input.
	ErrNoHeaderRow = errors.New("no header row")
)

// Options controls how a table is read.
type Options struct {
	// HeaderRow is the zero-based row holding the column names. Rows above
	// it are ignored.
	HeaderRow int
	// Sheet selects the XLSX worksheet. Empty selects the first sheet.
	Sheet string
	// Comma is the CSV field delimiter. Zero means ','.
	Comma rune
}

// Load reads path as CSV or XLSX depending on its extension.
func Load(path string, opts Options) (core.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.RawTable{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return core.RawTable{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var table core.RawTable
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		table, err = ReadCSV(f, opts)
	case ".xlsx", ".xlsm":
		table, err = ReadXLSX(f, opts)
	default:
		return core.RawTable{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return core.RawTable{}, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	return table, nil
}

// build turns a grid of cells into a table. grid[opts.HeaderRow] holds the
// header. Rows whose cells are all empty are skipped.
func build(grid [][]any, headerRow int) (core.RawTable, error) {
	if len(grid) == 0 {
		return core.RawTable{}, ErrEmptySheet
	}
	if headerRow < 0 || headerRow >= len(grid) {
		return core.RawTable{}, fmt.Errorf("%w: row %d of %d", ErrNoHeaderRow, headerRow+1, len(grid))
	}

	columns := headers(grid[headerRow])
	table := core.RawTable{Columns: columns}
	for _, cells := range grid[headerRow+1:] {
		if blank(cells) {
			continue
		}
		row := make(core.RawRow, len(columns))
		for i, col := range columns {
			if i < len(cells) {
				row[col] = cells[i]
			} else {
				row[col] = nil
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// headers names every column. Empty headers become "Unnamed: <index>" and
// repeated headers get a ".<n>" suffix, the way spreadsheet exports are
// commonly referred to.
func headers(cells []any) []string {
	out := make([]string, len(cells))
	seen := make(map[string]int, len(cells))
	for i, cell := range cells {
		name := strings.TrimSpace(core.CellString(cell))
		if i == 0 {
			name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		}
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		n := seen[name]
		seen[name]++
		if n > 0 {
			name += "." + strconv.Itoa(n)
		}
		out[i] = name
	}
	return out
}

func blank(cells []any) bool {
	for _, c := range cells {
		if c == nil {
			continue
		}
		if s, ok := c.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return false
	}
	return true
}
