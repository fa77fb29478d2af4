package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/crmimport/internal/core"
)

// ReadCSV reads a delimited text table. Every cell is a string; empty
// cells are nil. A leading byte order mark is dropped (UTF-16 input with
// a BOM is decoded) and invalid UTF-8 sequences become U+FFFD.
func ReadCSV(r io.Reader, opts Options) (core.RawTable, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}

	var grid [][]any
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return core.RawTable{}, fmt.Errorf("read csv: %w", err)
		}
		cells := make([]any, len(record))
		for i, v := range record {
			if v != "" {
				cells[i] = v
			}
		}
		grid = append(grid, cells)
	}

	return build(grid, opts.HeaderRow)
}
