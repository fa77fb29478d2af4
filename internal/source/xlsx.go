package source

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/crmimport/internal/core"
)

// ReadXLSX reads one worksheet of a workbook. Numeric cells become float64,
// date-formatted numeric cells time.Time, boolean cells bool and text cells
// string. Text keeps leading zeros.
func ReadXLSX(r io.Reader, opts Options) (core.RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return core.RawTable{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return core.RawTable{}, ErrEmptySheet
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return core.RawTable{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	c := &cellReader{f: f, sheet: sheet, dateStyles: make(map[int]bool)}
	grid := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, raw := range row {
			if raw == "" {
				continue
			}
			cells[j] = c.value(i, j, raw)
		}
		grid[i] = cells
	}

	return build(grid, opts.HeaderRow)
}

// cellReader types raw cell values using the workbook's cell types and
// number formats.
type cellReader struct {
	f          *excelize.File
	sheet      string
	dateStyles map[int]bool
}

func (c *cellReader) value(row, col int, raw string) any {
	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return raw
	}
	typ, err := c.f.GetCellType(c.sheet, axis)
	if err != nil {
		return raw
	}

	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError:
		return raw
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	}

	num, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	if typ == excelize.CellTypeDate || c.isDate(axis) {
		if t, err := excelize.ExcelDateToTime(num, false); err == nil {
			return t
		}
	}
	return num
}

// isDate reports whether the cell's number format renders a date.
func (c *cellReader) isDate(axis string) bool {
	id, err := c.f.GetCellStyle(c.sheet, axis)
	if err != nil || id == 0 {
		return false
	}
	if v, ok := c.dateStyles[id]; ok {
		return v
	}

	date := false
	if style, err := c.f.GetStyle(id); err == nil {
		switch {
		case style.CustomNumFmt != nil:
			date = isDateFormat(*style.CustomNumFmt)
		default:
			date = builtinDateFormat(style.NumFmt)
		}
	}
	c.dateStyles[id] = date
	return date
}

// builtinDateFormat reports whether a built-in number format id is a date
// or date-time format.
func builtinDateFormat(id int) bool {
	return (id >= 14 && id <= 22) || (id >= 27 && id <= 36) || (id >= 50 && id <= 58)
}

// isDateFormat reports whether a custom number format contains date tokens
// outside quoted literals and bracketed sections.
func isDateFormat(format string) bool {
	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range strings.ToLower(format) {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		default:
			b.WriteRune(r)
		}
	}
	f := b.String()
	return strings.ContainsAny(f, "yd") || strings.Contains(f, "mmm")
}
