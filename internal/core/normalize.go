package core

// normalize.go coerces raw spreadsheet cells into typed field values.
//
// These functions handle the messy reality of spreadsheet exports:
//   - Decimal commas and space thousand separators ("1 234,50")
//   - European, US and ISO dates, Excel serial dates, timestamps
//   - Boolean columns written as ano/x/1/true
//   - Float artifacts on identifiers ("12345.0")
//   - NaN/Inf sentinels left behind by earlier conversions
//
// Coercion never fails: anything that cannot be interpreted becomes null,
// except booleans which map to false.

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// trueTokens is the closed set of tokens read as true. Everything else is false.
var trueTokens = map[string]bool{
	"1":    true,
	"true": true,
	"yes":  true,
	"ano":  true,
	"x":    true,
}

// sentinelTokens are string spellings of not-a-number and infinity.
var sentinelTokens = map[string]bool{
	"nan":       true,
	"nat":       true,
	"none":      true,
	"<na>":      true,
	"inf":       true,
	"+inf":      true,
	"-inf":      true,
	"infinity":  true,
	"+infinity": true,
	"-infinity": true,
}

// Date layouts split by year format for proper 2-digit year handling.
// Dotted dates are day-first, slashed dates are month-first.
var (
	twoDigitYearLayouts = []string{
		"2.1.06", "02.01.06", "1/2/06", "01/02/06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04:05",
		time.RFC3339, time.RFC3339Nano,
		"2.1.2006", "02.01.2006", "2. 1. 2006", "2.1.2006 15:04", "2.1.2006 15:04:05",
		"1/2/2006", "01/02/2006", "1/2/2006 15:04", "1-2-2006", "01-02-2006",
		"Jan 2, 2006", "2 Jan 2006", "January 2, 2006",
		"20060102",
	}
)

// Excel serial date bounds (1900-01-01 .. 9999-12-31).
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// IsSentinel reports whether a raw cell is a not-a-number or infinity marker.
func IsSentinel(cell any) bool {
	switch v := cell.(type) {
	case float64:
		return math.IsNaN(v) || math.IsInf(v, 0)
	case float32:
		f := float64(v)
		return math.IsNaN(f) || math.IsInf(f, 0)
	case string:
		return sentinelTokens[strings.ToLower(strings.TrimSpace(v))]
	}
	return false
}

// CellString renders a raw cell as text. Integral floats render without a
// fractional part.
func CellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(DateLayout)
	case decimal.Decimal:
		return v.String()
	case Value:
		return v.String()
	}
	return ""
}

// NormalizeText trims s, removes quotes and backslashes, and collapses
// line breaks and tabs into single spaces.
func NormalizeText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch r {
		case '"', '\\':
			continue
		case '\r', '\n', '\t':
			pendingSpace = true
			continue
		}
		if pendingSpace {
			if b.Len() > 0 && r != ' ' && !strings.HasSuffix(b.String(), " ") {
				b.WriteByte(' ')
			}
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// ParseBool maps a cell onto the closed boolean token set.
func ParseBool(cell any) bool {
	switch v := cell.(type) {
	case bool:
		return v
	case nil:
		return false
	}
	if IsSentinel(cell) {
		return false
	}
	return trueTokens[strings.ToLower(strings.TrimSpace(CellString(cell)))]
}

// ParseNumber reads a decimal from a cell. Comma or dot is accepted as the
// decimal separator; when both occur the last one is the separator.
func ParseNumber(cell any) (decimal.Decimal, bool) {
	if IsSentinel(cell) {
		return decimal.Decimal{}, false
	}
	switch v := cell.(type) {
	case nil:
		return decimal.Decimal{}, false
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case decimal.Decimal:
		return v, true
	case bool, time.Time:
		return decimal.Decimal{}, false
	}

	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		}
		return r
	}, CellString(cell))
	if s == "" {
		return decimal.Decimal{}, false
	}

	comma := strings.LastIndexByte(s, ',')
	dot := strings.LastIndexByte(s, '.')
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return decimal.Decimal{}, false
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseDate reads a calendar date from a cell.
// Supports multiple date formats and handles 2-digit years with pivot.
func ParseDate(cell any) (time.Time, bool) {
	if IsSentinel(cell) {
		return time.Time{}, false
	}
	switch v := cell.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v, true
	case float64:
		return excelSerialDate(v)
	case int64:
		return excelSerialDate(float64(v))
	case int:
		return excelSerialDate(float64(v))
	case bool:
		return time.Time{}, false
	}

	s := strings.TrimSpace(CellString(cell))
	if s == "" {
		return time.Time{}, false
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, true
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

func excelSerialDate(f float64) (time.Time, bool) {
	if f < minExcelSerial || f > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NormalizeKeyValue converts a business key cell to its comparable form:
// trimmed and surrounding quotes removed. Integral numbers take their
// canonical form whatever their spelling, so "0100", "100.0" and 100.0
// all become "100".
func NormalizeKeyValue(cell any) string {
	if IsSentinel(cell) {
		return ""
	}
	if f, ok := cell.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}

	s := strings.TrimSpace(CellString(cell))
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if d, err := decimal.NewFromString(s); err == nil && d.IsInteger() {
		return d.String()
	}
	return s
}

// ValueFromCell converts an undeclared (passthrough) cell by its raw kind.
func ValueFromCell(cell any) Value {
	if IsSentinel(cell) {
		return NullValue()
	}
	switch v := cell.(type) {
	case nil:
		return NullValue()
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return NullValue()
		}
		return TextValue(s)
	case bool:
		return BoolValue(v)
	case time.Time:
		if v.IsZero() {
			return NullValue()
		}
		return DateValue(v)
	case Value:
		return v
	}
	if d, ok := ParseNumber(cell); ok {
		return NumberValue(d)
	}
	return NullValue()
}

// CoerceCell converts a raw cell according to spec.
func CoerceCell(cell any, spec FieldSpec) Value {
	if IsSentinel(cell) {
		if spec.Type == FieldBool {
			return BoolValue(false)
		}
		return NullValue()
	}

	if s, ok := cell.(string); ok && spec.Normalizer != nil {
		cell = spec.Normalizer(s)
	}

	var v Value
	switch spec.Type {
	case FieldBool:
		v = BoolValue(ParseBool(cell))
	case FieldNumeric:
		if d, ok := ParseNumber(cell); ok {
			v = NumberValue(d)
		}
	case FieldDate:
		if t, ok := ParseDate(cell); ok {
			v = DateValue(t)
		}
	case FieldKey:
		if k := NormalizeKeyValue(cell); k != "" {
			v = TextValue(k)
		}
	case FieldEnum:
		if mapped, ok := spec.EnumValues[NormalizeKeyValue(cell)]; ok {
			v = TextValue(mapped)
		}
	default:
		if s := NormalizeText(CellString(cell)); s != "" {
			v = TextValue(s)
		}
	}

	return cleanSentinel(v)
}

// cleanSentinel nulls values that coercion turned into sentinel text.
func cleanSentinel(v Value) Value {
	if v.Kind() == KindText && IsSentinel(v.String()) {
		return NullValue()
	}
	return v
}

// Normalizer coerces renamed rows into records using declared field specs.
type Normalizer struct {
	specs map[string]FieldSpec
}

// NewNormalizer builds a Normalizer for specs.
func NewNormalizer(specs []FieldSpec) *Normalizer {
	m := make(map[string]FieldSpec, len(specs))
	for _, spec := range specs {
		m[spec.Name] = spec
	}
	return &Normalizer{specs: m}
}

// Normalize converts one row. Declared fields are coerced by type, other
// columns by their raw kind. The input row is not modified.
func (n *Normalizer) Normalize(row RawRow) Record {
	rec := make(Record, len(row))
	for col, cell := range row {
		if spec, ok := n.specs[col]; ok {
			rec[col] = CoerceCell(cell, spec)
			continue
		}
		rec[col] = ValueFromCell(cell)
	}
	return rec
}
