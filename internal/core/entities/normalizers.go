package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/crmimport/internal/core"
)

// StripSpaces removes every space from s, including non-breaking ones.
// Used for phone numbers exported with digit grouping.
func StripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\t':
			return -1
		}
		return r
	}, s)
}

// StripQuotes removes every double quote from s and trims the result.
func StripQuotes(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}

// FixTreeNumber repairs BOM tree positions that the spreadsheet turned into
// dates. A date becomes "day.month." again; text that still looks like a
// rendered date ("2024-...") cannot be recovered and becomes nil.
func FixTreeNumber(cell any) any {
	switch v := cell.(type) {
	case time.Time:
		if v.IsZero() {
			return nil
		}
		return fmt.Sprintf("%d.%d.", v.Day(), int(v.Month()))
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "202") {
			return nil
		}
		return s
	}
	return cell
}

// copyColumns returns a row hook that copies each source column into its
// target column.
func copyColumns(pairs [][2]string) core.RowHook {
	return func(row core.RawRow) {
		for _, p := range pairs {
			if v, ok := row[p[0]]; ok {
				row[p[1]] = v
			}
		}
	}
}

// fixColumn returns a row hook applying fix to one column when present.
func fixColumn(name string, fix func(any) any) core.RowHook {
	return func(row core.RawRow) {
		if v, ok := row[name]; ok {
			row[name] = fix(v)
		}
	}
}

// emptyFlag returns a row hook replacing a column with true when the cell
// is empty and false otherwise.
func emptyFlag(name string) core.RowHook {
	return func(row core.RawRow) {
		v, ok := row[name]
		if !ok {
			return
		}
		row[name] = v == nil || core.IsSentinel(v) || strings.TrimSpace(core.CellString(v)) == ""
	}
}

// fallbackField returns a record hook that fills target from the first
// non-empty source field.
func fallbackField(target string, sources ...string) core.RecordHook {
	return func(rec core.Record) {
		for _, src := range sources {
			if s := strings.TrimSpace(rec.Text(src)); s != "" {
				rec[target] = core.TextValue(s)
				return
			}
		}
		rec[target] = core.NullValue()
	}
}
