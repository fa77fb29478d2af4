package core

// mapping.go loads column rename tables.
//
// A rename table is a UTF-8 text resource with one rule per line:
//
//	# comment
//	Organization ID = Org_ID__c
//	E-mail = E_mail__c
//
// Source keys are normalized with NormalizeKey so that header spelling,
// casing, punctuation and Czech diacritics do not matter across export runs.

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrMappingFileNotFound is returned when a rename table does not exist.
var ErrMappingFileNotFound = errors.New("mapping file not found")

// MappingRules maps a normalized source key to a target field name.
type MappingRules map[string]string

// MappingFormatError reports a rule line that cannot be parsed.
type MappingFormatError struct {
	Path   string
	Line   int
	Text   string
	Reason string
}

func (e *MappingFormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid mapping %s line %d (%q): %s", e.Path, e.Line, e.Text, e.Reason)
	}
	return fmt.Sprintf("invalid mapping line %d (%q): %s", e.Line, e.Text, e.Reason)
}

// LoadMapping reads a rename table from path.
func LoadMapping(path string) (MappingRules, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMappingFileNotFound, path)
		}
		return nil, fmt.Errorf("open mapping: %w", err)
	}
	defer f.Close()

	rules, err := ParseMapping(f)
	if err != nil {
		var mfe *MappingFormatError
		if errors.As(err, &mfe) {
			mfe.Path = path
		}
		return nil, err
	}
	return rules, nil
}

// ParseMapping parses rename rules from r. Later rules for the same
// normalized key replace earlier ones.
func ParseMapping(r io.Reader) (MappingRules, error) {
	rules := make(MappingRules)
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pos := strings.IndexByte(line, '=')
		switch {
		case pos < 0:
			return nil, &MappingFormatError{Line: lineNum, Text: line, Reason: "missing '='"}
		case pos == 0:
			return nil, &MappingFormatError{Line: lineNum, Text: line, Reason: "empty source column"}
		}

		source := strings.TrimSpace(line[:pos])
		target := strings.TrimSpace(line[pos+1:])
		if target == "" {
			return nil, &MappingFormatError{Line: lineNum, Text: line, Reason: "empty target field"}
		}
		if strings.ContainsRune(target, '=') {
			return nil, &MappingFormatError{Line: lineNum, Text: line, Reason: "unexpected '=' in target field"}
		}

		key := NormalizeKey(source)
		if key == "" {
			return nil, &MappingFormatError{Line: lineNum, Text: line, Reason: "source column has no letters or digits"}
		}
		rules[key] = target
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}

	return rules, nil
}

// NormalizeKey folds a header into its lookup key: diacritics removed,
// lower-cased, and everything except letters and digits dropped.
// "Reg.č. Produktu" becomes "regcproduktu".
func NormalizeKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Rename applies rules to the table's columns. Unmapped columns keep their
// trimmed source header. When two source columns land on the same target
// the first one wins; the names of discarded source columns are returned.
func Rename(table RawTable, rules MappingRules) (RawTable, []string) {
	targets := make(map[string]string, len(table.Columns))
	seen := make(map[string]bool, len(table.Columns))
	out := RawTable{Columns: make([]string, 0, len(table.Columns))}
	var collisions []string

	for _, col := range table.Columns {
		target, ok := rules[NormalizeKey(col)]
		if !ok {
			target = strings.TrimSpace(col)
		}
		if seen[target] {
			collisions = append(collisions, col)
			continue
		}
		seen[target] = true
		targets[col] = target
		out.Columns = append(out.Columns, target)
	}

	out.Rows = make([]RawRow, len(table.Rows))
	for i, row := range table.Rows {
		renamed := make(RawRow, len(targets))
		for src, target := range targets {
			if v, ok := row[src]; ok {
				renamed[target] = v
			}
		}
		out.Rows[i] = renamed
	}

	return out, collisions
}

// DropColumns returns a copy of table without the named columns.
// Names are compared after trimming.
func DropColumns(table RawTable, names []string) RawTable {
	if len(names) == 0 {
		return table
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[strings.TrimSpace(n)] = true
	}

	out := RawTable{}
	for _, c := range table.Columns {
		if !drop[strings.TrimSpace(c)] {
			out.Columns = append(out.Columns, c)
		}
	}
	out.Rows = make([]RawRow, len(table.Rows))
	for i, row := range table.Rows {
		kept := make(RawRow, len(out.Columns))
		for _, c := range out.Columns {
			if v, ok := row[c]; ok {
				kept[c] = v
			}
		}
		out.Rows[i] = kept
	}
	return out
}
