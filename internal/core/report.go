package core

// report.go writes the artifacts that let an operator reconcile a run:
//
//	<entity>_debug.json          payload snapshot, written before any remote call
//	<entity>_mapped.csv          every normalized record plus the remote Id
//	<entity>_import_errors.csv   rejected records with the first error reported
//	<entity>_unmatched.csv       records whose foreign keys found no match

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"
)

// SerializationErrorCode marks records that cannot be encoded for submission.
const SerializationErrorCode = "SERIALIZATION_ERROR"

// Artifact columns appended after the record fields.
const (
	ColumnID           = "Id"
	ColumnErrorCode    = "error_code"
	ColumnErrorMessage = "error_message"
	ColumnReference    = "reference"
	ColumnLookupKey    = "lookup_key"
	ColumnNamespace    = "namespace"
)

// FailureRow is a record that did not make it into the remote system.
type FailureRow struct {
	Position int    `json:"position"`
	ImportID string `json:"importId"`
	Record   Record `json:"record"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// InvalidRecord is a record excluded from submission because it cannot be
// encoded.
type InvalidRecord struct {
	Position int
	Record   Record
	Err      error
}

// CheckRepresentable splits records into those that encode cleanly and
// those that do not. Text values and field names must be valid UTF-8.
func CheckRepresentable(records []Record) ([]Record, []InvalidRecord) {
	ok := make([]Record, 0, len(records))
	var invalid []InvalidRecord

	for i, rec := range records {
		if err := representable(rec); err != nil {
			invalid = append(invalid, InvalidRecord{Position: i, Record: rec, Err: err})
			continue
		}
		ok = append(ok, rec)
	}
	return ok, invalid
}

func representable(rec Record) error {
	for field, v := range rec {
		if !utf8.ValidString(field) {
			return fmt.Errorf("field name %q is not valid UTF-8", field)
		}
		if v.Kind() == KindText && !utf8.ValidString(v.String()) {
			return fmt.Errorf("field %s is not valid UTF-8", field)
		}
	}
	if _, err := json.Marshal(rec); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return nil
}

// FailureRows pairs submitted records with their results and returns the
// rejected ones. results may be shorter than records when execution stopped
// early; records without a result are not included.
func FailureRows(records []Record, results []UpsertResult, externalIDField string) []FailureRow {
	var rows []FailureRow
	for i, res := range results {
		if i >= len(records) {
			break
		}
		if res.Success {
			continue
		}
		first := res.FirstError()
		rows = append(rows, FailureRow{
			Position: i,
			ImportID: records[i].Text(externalIDField),
			Record:   records[i],
			Code:     first.StatusCode,
			Message:  first.Message,
		})
	}
	return rows
}

// InvalidFailureRows converts serialization rejects into failure rows.
func InvalidFailureRows(invalid []InvalidRecord, externalIDField string) []FailureRow {
	rows := make([]FailureRow, 0, len(invalid))
	for _, inv := range invalid {
		rows = append(rows, FailureRow{
			Position: inv.Position,
			ImportID: inv.Record.Text(externalIDField),
			Record:   inv.Record,
			Code:     SerializationErrorCode,
			Message:  inv.Err.Error(),
		})
	}
	return rows
}

// RunFailureRows returns every rejected record of a run ordered by
// position. Positions index the record sequence before serialization
// rejects were excluded, so submitted and invalid records share one space.
func RunFailureRows(submitted []Record, results []UpsertResult, invalid []InvalidRecord, externalIDField string) []FailureRow {
	positions := positionsBefore(len(submitted), invalid)
	rejected := FailureRows(submitted, results, externalIDField)
	for i := range rejected {
		rejected[i].Position = positions[rejected[i].Position]
	}

	rows := append(InvalidFailureRows(invalid, externalIDField), rejected...)
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].Position < rows[b].Position })
	return rows
}

// positionsBefore maps each of n kept records to its index before the
// invalid ones were removed. invalid must be in ascending position order.
func positionsBefore(n int, invalid []InvalidRecord) []int {
	out := make([]int, 0, n)
	next := 0
	for pos := 0; len(out) < n; pos++ {
		if next < len(invalid) && invalid[next].Position == pos {
			next++
			continue
		}
		out = append(out, pos)
	}
	return out
}

// Reporter writes run artifacts for one entity into Dir.
type Reporter struct {
	Dir    string
	Entity string
}

// Path returns the artifact path for suffix ("debug.json", "mapped.csv").
func (r Reporter) Path(suffix string) string {
	return filepath.Join(r.Dir, r.Entity+"_"+suffix)
}

// WriteDebugSnapshot writes records as an indented JSON array, fields in
// the set's column order.
func (r Reporter) WriteDebugSnapshot(set RecordSet) (string, error) {
	cols := columnsFor(set.Fields, set.Records)

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, rec := range set.Records {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeOrdered(&buf, cols, rec); err != nil {
			return "", fmt.Errorf("encode record %d: %w", i+1, err)
		}
	}
	buf.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return "", fmt.Errorf("indent snapshot: %w", err)
	}
	out.WriteByte('\n')

	path := r.Path("debug.json")
	if err := r.write(path, out.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

// WriteMapped writes every record with the remote identifier of its
// successful result. Records past the end of results get an empty Id.
func (r Reporter) WriteMapped(set RecordSet, results []UpsertResult) (string, error) {
	cols := columnsFor(set.Fields, set.Records)
	header := append(append([]string{}, cols...), ColumnID)

	rows := make([][]string, 0, len(set.Records))
	for i, rec := range set.Records {
		row := recordRow(cols, rec)
		id := ""
		if i < len(results) && results[i].Success {
			id = results[i].ID
		}
		rows = append(rows, append(row, id))
	}

	path := r.Path("mapped.csv")
	return path, r.writeCSV(path, header, rows)
}

// WriteErrors writes failure rows. Nothing is written when rows is empty
// and the returned path is "".
func (r Reporter) WriteErrors(fields []string, failures []FailureRow) (string, error) {
	if len(failures) == 0 {
		return "", nil
	}
	recs := make([]Record, len(failures))
	for i, f := range failures {
		recs[i] = f.Record
	}
	cols := columnsFor(fields, recs)
	header := append(append([]string{}, cols...), ColumnErrorCode, ColumnErrorMessage)

	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, append(recordRow(cols, f.Record), f.Code, f.Message))
	}

	path := r.Path("import_errors.csv")
	return path, r.writeCSV(path, header, rows)
}

// WriteUnmatched writes records whose foreign key found no match. Nothing
// is written when unmatched is empty.
func (r Reporter) WriteUnmatched(fields []string, unmatched []Unmatched) (string, error) {
	if len(unmatched) == 0 {
		return "", nil
	}
	recs := make([]Record, len(unmatched))
	for i, u := range unmatched {
		recs[i] = u.Record
	}
	cols := columnsFor(fields, recs)
	header := append(append([]string{}, cols...), ColumnReference, ColumnLookupKey, ColumnNamespace)

	rows := make([][]string, 0, len(unmatched))
	for _, u := range unmatched {
		rows = append(rows, append(recordRow(cols, u.Record), u.Reference, u.Key, u.Namespace))
	}

	path := r.Path("unmatched.csv")
	return path, r.writeCSV(path, header, rows)
}

func (r Reporter) write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (r Reporter) writeCSV(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return r.write(path, buf.Bytes())
}

// columnsFor returns fields followed by any other field present in records,
// sorted by name.
func columnsFor(fields []string, records []Record) []string {
	known := make(map[string]bool, len(fields))
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		if !known[f] {
			known[f] = true
			cols = append(cols, f)
		}
	}

	var extra []string
	for _, rec := range records {
		for f := range rec {
			if !known[f] {
				known[f] = true
				extra = append(extra, f)
			}
		}
	}
	sort.Strings(extra)
	return append(cols, extra...)
}

func recordRow(cols []string, rec Record) []string {
	row := make([]string, len(cols))
	for i, c := range cols {
		row[i] = rec[c].String()
	}
	return row
}

// encodeOrdered writes rec as a JSON object with keys in cols order.
// Fields missing from rec are omitted.
func encodeOrdered(buf *bytes.Buffer, cols []string, rec Record) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	first := true
	for _, c := range cols {
		v, ok := rec[c]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := enc.Encode(c); err != nil {
			return err
		}
		trimNewline(buf)
		buf.WriteByte(':')
		if err := enc.Encode(v); err != nil {
			return err
		}
		trimNewline(buf)
	}
	buf.WriteByte('}')
	return nil
}

// trimNewline drops the newline json.Encoder appends after every value.
func trimNewline(buf *bytes.Buffer) {
	if n := buf.Len(); n > 0 && buf.Bytes()[n-1] == '\n' {
		buf.Truncate(n - 1)
	}
}
