// Package core provides the record reconciliation and batched upsert pipeline.
// This package has no transport dependencies and can be driven by any frontend.
package core

import (
	"context"
	"time"
)

// FieldType represents the expected data type for a target field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldBool
	FieldKey
)

// FieldSpec defines how a single target field is validated and coerced.
type FieldSpec struct {
	Name       string              // Target field name (after column renaming)
	Type       FieldType           // Expected data type
	Required   bool                // Column must exist after renaming
	EnumValues map[string]string   // FieldEnum: source token -> target picklist value
	Normalizer func(string) string // Optional transformation applied before coercion
}

// RawRow maps a source column name to its raw cell value.
// Cell values are string, float64, int64, bool, time.Time or nil.
type RawRow map[string]any

// RawTable is an ordered sequence of rows as produced by a table loader.
type RawTable struct {
	Columns []string
	Rows    []RawRow
}

// Len returns the number of data rows.
func (t RawTable) Len() int {
	return len(t.Rows)
}

// HasColumn reports whether the table carries the named column.
func (t RawTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// EntityInfo contains display information about an entity.
type EntityInfo struct {
	Key    string // Unique identifier: "accounts"
	Object string // Remote collection (sObject) name: "Account"
	Label  string // Display name: "Accounts"
}

// RowHook mutates a renamed raw row before normalization.
type RowHook func(row RawRow)

// RecordHook mutates a record after import ids are assigned.
type RecordHook func(rec Record)

// EntityDefinition contains everything needed to migrate one entity.
type EntityDefinition struct {
	Info EntityInfo

	// HeaderRow is the zero-based row of the source sheet holding the header.
	HeaderRow int

	// MappingFile names the rename table resolved under the mapping directory.
	// Mapping is used instead when MappingFile is empty.
	MappingFile string
	Mapping     MappingRules

	// DropColumns are removed after renaming. Columns a rename rule maps
	// are known by their target name.
	DropColumns []string

	FieldSpecs []FieldSpec
	References []Reference

	PreProcess []RowHook
	Filter     func(rec Record) bool
	ImportID   ImportIDSpec
	Finalize   []RecordHook

	// Fields projects records onto this ordered field list before submission.
	// Empty keeps every column.
	Fields []string
}

// ExternalIDField returns the field used as the upsert idempotency key.
func (d EntityDefinition) ExternalIDField() string {
	return d.ImportID.field()
}

// RequiredFields lists the fields that must be present after renaming.
func (d EntityDefinition) RequiredFields() []string {
	var out []string
	for _, spec := range d.FieldSpecs {
		if spec.Required {
			out = append(out, spec.Name)
		}
	}
	return out
}

// UpsertError is a single rejection reason reported by the remote system.
type UpsertError struct {
	StatusCode string   `json:"statusCode"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields,omitempty"`
}

// UpsertResult is the per-record outcome of a remote upsert.
type UpsertResult struct {
	Success bool          `json:"success"`
	Created bool          `json:"created"`
	ID      string        `json:"id,omitempty"`
	Errors  []UpsertError `json:"errors,omitempty"`
}

// FirstError returns the first reported error, or a zero UpsertError.
func (r UpsertResult) FirstError() UpsertError {
	if len(r.Errors) == 0 {
		return UpsertError{}
	}
	return r.Errors[0]
}

// Upserter is the remote insert-or-update capability for one collection.
// Implementations must return exactly one result per input record, in order.
type Upserter interface {
	Upsert(ctx context.Context, records []Record, externalIDField string) ([]UpsertResult, error)
}

// UpserterFunc adapts a function to the Upserter interface.
type UpserterFunc func(ctx context.Context, records []Record, externalIDField string) ([]UpsertResult, error)

// Upsert calls f.
func (f UpserterFunc) Upsert(ctx context.Context, records []Record, externalIDField string) ([]UpsertResult, error) {
	return f(ctx, records, externalIDField)
}

// Summary holds the counts reported at the end of every run.
type Summary struct {
	Rows          int `json:"rows"`
	Submitted     int `json:"submitted"`
	Succeeded     int `json:"succeeded"`
	Updated       int `json:"updated"`
	Failed        int `json:"failed"`
	Invalid       int `json:"invalid"`
	Duplicates    int `json:"duplicates"`
	Unmatched     int `json:"unmatched"`
	Dropped       int `json:"dropped"`
	NotSubmitted  int `json:"notSubmitted"`
	SkippedChunks int `json:"skippedChunks"`
}

// RunInfo identifies a run for recorders.
type RunInfo struct {
	ID        string
	Entity    string
	Object    string
	Source    string
	Rows      int
	StartedAt time.Time
}

// Recorder persists run history. Recorder failures never abort a run.
type Recorder interface {
	StartRun(ctx context.Context, info RunInfo) error
	RecordChunk(ctx context.Context, runID string, chunk ChunkReport) error
	RecordFailures(ctx context.Context, runID string, rows []FailureRow) error
	FinishRun(ctx context.Context, runID string, summary Summary, runErr error) error
}

// Observer receives run telemetry.
type Observer interface {
	ChunkSubmitted(entity string, chunk ChunkReport)
	ReferenceMisses(entity, reference string, n int)
	RunFinished(entity string, summary Summary, elapsed time.Duration, err error)
}
