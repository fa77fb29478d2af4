package core

// validation.go checks that a source table carries what an entity needs
// before any record is transformed.
//
// Only structural problems are errors here. Cell-level problems never fail
// a run: the Normalizer turns them into nulls.

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownEntity is returned for an entity key that is not registered.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrMissingColumns is matched by every *MissingColumnsError.
	ErrMissingColumns = errors.New("missing required column")
)

// MissingColumnsError lists required columns absent from a table.
type MissingColumnsError struct {
	Table   string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Table, ErrMissingColumns, strings.Join(e.Missing, ", "))
}

// Is reports ErrMissingColumns as the sentinel for this error.
func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}

// ValidateColumns verifies that every required field spec is present in
// the renamed table. Missing columns are reported together.
func ValidateColumns(table RawTable, specs []FieldSpec) error {
	present := make(map[string]bool, len(table.Columns))
	for _, c := range table.Columns {
		present[c] = true
	}

	var missing []string
	for _, spec := range specs {
		if spec.Required && !present[spec.Name] {
			missing = append(missing, spec.Name)
		}
	}

	if len(missing) > 0 {
		return &MissingColumnsError{Table: "source", Missing: missing}
	}
	return nil
}

// ValidateReference verifies that a reference table carries the columns a
// Reference reads.
func ValidateReference(ref Reference, table RawTable) error {
	cols := []string{ref.IDColumn}
	if ref.Namespaced() {
		for _, ns := range sortedKeys(ref.Namespaces) {
			cols = append(cols, ref.Namespaces[ns])
		}
	} else {
		cols = append(cols, ref.KeyColumn)
	}

	var missing []string
	for _, c := range cols {
		if !table.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Table: ref.Table, Missing: missing}
	}
	return nil
}

// fieldTypeName returns a human-readable name for a field type.
func fieldTypeName(ft FieldType) string {
	switch ft {
	case FieldText:
		return "text"
	case FieldEnum:
		return "enum"
	case FieldDate:
		return "date"
	case FieldNumeric:
		return "numeric"
	case FieldBool:
		return "bool"
	case FieldKey:
		return "key"
	default:
		return "value"
	}
}

// String returns the field type name.
func (ft FieldType) String() string {
	return fieldTypeName(ft)
}
