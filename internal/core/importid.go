package core

import (
	"fmt"
	"strings"
)

// DefaultImportIDField is the remote field used as the upsert idempotency key.
const DefaultImportIDField = "Import_ID__c"

// ImportIDSpec describes how an entity derives its external identifier.
//
// Sequential identifiers are Prefix followed by the 1-based record position
// zero-padded to Width digits ("ACC0001"). When NaturalKey is set its
// trimmed value is used instead, falling back to the sequential form for
// records where the natural key is empty.
type ImportIDSpec struct {
	Field      string
	Prefix     string
	Width      int
	NaturalKey string
}

func (s ImportIDSpec) field() string {
	if s.Field == "" {
		return DefaultImportIDField
	}
	return s.Field
}

// Sequential returns the sequential identifier for zero-based position i.
func (s ImportIDSpec) Sequential(i int) string {
	return fmt.Sprintf("%s%0*d", s.Prefix, s.Width, i+1)
}

// AssignImportIDs stamps every record with its external identifier.
// Records are modified in place; positions are taken from slice order.
func AssignImportIDs(records []Record, spec ImportIDSpec) {
	field := spec.field()
	for i, rec := range records {
		if spec.NaturalKey != "" {
			if key := strings.TrimSpace(rec.Text(spec.NaturalKey)); key != "" {
				rec[field] = TextValue(key)
				continue
			}
		}
		rec[field] = TextValue(spec.Sequential(i))
	}
}

// DedupByExternalID removes records whose external identifier was already
// seen. The first occurrence wins. It returns the kept records and the
// number dropped.
func DedupByExternalID(records []Record, field string) ([]Record, int) {
	seen := make(map[string]bool, len(records))
	kept := make([]Record, 0, len(records))
	dropped := 0

	for _, rec := range records {
		id := rec.Text(field)
		if id != "" && seen[id] {
			dropped++
			continue
		}
		seen[id] = true
		kept = append(kept, rec)
	}
	return kept, dropped
}
