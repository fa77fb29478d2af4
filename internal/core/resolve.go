package core

// resolve.go attaches target-system identifiers to records by looking up a
// business key in a previously produced reference table.
//
// Resolution is a left join: every record survives (unless the reference is
// configured to drop misses), records keep their order, and a miss receives
// the reference's default identifier. When a source distinguishes several
// key namespaces (for example two source systems numbering organizations
// independently) records are partitioned by namespace and each partition is
// resolved only against its own reference column.

import (
	"fmt"
	"sort"
	"strings"
)

// MissPolicy decides what happens to a record whose key has no match.
type MissPolicy int

const (
	// MissUseDefault stamps the reference's Default (null when empty).
	MissUseDefault MissPolicy = iota
	// MissDrop removes the record from the run.
	MissDrop
)

// Reference describes one foreign key of an entity.
type Reference struct {
	Name        string // Diagnostic label: "account"
	Table       string // Reference input name: "accounts"
	SourceField string // Record field holding the business key
	TargetField string // Record field receiving the identifier
	KeyColumn   string // Reference column holding the business key
	IDColumn    string // Reference column holding the identifier
	Default     string
	OnMiss      MissPolicy

	// NamespaceField selects the key namespace of each record. Namespaces
	// maps a lower-cased namespace token to the reference key column used
	// for records in that namespace. KeyColumn is ignored when set.
	NamespaceField string
	Namespaces     map[string]string
}

// Namespaced reports whether the reference partitions records by namespace.
func (r Reference) Namespaced() bool {
	return r.NamespaceField != "" && len(r.Namespaces) > 0
}

// KeyIndex maps a normalized business key to a target identifier.
type KeyIndex struct {
	entries    map[string]string
	duplicates int
	skipped    int
}

// BuildKeyIndex indexes ref by keyColumn. Rows are deduplicated on the key
// before indexing and the first occurrence wins. Rows with an empty key or
// identifier are skipped.
func BuildKeyIndex(ref RawTable, keyColumn, idColumn string) (*KeyIndex, error) {
	var missing []string
	if !ref.HasColumn(keyColumn) {
		missing = append(missing, keyColumn)
	}
	if !ref.HasColumn(idColumn) {
		missing = append(missing, idColumn)
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Table: "reference", Missing: missing}
	}

	idx := &KeyIndex{entries: make(map[string]string, len(ref.Rows))}
	for _, row := range ref.Rows {
		key := NormalizeKeyValue(row[keyColumn])
		if key == "" {
			idx.skipped++
			continue
		}
		if _, exists := idx.entries[key]; exists {
			idx.duplicates++
			continue
		}
		id := strings.TrimSpace(CellString(row[idColumn]))
		if id == "" || IsSentinel(id) {
			idx.skipped++
			continue
		}
		idx.entries[key] = id
	}
	return idx, nil
}

// Lookup returns the identifier for a business key.
func (i *KeyIndex) Lookup(key string) (string, bool) {
	if i == nil || key == "" {
		return "", false
	}
	id, ok := i.entries[key]
	return id, ok
}

// Len returns the number of indexed keys.
func (i *KeyIndex) Len() int { return len(i.entries) }

// Duplicates returns how many reference rows were discarded as duplicate keys.
func (i *KeyIndex) Duplicates() int { return i.duplicates }

// Unmatched describes a record whose key found no reference match.
type Unmatched struct {
	Position  int // Position of the record in the input sequence
	Record    Record
	Reference string
	Key       string
	Namespace string
}

// Resolution is the outcome of resolving one reference.
type Resolution struct {
	Records   []Record
	Matched   int
	Unmatched []Unmatched
	Dropped   int
	// DuplicateKeys counts reference rows ignored because an earlier row
	// already claimed the same key.
	DuplicateKeys int
}

// Resolve joins records against the reference table ref. Records are
// copied; the input slice is not modified.
func Resolve(records []Record, spec Reference, ref RawTable) (Resolution, error) {
	if spec.SourceField == "" || spec.TargetField == "" {
		return Resolution{}, fmt.Errorf("reference %q: source and target fields are required", spec.Name)
	}

	out := make([]Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}

	res := Resolution{}
	miss := make([]bool, len(out))

	if spec.Namespaced() {
		indexes := make(map[string]*KeyIndex, len(spec.Namespaces))
		for ns, col := range spec.Namespaces {
			idx, err := BuildKeyIndex(ref, col, spec.IDColumn)
			if err != nil {
				return Resolution{}, fmt.Errorf("reference %q namespace %q: %w", spec.Name, ns, err)
			}
			indexes[ns] = idx
			res.DuplicateKeys += idx.Duplicates()
		}

		partitions := partitionByNamespace(out, spec.NamespaceField)
		for _, ns := range sortedKeys(partitions) {
			idx := indexes[ns] // nil for unknown namespaces: every lookup misses
			for _, pos := range partitions[ns] {
				if !resolveOne(out[pos], spec, idx) {
					miss[pos] = true
					res.Unmatched = append(res.Unmatched, Unmatched{
						Position:  pos,
						Record:    out[pos],
						Reference: spec.Name,
						Key:       recordKey(out[pos], spec.SourceField),
						Namespace: ns,
					})
				}
			}
		}
		sort.Slice(res.Unmatched, func(a, b int) bool {
			return res.Unmatched[a].Position < res.Unmatched[b].Position
		})
	} else {
		idx, err := BuildKeyIndex(ref, spec.KeyColumn, spec.IDColumn)
		if err != nil {
			return Resolution{}, fmt.Errorf("reference %q: %w", spec.Name, err)
		}
		res.DuplicateKeys = idx.Duplicates()
		for pos, rec := range out {
			if !resolveOne(rec, spec, idx) {
				miss[pos] = true
				res.Unmatched = append(res.Unmatched, Unmatched{
					Position:  pos,
					Record:    rec,
					Reference: spec.Name,
					Key:       recordKey(rec, spec.SourceField),
				})
			}
		}
	}

	res.Matched = len(out) - len(res.Unmatched)
	if spec.OnMiss == MissDrop {
		kept := out[:0:0]
		for pos, rec := range out {
			if miss[pos] {
				res.Dropped++
				continue
			}
			kept = append(kept, rec)
		}
		out = kept
	}
	res.Records = out

	return res, nil
}

// resolveOne sets the target field of rec and reports whether the key matched.
func resolveOne(rec Record, spec Reference, idx *KeyIndex) bool {
	if id, ok := idx.Lookup(recordKey(rec, spec.SourceField)); ok {
		rec[spec.TargetField] = TextValue(id)
		return true
	}
	if spec.Default != "" {
		rec[spec.TargetField] = TextValue(spec.Default)
	} else {
		rec[spec.TargetField] = NullValue()
	}
	return false
}

func recordKey(rec Record, field string) string {
	return NormalizeKeyValue(rec.Text(field))
}

func partitionByNamespace(records []Record, field string) map[string][]int {
	parts := make(map[string][]int)
	for pos, rec := range records {
		ns := strings.ToLower(strings.TrimSpace(rec.Text(field)))
		parts[ns] = append(parts[ns], pos)
	}
	return parts
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
