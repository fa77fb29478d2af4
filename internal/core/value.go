package core

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for date values.
const DateLayout = "2006-01-02"

// Kind identifies the type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindBool
	KindNumber
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "null"
	}
}

// Value is a normalized field value: null, text, boolean, number or date.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	b    bool
	num  decimal.Decimal
}

// NullValue returns the null Value.
func NullValue() Value {
	return Value{}
}

// TextValue wraps a string.
func TextValue(s string) Value {
	return Value{kind: KindText, str: s}
}

// BoolValue wraps a boolean.
func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// NumberValue wraps an exact decimal.
func NumberValue(d decimal.Decimal) Value {
	return Value{kind: KindNumber, num: d}
}

// DateValue wraps the calendar date of t.
func DateValue(t time.Time) Value {
	return Value{kind: KindDate, str: t.Format(DateLayout)}
}

// Kind returns the kind of value held.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean held by v. ok is false for other kinds.
func (v Value) Bool() (b, ok bool) {
	return v.b, v.kind == KindBool
}

// Decimal returns the number held by v. ok is false for other kinds.
func (v Value) Decimal() (decimal.Decimal, bool) {
	return v.num, v.kind == KindNumber
}

// String renders v for tabular export. Null renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindText, KindDate:
		return v.str
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return v.num.String()
	default:
		return ""
	}
}

// Equal reports whether v and o hold the same kind and value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num.Equal(o.num)
	case KindBool:
		return v.b == o.b
	case KindNull:
		return true
	default:
		return v.str == o.str
	}
}

// MarshalJSON encodes numbers as JSON numbers, dates as "YYYY-MM-DD"
// strings and null as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText, KindDate:
		return marshalString(v.str)
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return []byte(v.num.String()), nil
	default:
		return []byte("null"), nil
	}
}

// Record maps target field names to normalized values.
type Record map[string]Value

// Text returns the rendered value of field, or "" when absent or null.
func (r Record) Text(field string) string {
	return r[field].String()
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RecordSet is an ordered record sequence plus the column order used for
// tabular artifacts.
type RecordSet struct {
	Fields  []string
	Records []Record
}

// AddField appends name to the field order unless already present.
func (s *RecordSet) AddField(name string) {
	for _, f := range s.Fields {
		if f == name {
			return
		}
	}
	s.Fields = append(s.Fields, name)
}

// marshalString encodes s without HTML escaping so snapshots keep "<", ">"
// and "&" readable.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
