package core

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// ----------------------------------------------------------------------------
// ParseNumber Tests
// ----------------------------------------------------------------------------

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name      string
		input     any
		wantValid bool
		wantValue string
	}{
		{name: "integer", input: "123", wantValid: true, wantValue: "123"},
		{name: "negative", input: "-456", wantValid: true, wantValue: "-456"},
		{name: "dot decimal", input: "12.5", wantValid: true, wantValue: "12.5"},
		{name: "comma decimal", input: "12,5", wantValid: true, wantValue: "12.5"},
		{name: "space thousands and comma decimal", input: "1 234,50", wantValid: true, wantValue: "1234.5"},
		{name: "nbsp thousands", input: "1\u00a0000", wantValid: true, wantValue: "1000"},
		{name: "dot thousands and comma decimal", input: "1.234,50", wantValid: true, wantValue: "1234.5"},
		{name: "comma thousands and dot decimal", input: "1,234.50", wantValid: true, wantValue: "1234.5"},
		{name: "raw float", input: 3.25, wantValid: true, wantValue: "3.25"},
		{name: "raw int64", input: int64(42), wantValid: true, wantValue: "42"},

		{name: "empty", input: "", wantValid: false},
		{name: "nil", input: nil, wantValid: false},
		{name: "text", input: "abc", wantValid: false},
		{name: "several commas", input: "1,2,3", wantValid: false},
		{name: "nan string", input: "NaN", wantValid: false},
		{name: "nan float", input: math.NaN(), wantValid: false},
		{name: "infinity", input: math.Inf(1), wantValid: false},
		{name: "bool", input: true, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.input)
			if ok != tt.wantValid {
				t.Fatalf("ParseNumber(%v) ok = %v, want %v", tt.input, ok, tt.wantValid)
			}
			if !ok {
				return
			}
			want := decimal.RequireFromString(tt.wantValue)
			if !got.Equal(want) {
				t.Errorf("ParseNumber(%v) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseDate Tests
// ----------------------------------------------------------------------------

func TestParseDate(t *testing.T) {
	tests := []struct {
		name      string
		input     any
		wantValid bool
		wantDate  string
	}{
		{name: "ISO", input: "2024-03-15", wantValid: true, wantDate: "2024-03-15"},
		{name: "ISO datetime", input: "2024-03-15 10:30:00", wantValid: true, wantDate: "2024-03-15"},
		{name: "RFC3339", input: "2024-03-15T10:30:00Z", wantValid: true, wantDate: "2024-03-15"},
		{name: "european", input: "15.3.2024", wantValid: true, wantDate: "2024-03-15"},
		{name: "european padded", input: "05.03.2024", wantValid: true, wantDate: "2024-03-05"},
		{name: "european spaced", input: "15. 3. 2024", wantValid: true, wantDate: "2024-03-15"},
		{name: "US", input: "03/15/2024", wantValid: true, wantDate: "2024-03-15"},
		{name: "month name", input: "Mar 15, 2024", wantValid: true, wantDate: "2024-03-15"},
		{name: "two digit year", input: "15.3.24", wantValid: true, wantDate: "2024-03-15"},
		{name: "excel serial", input: float64(45366), wantValid: true, wantDate: "2024-03-15"},
		{name: "time value", input: time.Date(2023, 12, 31, 8, 0, 0, 0, time.UTC), wantValid: true, wantDate: "2023-12-31"},
		{name: "surrounding spaces", input: "  2024-03-15  ", wantValid: true, wantDate: "2024-03-15"},

		{name: "empty", input: "", wantValid: false},
		{name: "garbage", input: "not-a-date", wantValid: false},
		{name: "invalid day", input: "2024-02-30", wantValid: false},
		{name: "NaT", input: "NaT", wantValid: false},
		{name: "zero time", input: time.Time{}, wantValid: false},
		{name: "negative serial", input: float64(-3), wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if ok != tt.wantValid {
				t.Fatalf("ParseDate(%v) ok = %v, want %v", tt.input, ok, tt.wantValid)
			}
			if ok && got.Format(DateLayout) != tt.wantDate {
				t.Errorf("ParseDate(%v) = %s, want %s", tt.input, got.Format(DateLayout), tt.wantDate)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseBool Tests
// ----------------------------------------------------------------------------

func TestParseBool(t *testing.T) {
	tests := []struct {
		input any
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"Yes", true},
		{"ano", true},
		{"ANO", true},
		{"x", true},
		{"X", true},
		{" x ", true},
		{true, true},
		{float64(1), true},

		{"0", false},
		{"false", false},
		{"no", false},
		{"ne", false},
		{"y", false},
		{"", false},
		{"nan", false},
		{nil, false},
		{math.NaN(), false},
		{float64(0), false},
	}

	for _, tt := range tests {
		if got := ParseBool(tt.input); got != tt.want {
			t.Errorf("ParseBool(%#v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// ----------------------------------------------------------------------------
// Text and Key Tests
// ----------------------------------------------------------------------------

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trim", input: "  Acme  ", want: "Acme"},
		{name: "quotes removed", input: `"Acme" s.r.o.`, want: "Acme s.r.o."},
		{name: "backslash removed", input: `Acme\Corp`, want: "AcmeCorp"},
		{name: "line break", input: "Main St\r\n12", want: "Main St 12"},
		{name: "space before line break", input: "Main St \n12", want: "Main St 12"},
		{name: "space after line break", input: "Main St\n 12", want: "Main St 12"},
		{name: "tabs", input: "a\t\tb", want: "a b"},
		{name: "empty", input: "   ", want: ""},
		{name: "unicode preserved", input: "Plzeň", want: "Plzeň"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.input); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeKeyValue(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "float artifact", input: "12345.0", want: "12345"},
		{name: "integral float", input: float64(12345), want: "12345"},
		{name: "integral float with zeros", input: "123.00", want: "123"},
		{name: "fractional kept", input: "12.50", want: "12.50"},
		{name: "leading zeros dropped", input: "001234", want: "1234"},
		{name: "text key matches float key", input: "0100", want: "100"},
		{name: "signed", input: "+42", want: "42"},
		{name: "alphanumeric kept", input: "001J900000CASp3IAH", want: "001J900000CASp3IAH"},
		{name: "quoted", input: ` "ABC-1" `, want: "ABC-1"},
		{name: "int64", input: int64(7), want: "7"},
		{name: "nan", input: "nan", want: ""},
		{name: "nil", input: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeKeyValue(tt.input); got != tt.want {
				t.Errorf("NormalizeKeyValue(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsSentinel(t *testing.T) {
	for _, s := range []any{"nan", "NaN", "NAN", "inf", "-inf", "+inf", "Infinity", "-Infinity", "NaT", "None", "<NA>", math.NaN(), math.Inf(-1)} {
		if !IsSentinel(s) {
			t.Errorf("IsSentinel(%v) = false, want true", s)
		}
	}
	for _, s := range []any{"", "0", "info", "nancy", float64(1), nil} {
		if IsSentinel(s) {
			t.Errorf("IsSentinel(%v) = true, want false", s)
		}
	}
}

// ----------------------------------------------------------------------------
// CoerceCell Tests
// ----------------------------------------------------------------------------

func TestCoerceCell(t *testing.T) {
	status := FieldSpec{Name: "Status__c", Type: FieldEnum, EnumValues: map[string]string{
		"0": "STATE_FOR_REVIEW",
		"1": "STATE_APPROVED",
	}}
	phone := FieldSpec{Name: "Phone", Type: FieldText, Normalizer: func(s string) string {
		out := []rune{}
		for _, r := range s {
			if r != ' ' {
				out = append(out, r)
			}
		}
		return string(out)
	}}

	tests := []struct {
		name string
		cell any
		spec FieldSpec
		want Value
	}{
		{name: "text", cell: " Acme ", spec: FieldSpec{Type: FieldText}, want: TextValue("Acme")},
		{name: "empty text is null", cell: "  ", spec: FieldSpec{Type: FieldText}, want: NullValue()},
		{name: "sentinel text is null", cell: "nan", spec: FieldSpec{Type: FieldText}, want: NullValue()},
		{name: "bool true", cell: "ano", spec: FieldSpec{Type: FieldBool}, want: BoolValue(true)},
		{name: "bool sentinel is false", cell: math.NaN(), spec: FieldSpec{Type: FieldBool}, want: BoolValue(false)},
		{name: "bool empty is false", cell: "", spec: FieldSpec{Type: FieldBool}, want: BoolValue(false)},
		{name: "numeric", cell: "1 234,50", spec: FieldSpec{Type: FieldNumeric}, want: NumberValue(decimal.RequireFromString("1234.5"))},
		{name: "numeric garbage is null", cell: "n/a", spec: FieldSpec{Type: FieldNumeric}, want: NullValue()},
		{name: "date", cell: "1.2.2024", spec: FieldSpec{Type: FieldDate}, want: DateValue(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))},
		{name: "bad date is null", cell: "yesterday", spec: FieldSpec{Type: FieldDate}, want: NullValue()},
		{name: "key", cell: float64(4711), spec: FieldSpec{Type: FieldKey}, want: TextValue("4711")},
		{name: "enum from float", cell: float64(1), spec: status, want: TextValue("STATE_APPROVED")},
		{name: "enum from text artifact", cell: "0.0", spec: status, want: TextValue("STATE_FOR_REVIEW")},
		{name: "unknown enum is null", cell: "9", spec: status, want: NullValue()},
		{name: "normalizer applied first", cell: "+420 777 123 456", spec: phone, want: TextValue("+420777123456")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceCell(tt.cell, tt.spec)
			if !got.Equal(tt.want) {
				t.Errorf("CoerceCell(%v) = %s(%q), want %s(%q)", tt.cell, got.Kind(), got, tt.want.Kind(), tt.want)
			}
		})
	}
}

func TestNormalizerPassthroughColumns(t *testing.T) {
	n := NewNormalizer([]FieldSpec{{Name: "Blocked__c", Type: FieldBool}})

	row := RawRow{
		"Blocked__c": "x",
		"Name":       "  Acme ",
		"Employees":  float64(12),
		"Notes":      "NaN",
		"Missing":    nil,
	}
	rec := n.Normalize(row)

	if b, ok := rec["Blocked__c"].Bool(); !ok || !b {
		t.Errorf("Blocked__c = %v, want true", rec["Blocked__c"])
	}
	if got := rec.Text("Name"); got != "Acme" {
		t.Errorf("Name = %q, want Acme", got)
	}
	if d, ok := rec["Employees"].Decimal(); !ok || !d.Equal(decimal.NewFromInt(12)) {
		t.Errorf("Employees = %v, want 12", rec["Employees"])
	}
	if !rec["Notes"].IsNull() {
		t.Errorf("Notes = %v, want null", rec["Notes"])
	}
	if !rec["Missing"].IsNull() {
		t.Errorf("Missing = %v, want null", rec["Missing"])
	}
	if row["Name"] != "  Acme " {
		t.Error("Normalize modified its input row")
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := NewNormalizer([]FieldSpec{
		{Name: "Amount", Type: FieldNumeric},
		{Name: "Date", Type: FieldDate},
	})
	row := RawRow{"Amount": "1 000,5", "Date": "3.4.2023", "Name": "A"}

	first := n.Normalize(row)
	second := n.Normalize(row)
	for k, v := range first {
		if !v.Equal(second[k]) {
			t.Errorf("field %s differs between runs: %v vs %v", k, v, second[k])
		}
	}
}
