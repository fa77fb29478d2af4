package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Organization ID", "organizationid"},
		{"  organization_id ", "organizationid"},
		{"E-mail", "email"},
		{"Reg.č. Produktu", "regcproduktu"},
		{"Množství (MNF)", "mnozstvimnf"},
		{"HM Celkem bez zálohy", "hmcelkembezzalohy"},
		{"Řada", "rada"},
		{"---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.input))
		})
	}
}

func TestParseMapping(t *testing.T) {
	input := "\ufeff# Contacts\n" +
		"\n" +
		"Organization ID = Org_ID__c\n" +
		"E-mail=Email\n" +
		"  First Name  =  FirstName  \n" +
		"email = Email_2__c\n"

	rules, err := ParseMapping(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, MappingRules{
		"organizationid": "Org_ID__c",
		"email":          "Email_2__c", // later rule wins
		"firstname":      "FirstName",
	}, rules)
}

func TestParseMappingErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
		reason   string
	}{
		{name: "no separator", input: "Name\n", wantLine: 1, reason: "missing '='"},
		{name: "empty source", input: "# c\n= Name\n", wantLine: 2, reason: "empty source column"},
		{name: "empty target", input: "A = B\nName =\n", wantLine: 2, reason: "empty target field"},
		{name: "double separator", input: "a = b = c\n", wantLine: 1, reason: "unexpected '='"},
		{name: "punctuation only", input: "-- = Name\n", wantLine: 1, reason: "no letters or digits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMapping(strings.NewReader(tt.input))
			var mfe *MappingFormatError
			require.ErrorAs(t, err, &mfe)
			assert.Equal(t, tt.wantLine, mfe.Line)
			assert.Contains(t, mfe.Reason, tt.reason)
		})
	}
}

func TestLoadMapping(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadMapping(filepath.Join(dir, "Nope.sdl"))
		assert.True(t, errors.Is(err, ErrMappingFileNotFound))
	})

	t.Run("format error carries path", func(t *testing.T) {
		path := filepath.Join(dir, "Bad.sdl")
		require.NoError(t, os.WriteFile(path, []byte("Name\n"), 0o644))

		_, err := LoadMapping(path)
		var mfe *MappingFormatError
		require.ErrorAs(t, err, &mfe)
		assert.Equal(t, path, mfe.Path)
		assert.Contains(t, err.Error(), "Bad.sdl")
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "AssetsMapping.sdl")
		require.NoError(t, os.WriteFile(path, []byte("Serial Number = SerialNumber\n"), 0o644))

		rules, err := LoadMapping(path)
		require.NoError(t, err)
		assert.Equal(t, "SerialNumber", rules["serialnumber"])
	})
}

func TestRename(t *testing.T) {
	table := RawTable{
		Columns: []string{"Organization ID", " Name ", "Org id", "Extra"},
		Rows: []RawRow{
			{"Organization ID": "1", " Name ": "Acme", "Org id": "9", "Extra": "x"},
		},
	}
	rules := MappingRules{
		"organizationid": "Org_ID__c",
		"orgid":          "Org_ID__c",
	}

	out, collisions := Rename(table, rules)

	assert.Equal(t, []string{"Org_ID__c", "Name", "Extra"}, out.Columns)
	assert.Equal(t, []string{"Org id"}, collisions)
	assert.Equal(t, RawRow{"Org_ID__c": "1", "Name": "Acme", "Extra": "x"}, out.Rows[0])
	assert.Equal(t, "1", table.Rows[0]["Organization ID"], "input table must not change")
}

func TestDropColumns(t *testing.T) {
	table := RawTable{
		Columns: []string{"ID", "Name", "Unnamed: 15"},
		Rows:    []RawRow{{"ID": "1", "Name": "A", "Unnamed: 15": nil}},
	}

	out := DropColumns(table, []string{"Unnamed: 15", "ID", "Not There"})

	assert.Equal(t, []string{"Name"}, out.Columns)
	assert.Equal(t, RawRow{"Name": "A"}, out.Rows[0])
	assert.Len(t, table.Columns, 3)
}
