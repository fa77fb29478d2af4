package core

import (
	"testing"
)

func TestImportIDSequential(t *testing.T) {
	tests := []struct {
		spec ImportIDSpec
		pos  int
		want string
	}{
		{ImportIDSpec{Prefix: "ACC", Width: 4}, 0, "ACC0001"},
		{ImportIDSpec{Prefix: "ASSET", Width: 5}, 41, "ASSET00042"},
		{ImportIDSpec{Prefix: "PS", Width: 4}, 12344, "PS12345"},
		{ImportIDSpec{Prefix: "INV", Width: 4}, 9, "INV0010"},
	}

	for _, tt := range tests {
		if got := tt.spec.Sequential(tt.pos); got != tt.want {
			t.Errorf("Sequential(%d) = %q, want %q", tt.pos, got, tt.want)
		}
	}
}

func TestAssignImportIDs(t *testing.T) {
	t.Run("sequential", func(t *testing.T) {
		records := []Record{{}, {}, {}}
		AssignImportIDs(records, ImportIDSpec{Prefix: "ACC", Width: 4})

		for i, want := range []string{"ACC0001", "ACC0002", "ACC0003"} {
			if got := records[i].Text(DefaultImportIDField); got != want {
				t.Errorf("record %d id = %q, want %q", i, got, want)
			}
		}
	})

	t.Run("natural key with fallback", func(t *testing.T) {
		records := []Record{
			{"Name": TextValue(" FV-2024-1 ")},
			{"Name": NullValue()},
			{"Name": TextValue("FV-2024-3")},
		}
		AssignImportIDs(records, ImportIDSpec{Prefix: "INV", Width: 4, NaturalKey: "Name"})

		for i, want := range []string{"FV-2024-1", "INV0002", "FV-2024-3"} {
			if got := records[i].Text(DefaultImportIDField); got != want {
				t.Errorf("record %d id = %q, want %q", i, got, want)
			}
		}
	})

	t.Run("custom field", func(t *testing.T) {
		records := []Record{{}}
		spec := ImportIDSpec{Field: "Legacy_ID__c", Prefix: "X", Width: 2}
		AssignImportIDs(records, spec)

		if got := records[0].Text("Legacy_ID__c"); got != "X01" {
			t.Errorf("Legacy_ID__c = %q, want X01", got)
		}
		if (EntityDefinition{ImportID: spec}).ExternalIDField() != "Legacy_ID__c" {
			t.Error("ExternalIDField should follow the import id field")
		}
	})
}

func TestDedupByExternalID(t *testing.T) {
	records := []Record{
		{"Import_ID__c": TextValue("A"), "n": TextValue("1")},
		{"Import_ID__c": TextValue("B"), "n": TextValue("2")},
		{"Import_ID__c": TextValue("A"), "n": TextValue("3")},
		{"Import_ID__c": TextValue("C"), "n": TextValue("4")},
		{"Import_ID__c": TextValue("B"), "n": TextValue("5")},
	}

	kept, dropped := DedupByExternalID(records, "Import_ID__c")

	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	var got []string
	seen := map[string]bool{}
	for _, r := range kept {
		id := r.Text("Import_ID__c")
		if seen[id] {
			t.Errorf("duplicate id %s after dedup", id)
		}
		seen[id] = true
		got = append(got, r.Text("n"))
	}
	want := []string{"1", "2", "4"}
	if len(got) != len(want) {
		t.Fatalf("kept = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kept[%d] = %s, want %s (first occurrence wins)", i, got[i], want[i])
		}
	}
}
