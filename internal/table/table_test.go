package table_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"mmproteo/internal/filter"
	"mmproteo/internal/table"
)

func TestAppendAddsColumnsInStableOrder(t *testing.T) {
	tbl := table.New("id")
	tbl.Append(table.Row{"id": "s1", "mz": 1.5, "charge": int64(2)})
	tbl.Append(table.Row{"id": "s2", "title": "x"})
	if diff := cmp.Diff([]string{"id", "charge", "mz", "title"}, tbl.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
}

func TestRowIsFilterRecord(t *testing.T) {
	var rec filter.Record = table.Row{"charge": int64(2), "empty": nil}
	if v, ok := rec.Field("charge"); !ok || v != "2" {
		t.Fatalf("unexpected charge field %q %v", v, ok)
	}
	if _, ok := rec.Field("empty"); ok {
		t.Fatal("nil cells should be absent")
	}
	node := filter.MustColumnMatch("charge", "[23]")
	if !filter.Resolve(node, rec, false) {
		t.Fatal("expected charge to match")
	}
}

func TestProjectAndHead(t *testing.T) {
	tbl := table.New("a", "b", "c")
	tbl.Append(table.Row{"a": "1", "b": "2", "c": "3"})
	tbl.Append(table.Row{"a": "4", "b": "5", "c": "6"})

	projected := tbl.Project([]string{"c", "missing", "a"})
	if diff := cmp.Diff([]string{"c", "a"}, projected.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if tbl.Head(1).Len() != 1 || tbl.Head(0).Len() != 2 {
		t.Fatal("Head returned wrong row counts")
	}
}

func TestParseAndFormatValue(t *testing.T) {
	cases := []struct {
		in   string
		want any
	}{
		{"42", int64(42)},
		{"1.25", 1.25},
		{"controllerType=0 scan=1", "controllerType=0 scan=1"},
	}
	for _, tc := range cases {
		got := table.ParseValue(tc.in)
		if got != tc.want {
			t.Errorf("ParseValue(%q) = %#v, want %#v", tc.in, got, tc.want)
		}
		if table.FormatValue(got) != tc.in {
			t.Errorf("FormatValue(%#v) = %q, want %q", got, table.FormatValue(got), tc.in)
		}
	}
}
