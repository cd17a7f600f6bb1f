package tablestore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mmproteo/internal/table"
	"mmproteo/internal/tablestore"
)

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "spectra.sqlite")

	in := table.New("id", "charge", "mz", "title")
	in.Append(table.Row{"id": "scan=1", "charge": int64(2), "mz": 445.12, "title": "first"})
	in.Append(table.Row{"id": "scan=2", "charge": nil, "mz": 512.5, "title": `quoted "title"`})

	if err := tablestore.Write(ctx, path, in); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	out, err := tablestore.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if diff := cmp.Diff(in.Columns, out.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(in.Rows, out.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the final file, found %d entries", len(entries))
	}
}

func TestWriteReplacesExistingFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "t.sqlite")
	first := table.New("a")
	first.Append(table.Row{"a": "old"})
	if err := tablestore.Write(ctx, path, first); err != nil {
		t.Fatal(err)
	}
	second := table.New("b")
	second.Append(table.Row{"b": int64(7)})
	if err := tablestore.Write(ctx, path, second); err != nil {
		t.Fatal(err)
	}
	out, err := tablestore.Read(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"b"}, out.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteRejectsEmptyTable(t *testing.T) {
	if err := tablestore.Write(context.Background(), filepath.Join(t.TempDir(), "x.sqlite"), table.New()); err == nil {
		t.Fatal("expected error for table without columns")
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := tablestore.Read(context.Background(), filepath.Join(t.TempDir(), "missing.sqlite"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}
