package download_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"mmproteo/internal/download"
	"mmproteo/internal/processing"
	"mmproteo/internal/services"
)

func server(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/files/a.raw", "/files/b.mzML.gz":
			fmt.Fprint(w, "payload")
		case "/files/broken.raw":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchWritesFile(t *testing.T) {
	var hits atomic.Int32
	srv := server(t, &hits)
	dir := t.TempDir()
	f := download.New(dir, download.WithHTTPClient(srv.Client()))

	out := f.Fetch(context.Background(), srv.URL+"/files/a.raw")
	if out.Kind != processing.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	if out.Value != filepath.Join(dir, "a.raw") {
		t.Fatalf("unexpected path %q", out.Value)
	}
	data, err := os.ReadFile(out.Value)
	if err != nil || string(data) != "payload" {
		t.Fatalf("unexpected content %q (%v)", data, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %d entries", len(entries))
	}
}

func TestFetchSkipsExistingAndExtracted(t *testing.T) {
	var hits atomic.Int32
	srv := server(t, &hits)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.raw"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.mzML"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := download.New(dir, download.WithHTTPClient(srv.Client()))

	for _, name := range []string{"a.raw", "b.mzML.gz"} {
		if out := f.Fetch(context.Background(), srv.URL+"/files/"+name); out.Kind != processing.Null {
			t.Fatalf("%s: expected null outcome, got %+v", name, out)
		}
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no requests, got %d", hits.Load())
	}

	f = download.New(dir, download.WithHTTPClient(srv.Client()), download.WithSkipExisting(false))
	if out := f.Fetch(context.Background(), srv.URL+"/files/a.raw"); out.Kind != processing.Success {
		t.Fatalf("expected re-download, got %+v", out)
	}
}

func TestFetchFailures(t *testing.T) {
	var hits atomic.Int32
	srv := server(t, &hits)
	dir := t.TempDir()
	f := download.New(dir, download.WithHTTPClient(srv.Client()))

	out := f.Fetch(context.Background(), srv.URL+"/files/missing.raw")
	if out.Kind != processing.Failure || !errors.Is(out.Err, services.ErrNotFound) {
		t.Fatalf("expected not-found failure, got %+v", out)
	}
	out = f.Fetch(context.Background(), srv.URL+"/files/broken.raw")
	if out.Kind != processing.Failure || !errors.Is(out.Err, services.ErrTransient) {
		t.Fatalf("expected transient failure, got %+v", out)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("failed downloads should leave nothing behind, found %d entries", len(entries))
	}
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"https://host/a/b/c.raw":   "c.raw",
		"https://host/a/b%20c.mgf": "b c.mgf",
		"ftp.host/pride/x.mzid.gz": "x.mzid.gz",
	}
	for in, want := range cases {
		if got := download.FileName(in); got != want {
			t.Errorf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}
