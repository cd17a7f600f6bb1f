package commands

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mmproteo/internal/config"
	"mmproteo/internal/preflight"
	"mmproteo/internal/pride"
	"mmproteo/internal/processing"
	"mmproteo/internal/services"
	"mmproteo/internal/stages"
)

type fakeCommand struct {
	name        string
	validateErr error
	runErr      error
	log         *[]string
}

func (f fakeCommand) Name() string { return f.name }
func (f fakeCommand) Description() string { return "does " + f.name }

func (f fakeCommand) Validate(*Session) error {
	*f.log = append(*f.log, "validate "+f.name)
	return f.validateErr
}

func (f fakeCommand) Run(context.Context, *Session) error {
	*f.log = append(*f.log, "run "+f.name)
	return f.runErr
}

type fakeLister struct {
	files []pride.File
	calls *int
}

func (f fakeLister) ListFiles(context.Context, string) ([]pride.File, error) {
	*f.calls++
	return f.files, nil
}

func (f fakeLister) Summary(context.Context, string) (map[string]any, error) {
	return map[string]any{"accession": "PXD000001", "title": "sample"}, nil
}

// fakeFetcher pretends every URL landed in /storage.
type fakeFetcher struct{}

func (fakeFetcher) Fetch(_ context.Context, url string) processing.Outcome[string] {
	return processing.Succeed(filepath.Join("/storage", filepath.Base(url)))
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(_ context.Context, path string) processing.Outcome[string] {
	return processing.Succeed(strings.TrimSuffix(path, ".gz"))
}

type fakeConverter struct{ events *[]string }

func (f fakeConverter) Start(context.Context) error {
	*f.events = append(*f.events, "start")
	return nil
}

func (f fakeConverter) Stop(context.Context) error {
	*f.events = append(*f.events, "stop")
	return nil
}

func (fakeConverter) KeepRunning() bool { return false }

func (f fakeConverter) Convert(_ context.Context, path string) processing.Outcome[string] {
	*f.events = append(*f.events, "convert "+filepath.Base(path))
	return processing.Succeed(strings.TrimSuffix(path, ".raw") + ".mgf")
}

func newSession(t *testing.T, mutate func(*config.Config), opts ...SessionOption) (*Session, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.StorageDir = t.TempDir()
	cfg.Project.ID = "PXD000001"
	if mutate != nil {
		mutate(&cfg)
	}
	var out bytes.Buffer
	s, err := NewSession(&cfg, nil, append([]SessionOption{WithOutput(&out)}, opts...)...)
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	return s, &out
}

func TestDispatchValidatesAllBeforeRunning(t *testing.T) {
	var log []string
	d, err := NewDispatcher(fakeCommand{name: "a", log: &log}, fakeCommand{name: "b", log: &log})
	if err != nil {
		t.Fatal(err)
	}
	s, _ := newSession(t, nil)

	if err := d.Dispatch(context.Background(), s, []string{"b", "a", "b"}); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	want := []string{"validate b", "validate a", "run b", "run a"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Fatalf("call sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchRejectsUnknownNamesFirst(t *testing.T) {
	var log []string
	d, _ := NewDispatcher(fakeCommand{name: "a", log: &log})
	s, _ := newSession(t, nil)

	err := d.Dispatch(context.Background(), s, []string{"a", "nope"})
	if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("expected validation error naming the command, got %v", err)
	}
	if len(log) != 0 {
		t.Fatalf("nothing should run, got %v", log)
	}
}

func TestDispatchWarningsAndFailEarly(t *testing.T) {
	warn := services.Warn("a", "no items")
	for _, failEarly := range []bool{true, false} {
		var log []string
		d, _ := NewDispatcher(fakeCommand{name: "a", runErr: warn, log: &log}, fakeCommand{name: "b", log: &log})
		s, _ := newSession(t, func(cfg *config.Config) { cfg.Processing.FailEarly = failEarly })

		err := d.Dispatch(context.Background(), s, []string{"a", "b"})
		if failEarly {
			if !services.IsWarning(err) {
				t.Fatalf("fail-early: expected warning error, got %v", err)
			}
			if diff := cmp.Diff([]string{"validate a", "validate b", "run a"}, log); diff != "" {
				t.Fatalf("fail-early sequence mismatch (-want +got):\n%s", diff)
			}
			continue
		}
		if err != nil {
			t.Fatalf("expected warnings to be logged only, got %v", err)
		}
		if diff := cmp.Diff([]string{"validate a", "validate b", "run a", "run b"}, log); diff != "" {
			t.Fatalf("sequence mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestDispatchStopsOnErrors(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	d, _ := NewDispatcher(fakeCommand{name: "a", runErr: boom, log: &log}, fakeCommand{name: "b", log: &log})
	s, _ := newSession(t, func(cfg *config.Config) { cfg.Processing.FailEarly = false })

	if err := d.Dispatch(context.Background(), s, []string{"a", "b"}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if diff := cmp.Diff([]string{"validate a", "validate b", "run a"}, log); diff != "" {
		t.Fatalf("sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestNewDispatcherRejectsDuplicates(t *testing.T) {
	var log []string
	if _, err := NewDispatcher(fakeCommand{name: "a", log: &log}, fakeCommand{name: "a", log: &log}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestDefaultDispatcherNamesAndNeeds(t *testing.T) {
	d := Default()
	want := []string{"clearcache", "convertraw", "download", "extract", "info", "list", "mgf2sqlite", "mz2sqlite", "showconfig"}
	if diff := cmp.Diff(want, d.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(d.Describe(), "clearcache : ") {
		t.Fatalf("unexpected description:\n%s", d.Describe())
	}

	cmds, err := d.Resolve([]string{"download", "convertraw"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(preflight.Needs{Network: true, Docker: true}, Needs(cmds)); diff != "" {
		t.Fatalf("needs mismatch (-want +got):\n%s", diff)
	}
}

func TestListAndDownloadShareListing(t *testing.T) {
	calls := 0
	lister := fakeLister{calls: &calls, files: []pride.File{
		{Fields: map[string]string{pride.FileNameField: "b file.raw", pride.DownloadLinkField: "https://x/b file.raw"}},
		{Fields: map[string]string{pride.FileNameField: "a.mgf", pride.DownloadLinkField: "https://x/a.mgf"}},
		{Fields: map[string]string{pride.FileNameField: "c.txt", pride.DownloadLinkField: "https://x/c.txt"}},
	}}
	s, out := newSession(t, func(cfg *config.Config) {
		cfg.Processing.ValidExtensions = []string{"raw", "mgf"}
		cfg.Display.ShownColumns = []string{pride.FileNameField, pride.DownloadLinkField}
	}, WithLister(lister), WithFetcher(fakeFetcher{}))

	if err := Default().Dispatch(context.Background(), s, []string{"list", "download"}); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one listing request, got %d", calls)
	}
	text := out.String()
	if !strings.Contains(text, "https://x/b%20file.raw") {
		t.Fatalf("download link should be escaped:\n%s", text)
	}
	if strings.Contains(text, "c.txt") {
		t.Fatalf("filtered file should not be shown:\n%s", text)
	}
	if !strings.Contains(text, "downloaded_files") {
		t.Fatalf("download preview should include the stage column:\n%s", text)
	}
	if s.Registry.Len() != 2 {
		t.Fatalf("expected 2 registry rows, got %d", s.Registry.Len())
	}

	if err := Default().Dispatch(context.Background(), s, []string{"clearcache", "list"}); err != nil {
		t.Fatal(err)
	}
	if s.Registry.Len() != 0 || calls != 2 {
		t.Fatalf("clearcache should drop rows and listings, rows=%d calls=%d", s.Registry.Len(), calls)
	}
}

func TestStagesChainThroughRegistry(t *testing.T) {
	calls := 0
	lister := fakeLister{calls: &calls, files: []pride.File{
		{Fields: map[string]string{pride.FileNameField: "run.raw.gz", pride.DownloadLinkField: "https://x/run.raw.gz"}},
	}}
	var events []string
	s, out := newSession(t, func(cfg *config.Config) {
		cfg.Processing.ValidExtensions = []string{"raw"}
	}, WithLister(lister), WithFetcher(fakeFetcher{}), WithExtractor(fakeExtractor{}), WithConverter(fakeConverter{events: &events}))

	if err := Default().Dispatch(context.Background(), s, []string{"download", "extract", "convertraw"}); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"start", "convert run.raw", "stop"}, events); diff != "" {
		t.Fatalf("converter events mismatch (-want +got):\n%s", diff)
	}
	rows := s.Registry.Rows("run.raw.gz")
	if len(rows) != 1 {
		t.Fatalf("expected a single registry row, got %d (total %d)", len(rows), s.Registry.Len())
	}
	want := map[string]string{
		stages.DownloadedColumn:   "/storage/run.raw.gz",
		stages.ExtractedColumn:    "/storage/run.raw",
		stages.ConvertedRawColumn: "/storage/run.mgf",
	}
	for column, value := range want {
		if got := rows[0].Values[column]; got != value {
			t.Errorf("%s = %q, want %q", column, got, value)
		}
	}
	if !strings.Contains(out.String(), "converted_raw_files") {
		t.Fatalf("convertraw preview missing:\n%s", out.String())
	}
}

func TestValidationRequiresProject(t *testing.T) {
	s, _ := newSession(t, func(cfg *config.Config) { cfg.Project.ID = "" })
	for _, name := range []string{"info", "list", "download"} {
		err := Default().Dispatch(context.Background(), s, []string{name})
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestInfoAndShowConfig(t *testing.T) {
	calls := 0
	s, out := newSession(t, nil, WithLister(fakeLister{calls: &calls}))

	if err := Default().Dispatch(context.Background(), s, []string{"info", "showconfig"}); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, `"accession": "PXD000001"`) {
		t.Fatalf("summary missing:\n%s", text)
	}
	if !strings.Contains(text, "[processing]") || !strings.Contains(text, "PXD000001") {
		t.Fatalf("config missing:\n%s", text)
	}
}

func TestNewSessionRejectsBadFilter(t *testing.T) {
	cfg := config.Default()
	cfg.Processing.Filters = []string{"no comparator here"}
	if _, err := NewSession(&cfg, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
