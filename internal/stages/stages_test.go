package stages_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mmproteo/internal/config"
	"mmproteo/internal/download"
	"mmproteo/internal/filter"
	"mmproteo/internal/logging"
	"mmproteo/internal/pride"
	"mmproteo/internal/processing"
	"mmproteo/internal/registry"
	"mmproteo/internal/services"
	"mmproteo/internal/stages"
	"mmproteo/internal/tablestore"
)

type fakeLister struct {
	files []pride.File
	err   error
}

func (f fakeLister) ListFiles(context.Context, string) ([]pride.File, error) {
	return f.files, f.err
}

func (f fakeLister) Summary(context.Context, string) (map[string]any, error) {
	return nil, nil
}

// fakeFetcher fails for URLs listed in fail and records every attempt.
type fakeFetcher struct {
	dir      string
	fail     map[string]bool
	mu       sync.Mutex
	attempts []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) processing.Outcome[string] {
	f.mu.Lock()
	f.attempts = append(f.attempts, url)
	f.mu.Unlock()
	if f.fail[url] {
		return processing.Fail[string](errors.New("boom"))
	}
	return processing.Succeed(filepath.Join(f.dir, download.FileName(url)))
}

// fakeTool maps a path to a sibling with a replaced suffix.
type fakeTool struct {
	from, to string
	seen     []string
	mu       sync.Mutex
}

func (f *fakeTool) run(path string) processing.Outcome[string] {
	f.mu.Lock()
	f.seen = append(f.seen, filepath.Base(path))
	f.mu.Unlock()
	if !strings.HasSuffix(path, f.from) {
		return processing.Skip[string]()
	}
	return processing.Succeed(strings.TrimSuffix(path, f.from) + f.to)
}

func (f *fakeTool) Extract(_ context.Context, path string) processing.Outcome[string] {
	return f.run(path)
}

type fakeConverter struct {
	fakeTool
	keep     bool
	startErr error
	events   []string
}

func (f *fakeConverter) Start(context.Context) error {
	f.events = append(f.events, "start")
	return f.startErr
}

func (f *fakeConverter) Stop(context.Context) error {
	f.events = append(f.events, "stop")
	return nil
}

func (f *fakeConverter) KeepRunning() bool { return f.keep }

func (f *fakeConverter) Convert(_ context.Context, path string) processing.Outcome[string] {
	f.events = append(f.events, "convert")
	return f.run(path)
}

func newEnv(t *testing.T) *stages.Env {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.StorageDir = t.TempDir()
	cfg.Project.ID = "PXD000001"
	return &stages.Env{Config: &cfg, Registry: registry.New()}
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func projectFile(name, link string) pride.File {
	return pride.File{Fields: map[string]string{
		pride.FileNameField:     name,
		pride.DownloadLinkField: link,
		"fileCategory.value":    "RAW",
	}}
}

func TestDownloadBoundedByMaxItems(t *testing.T) {
	env := newEnv(t)
	env.Config.Processing.MaxItems = 2
	env.Config.Processing.CountFailed = false
	env.Lister = fakeLister{files: []pride.File{
		projectFile("a.raw", "https://x/a.raw"),
		projectFile("b.raw", "https://x/b.raw"),
		projectFile("c.raw", "https://x/c.raw"),
		projectFile("d.raw", "https://x/d.raw"),
	}}
	fetcher := &fakeFetcher{dir: env.Config.Paths.StorageDir, fail: map[string]bool{"https://x/a.raw": true}}
	env.Fetcher = fetcher

	report, err := stages.Download(context.Background(), env)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"b.raw", "c.raw"}, report.Keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	for _, url := range fetcher.attempts {
		if url == "https://x/d.raw" {
			t.Fatal("d.raw should never be attempted")
		}
	}
	row := env.Registry.Rows("b.raw")[0]
	if row.Values["fileCategory.value"] != "RAW" || row.Values[stages.DownloadedColumn] != filepath.Join(env.Config.Paths.StorageDir, "b.raw") {
		t.Fatalf("unexpected row %+v", row)
	}
	if len(env.Registry.Rows("a.raw")) != 0 {
		t.Fatal("failed downloads should not be registered")
	}
}

func TestDownloadTwiceWithSkipExistingAddsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "content of "+r.URL.Path)
	}))
	defer srv.Close()

	env := newEnv(t)
	env.Lister = fakeLister{files: []pride.File{
		projectFile("a.raw", srv.URL+"/a.raw"),
		projectFile("b.mzid.gz", srv.URL+"/b.mzid.gz"),
	}}
	env.Fetcher = download.New(env.Config.Paths.StorageDir, download.WithHTTPClient(srv.Client()))

	first, err := stages.Download(context.Background(), env)
	if err != nil {
		t.Fatalf("first Download returned error: %v", err)
	}
	if first.Successes != 2 {
		t.Fatalf("expected 2 downloads, got %+v", first)
	}

	env.Registry.Clear()
	second, err := stages.Download(context.Background(), env)
	if err != nil {
		t.Fatalf("second Download returned error: %v", err)
	}
	if second.Successes != 0 || len(second.Keys) != 0 || len(env.Registry.ColumnValues(stages.DownloadedColumn)) != 0 {
		t.Fatalf("expected no new downloads, got %+v", second)
	}
}

func TestDownloadAppliesExtensionsAndFilter(t *testing.T) {
	env := newEnv(t)
	env.Config.Processing.ValidExtensions = []string{"mzid", "mzml"}
	parser, err := filter.NewParser("|", "")
	if err != nil {
		t.Fatal(err)
	}
	env.Filter, err = parser.Parse(`fileName==.*1.*|fileName==b.*`)
	if err != nil {
		t.Fatal(err)
	}
	env.Lister = fakeLister{files: []pride.File{
		projectFile("run1.mzid.gz", "https://x/run1.mzid.gz"),
		projectFile("run1.raw", "https://x/run1.raw"),
		projectFile("b.mzML", "https://x/b.mzML"),
		projectFile("run2.mzml", "https://x/run2.mzml"),
	}}
	fetcher := &fakeFetcher{dir: env.Config.Paths.StorageDir}
	env.Fetcher = fetcher

	report, err := stages.Download(context.Background(), env)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"b.mzML", "run1.mzid.gz"}, report.Keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestDownloadWarnings(t *testing.T) {
	env := newEnv(t)
	env.Fetcher = &fakeFetcher{}

	env.Lister = fakeLister{err: services.Wrap(services.ErrNotFound, "pride", "list", "gone", nil)}
	_, err := stages.Download(context.Background(), env)
	if !services.IsWarning(err) || !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected warning wrapping not-found, got %v", err)
	}

	env.Config.Processing.ValidExtensions = []string{"mgf"}
	env.Lister = fakeLister{files: []pride.File{projectFile("a.raw", "https://x/a.raw")}}
	_, err = stages.Download(context.Background(), env)
	if !services.IsWarning(err) {
		t.Fatalf("expected warning for empty selection, got %v", err)
	}
}

func TestExtractFallsBackToStorageDirectory(t *testing.T) {
	env := newEnv(t)
	dir := env.Config.Paths.StorageDir
	touch(t, dir, "a.mzML.gz", "b.raw", "c.zip")
	tool := &fakeTool{from: ".gz"}
	env.Extractor = tool

	report, err := stages.Extract(context.Background(), env)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"a.mzML.gz", "c.zip"}, tool.seen); diff != "" {
		t.Fatalf("extracted inputs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{filepath.Join(dir, "a.mzML")}, env.Registry.ColumnValues(stages.ExtractedColumn)); diff != "" {
		t.Fatalf("extracted column mismatch (-want +got):\n%s", diff)
	}
	if report.Successes != 1 || report.Available != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestExtractUsesDownloadedColumn(t *testing.T) {
	env := newEnv(t)
	dir := env.Config.Paths.StorageDir
	touch(t, dir, "other.gz")
	downloaded := filepath.Join(dir, "a.mzid.gz")
	if _, err := env.Registry.Extend(stages.DownloadedColumn, []registry.Link{{Sources: []string{"a.mzid.gz"}, Value: downloaded}}, false); err != nil {
		t.Fatal(err)
	}
	tool := &fakeTool{from: ".gz"}
	env.Extractor = tool

	report, err := stages.Extract(context.Background(), env)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"a.mzid.gz"}, report.Keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	row := env.Registry.Rows("a.mzid.gz")[0]
	if row.Values[stages.ExtractedColumn] != filepath.Join(dir, "a.mzid") {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestConvertRawManagesContainer(t *testing.T) {
	env := newEnv(t)
	touch(t, env.Config.Paths.StorageDir, "a.raw", "b.RAW", "c.mgf")
	conv := &fakeConverter{fakeTool: fakeTool{from: "raw", to: "mgf"}}
	env.Converter = conv

	if _, err := stages.ConvertRaw(context.Background(), env); err != nil {
		t.Fatalf("ConvertRaw returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"start", "convert", "convert", "stop"}, conv.events); diff != "" {
		t.Fatalf("event sequence mismatch (-want +got):\n%s", diff)
	}

	conv.events, conv.keep = nil, true
	if _, err := stages.ConvertRaw(context.Background(), env); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"start", "convert", "convert"}, conv.events); diff != "" {
		t.Fatalf("kept container should not stop (-want +got):\n%s", diff)
	}
}

func TestConvertRawFailuresAndWarnings(t *testing.T) {
	env := newEnv(t)
	conv := &fakeConverter{startErr: services.Wrap(services.ErrExternalTool, "thermo", "docker run", "no docker", nil)}
	env.Converter = conv

	if _, err := stages.ConvertRaw(context.Background(), env); !services.IsWarning(err) {
		t.Fatalf("expected warning without raw files, got %v", err)
	}
	if len(conv.events) != 0 {
		t.Fatalf("container must not start without work, got %v", conv.events)
	}

	touch(t, env.Config.Paths.StorageDir, "a.raw")
	_, err := stages.ConvertRaw(context.Background(), env)
	if !errors.Is(err, services.ErrExternalTool) || services.IsWarning(err) {
		t.Fatalf("expected fatal start failure, got %v", err)
	}
}

func TestMGF2SQLite(t *testing.T) {
	env := newEnv(t)
	dir := env.Config.Paths.StorageDir
	mgf := filepath.Join(dir, "spectra.mgf")
	content := "BEGIN IONS\nTITLE=one\nPEPMASS=445.12\n100.5 10\nEND IONS\n"
	if err := os.WriteFile(mgf, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.mgf"), []byte("BEGIN IONS\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := stages.MGF2SQLite(context.Background(), env)
	if err != nil {
		t.Fatalf("MGF2SQLite returned error: %v", err)
	}
	target := stages.MGFTablePath(mgf)
	if target != filepath.Join(dir, "spectra_mgf.sqlite") {
		t.Fatalf("unexpected target %q", target)
	}
	if diff := cmp.Diff([]string{mgf}, report.Keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	tbl, err := tablestore.Read(context.Background(), target)
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	if tbl.Len() != 1 || tbl.Rows[0]["title"] != "one" {
		t.Fatalf("unexpected table %+v", tbl.Rows)
	}
}

func TestMGF2SQLiteWriteFailureIsNotValidation(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	env := newEnv(t)
	env.Logger = logger.Logger
	dir := env.Config.Paths.StorageDir
	mgf := filepath.Join(dir, "spectra.mgf")
	if err := os.WriteFile(mgf, []byte("BEGIN IONS\nTITLE=one\n100.5 10\nEND IONS\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A directory in place of the target makes the final rename fail.
	if err := os.Mkdir(stages.MGFTablePath(mgf), 0o755); err != nil {
		t.Fatal(err)
	}

	report, err := stages.MGF2SQLite(context.Background(), env)
	if err != nil {
		t.Fatalf("MGF2SQLite returned error: %v", err)
	}
	if report.Successes != 0 {
		t.Fatalf("expected the write to fail, got %d successes", report.Successes)
	}
	text := buf.String()
	if !strings.Contains(text, "mgf2sqlite: write") {
		t.Fatalf("missing write failure in log:\n%s", text)
	}
	if strings.Contains(text, services.ErrValidation.Error()) {
		t.Fatalf("write failure should not be reported as a validation error:\n%s", text)
	}
}

const mzML = `<?xml version="1.0" encoding="utf-8"?>
<mzML xmlns="http://psi.hupo.org/ms/mzml">
  <run id="run1">
    <spectrumList count="1">
      <spectrum index="0" id="scan=1" defaultArrayLength="0">
        <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="2"/>
      </spectrum>
    </spectrumList>
  </run>
</mzML>
`

const mzID = `<?xml version="1.0" encoding="UTF-8"?>
<MzIdentML xmlns="http://psidev.info/psi/pi/mzIdentML/1.1">
  <DataCollection>
    <AnalysisData>
      <SpectrumIdentificationList id="L1">
        <SpectrumIdentificationResult spectrumID="scan=1" id="SIR_1">
          <SpectrumIdentificationItem chargeState="2" rank="1" id="SII_1"/>
        </SpectrumIdentificationResult>
      </SpectrumIdentificationList>
    </AnalysisData>
  </DataCollection>
</MzIdentML>
`

func TestMZ2SQLite(t *testing.T) {
	env := newEnv(t)
	dir := env.Config.Paths.StorageDir
	for name, content := range map[string]string{"run_1.mzML": mzML, "run_1.mzid": mzID, "lonely_2.mzML": mzML} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	a, b := filepath.Join(dir, "run_1.mzML"), filepath.Join(dir, "run_1.mzid")
	if _, err := env.Registry.Extend(stages.ExtractedColumn, []registry.Link{
		{Sources: []string{"run_1.mzML.gz"}, Value: a},
		{Sources: []string{"run_1.mzid.gz"}, Value: b},
		{Sources: []string{"lonely_2.mzML.gz"}, Value: filepath.Join(dir, "lonely_2.mzML")},
	}, false); err != nil {
		t.Fatal(err)
	}

	report, err := stages.MZ2SQLite(context.Background(), env)
	if err != nil {
		t.Fatalf("MZ2SQLite returned error: %v", err)
	}
	target := filepath.Join(dir, "run_1"+env.Config.Merge.Suffix)
	if diff := cmp.Diff([]string{"run_1.mzML.gz", "run_1.mzid.gz"}, report.Keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	for _, row := range env.Registry.Rows(report.Keys...) {
		if row.Values[stages.MzMLIDTableColumn] != target {
			t.Fatalf("row %q: unexpected value %q", row.Key, row.Values[stages.MzMLIDTableColumn])
		}
	}
	tbl, err := tablestore.Read(context.Background(), target)
	if err != nil {
		t.Fatalf("read merged table: %v", err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("expected one merged row, got %d", tbl.Len())
	}
}

func TestMZ2SQLiteWithoutPairsWarns(t *testing.T) {
	env := newEnv(t)
	touch(t, env.Config.Paths.StorageDir, "a.mzML", "b.raw")
	if _, err := stages.MZ2SQLite(context.Background(), env); !services.IsWarning(err) {
		t.Fatalf("expected warning, got %v", err)
	}
}
