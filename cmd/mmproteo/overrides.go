package main

import (
	"github.com/spf13/pflag"

	"mmproteo/internal/config"
)

// runFlags mirrors the config values that can be overridden for one run.
type runFlags struct {
	project       string
	storageDir    string
	logFile       string
	apiVersions   []string
	maxItems      int
	threads       int
	countFailed   bool
	countSkipped  bool
	skipExisting  bool
	failEarly     bool
	extensions    []string
	filters       []string
	shownColumns  []string
	previewRows   int
	thermoFormat  string
	keepContainer bool
	logLevel      string
	logFormat     string
	skipPreflight bool
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.project, "project", "p", "", "PRIDE project accession, e.g. PXD010000")
	fs.StringVarP(&f.storageDir, "storage-dir", "d", "", "Directory files are downloaded to and converted in")
	fs.StringVar(&f.logFile, "log-file", "", "Log file relative to the storage directory; empty disables it")
	fs.StringSliceVar(&f.apiVersions, "pride-versions", nil, "PRIDE listing sources tried in order (2, 1, index)")
	fs.IntVarP(&f.maxItems, "max-items", "n", 0, "Stop after this many processed files per command; 0 processes all")
	fs.IntVarP(&f.threads, "threads", "t", 1, "Worker count; 0 uses one per CPU, 1 disables parallelism")
	fs.BoolVar(&f.countFailed, "count-failed", false, "Count failed files toward --max-items")
	fs.BoolVar(&f.countSkipped, "count-skipped", true, "Count skipped files toward --max-items")
	fs.BoolVar(&f.skipExisting, "skip-existing", true, "Skip files whose output already exists")
	fs.BoolVar(&f.failEarly, "fail-early", true, "Stop at the first command warning")
	fs.StringSliceVarP(&f.extensions, "extensions", "e", nil, "Allowed file extensions, case-insensitive")
	fs.StringArrayVarP(&f.filters, "filter", "f", nil, "Column filter such as 'fileName==.*\\.raw'; repeat to AND-combine")
	fs.StringSliceVar(&f.shownColumns, "shown-columns", nil, "Columns shown in previews")
	fs.IntVar(&f.previewRows, "preview-rows", 0, "Maximum rows per preview; 0 shows all")
	fs.StringVar(&f.thermoFormat, "thermo-output-format", "", "ThermoRawFileParser output format (mgf, mzml, imzml, parquet)")
	fs.BoolVar(&f.keepContainer, "thermo-keep-container-running", false, "Keep the converter container running after convertraw")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format (console, json)")
	fs.BoolVar(&f.skipPreflight, "skip-preflight", false, "Do not check directories, binaries and network access before running")
}

// apply copies the flags the user set onto cfg. Unset flags keep the file values.
func (f *runFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("project", func() { cfg.Project.ID = f.project })
	set("storage-dir", func() { cfg.Paths.StorageDir = f.storageDir })
	set("log-file", func() { cfg.Paths.LogFile = f.logFile })
	set("pride-versions", func() { cfg.Project.APIVersions = f.apiVersions })
	set("max-items", func() { cfg.Processing.MaxItems = f.maxItems })
	set("threads", func() { cfg.Processing.ThreadCount = f.threads })
	set("count-failed", func() { cfg.Processing.CountFailed = f.countFailed })
	set("count-skipped", func() { cfg.Processing.CountSkipped = f.countSkipped })
	set("skip-existing", func() { cfg.Processing.SkipExisting = f.skipExisting })
	set("fail-early", func() { cfg.Processing.FailEarly = f.failEarly })
	set("extensions", func() { cfg.Processing.ValidExtensions = f.extensions })
	set("filter", func() { cfg.Processing.Filters = append(cfg.Processing.Filters, f.filters...) })
	set("shown-columns", func() { cfg.Display.ShownColumns = f.shownColumns })
	set("preview-rows", func() { cfg.Display.PreviewRows = f.previewRows })
	set("thermo-output-format", func() { cfg.Thermo.OutputFormat = f.thermoFormat })
	set("thermo-keep-container-running", func() { cfg.Thermo.KeepContainerRunning = f.keepContainer })
	set("log-level", func() { cfg.Logging.Level = f.logLevel })
	set("log-format", func() { cfg.Logging.Format = f.logFormat })
}
