package stages

import (
	"context"
	"log/slog"

	"mmproteo/internal/config"
	"mmproteo/internal/filter"
	"mmproteo/internal/pride"
	"mmproteo/internal/processing"
	"mmproteo/internal/registry"
)

// Registry columns written by the stages.
const (
	DownloadedColumn   = "downloaded_files"
	ExtractedColumn    = "extracted_files"
	ConvertedRawColumn = "converted_raw_files"
	MGFTableColumn     = "mgf_table_files"
	MzMLIDTableColumn  = "mzmlid_table_files"
)

// PathField exposes a candidate's full path to the filter tree next to
// filter.FileNameField, which carries the base name.
const PathField = "path"

// Fetcher downloads one URL into the storage directory.
type Fetcher interface {
	Fetch(ctx context.Context, url string) processing.Outcome[string]
}

// Extractor unpacks one archive.
type Extractor interface {
	Extract(ctx context.Context, path string) processing.Outcome[string]
}

// Converter runs the raw file parser inside a container managed around the
// convertraw stage.
type Converter interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	KeepRunning() bool
	Convert(ctx context.Context, path string) processing.Outcome[string]
}

// Env carries everything a stage needs for one invocation.
type Env struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *registry.Registry
	// Filter is the parsed --filter tree. Nil keeps every item.
	Filter    filter.Node
	Lister    pride.Lister
	Fetcher   Fetcher
	Extractor Extractor
	Converter Converter
}

// Report summarizes one stage run for previews.
type Report struct {
	Stage  string
	Column string
	// Keys are the registry rows the stage wrote to, in processing order.
	Keys      []string
	Successes int
	Available int
}

func (e *Env) processingOptions(action, subject string, logger *slog.Logger) processing.Options {
	p := e.Config.Processing
	return processing.Options{
		Action:        action,
		Subject:       subject,
		MaxItems:      p.MaxItems,
		Workers:       p.ThreadCount,
		CountFailures: p.CountFailed,
		CountNulls:    p.CountSkipped,
		Logger:        logger,
	}
}
