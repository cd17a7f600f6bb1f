// Package archives unpacks downloaded gzip and zip files with the system
// gunzip and unzip tools.
package archives

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"mmproteo/internal/config"
	"mmproteo/internal/fileutil"
	"mmproteo/internal/logging"
	"mmproteo/internal/processing"
	"mmproteo/internal/services"
)

// extractor describes how one archive type is unpacked next to the archive.
type extractor struct {
	binary func(*Extractor) string
	args   func(path string) []string
}

var extractors = map[string]extractor{
	"gz": {
		binary: func(e *Extractor) string { return e.gunzip },
		args:   func(path string) []string { return []string{"-k", "-f", path} },
	},
	"zip": {
		binary: func(e *Extractor) string { return e.unzip },
		args:   func(path string) []string { return []string{"-o", path, "-d", filepath.Dir(path)} },
	},
}

// Extensions lists the archive extensions that can be extracted, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(extractors))
	for ext := range extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Target returns the path an archive extracts to and the archive extension,
// or ("", "") when path is not a known archive.
func Target(path string) (string, string) {
	base, ext := fileutil.SplitExtension(filepath.Base(path), Extensions())
	if ext == "" {
		return "", ""
	}
	return filepath.Join(filepath.Dir(path), base), strings.ToLower(ext)
}

// Option configures the extractor.
type Option func(*Extractor)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(e *Extractor) {
		if exec != nil {
			e.exec = exec
		}
	}
}

func WithBinaries(gunzip, unzip string) Option {
	return func(e *Extractor) {
		if gunzip != "" {
			e.gunzip = gunzip
		}
		if unzip != "" {
			e.unzip = unzip
		}
	}
}

func WithSkipExisting(skip bool) Option {
	return func(e *Extractor) { e.skipExisting = skip }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Extractor runs the archive tools.
type Extractor struct {
	exec         services.Executor
	gunzip       string
	unzip        string
	skipExisting bool
	logger       *slog.Logger
}

func New(opts ...Option) *Extractor {
	e := &Extractor{
		exec:         services.CommandExecutor{},
		gunzip:       "gunzip",
		unzip:        "unzip",
		skipExisting: true,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "archives")
	return e
}

func NewFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) *Extractor {
	base := []Option{
		WithBinaries(cfg.GunzipBinary(), cfg.UnzipBinary()),
		WithSkipExisting(cfg.Processing.SkipExisting),
		WithLogger(logger),
	}
	return New(append(base, opts...)...)
}

// Extract unpacks path. Files that are not archives yield a null outcome;
// an existing target is reused when skip-existing is set.
func (e *Extractor) Extract(ctx context.Context, path string) processing.Outcome[string] {
	target, ext := Target(path)
	if ext == "" {
		return processing.Skip[string]()
	}
	if e.skipExisting && fileutil.FileExists(target) {
		e.logger.Info("Skipping extraction, target already exists", logging.String(logging.FieldFile, target))
		return processing.Succeed(target)
	}

	tool := extractors[ext]
	binary := tool.binary(e)
	args := tool.args(path)
	e.logger.Info("Extracting archive",
		logging.String(logging.FieldFile, path),
		logging.String("command", binary+" "+strings.Join(args, " ")))

	var lastLine string
	err := e.exec.Run(ctx, binary, args, func(line string) {
		if line = strings.TrimSpace(line); line != "" {
			lastLine = line
			e.logger.Debug("archive tool output", logging.String("line", line))
		}
	})
	if err != nil {
		detail := fmt.Sprintf("extract %s (exit code %d)", filepath.Base(path), services.ExitCode(err))
		if lastLine != "" {
			detail += ": " + lastLine
		}
		return processing.Fail[string](services.Wrap(services.ErrExternalTool, "extract", binary, detail, err))
	}
	if !fileutil.FileExists(target) {
		return processing.Fail[string](services.Wrap(services.ErrExternalTool, "extract", binary,
			fmt.Sprintf("%s did not produce %s", filepath.Base(path), filepath.Base(target)), nil))
	}
	e.logger.Info("Extracted archive", logging.String(logging.FieldFile, target))
	return processing.Succeed(target)
}
