package stages

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"mmproteo/internal/filter"
	"mmproteo/internal/fileutil"
	"mmproteo/internal/logging"
	"mmproteo/internal/processing"
	"mmproteo/internal/registry"
	"mmproteo/internal/services"
)

// begin scopes ctx and the logger to a stage and logs its start.
func (e *Env) begin(ctx context.Context, name string) (context.Context, *slog.Logger) {
	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, e.Logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	return stageCtx, logger
}

func finish(logger *slog.Logger, report Report, started time.Time) {
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("column", report.Column),
		logging.Int("successes", report.Successes),
		logging.Int("available", report.Available),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)))
}

// inputs returns the registry values of columns, or the regular files of the
// storage directory when the registry holds none.
func (e *Env) inputs(logger *slog.Logger, columns ...string) ([]string, error) {
	if e.Registry != nil {
		if values := e.Registry.ColumnValues(columns...); len(values) > 0 {
			return values, nil
		}
	}
	files, err := fileutil.ListRegularFiles(e.Config.Paths.StorageDir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "list storage directory", e.Config.Paths.StorageDir, err)
	}
	logger.Debug("No previously processed files, using the storage directory",
		logging.String("dir", e.Config.Paths.StorageDir),
		logging.Int("files", len(files)))
	return files, nil
}

// selectPaths keeps the paths whose base name carries one of extensions and
// that pass the filter tree. The tree sees fileName and path fields.
func (e *Env) selectPaths(paths, extensions []string) []string {
	records := make([]filter.Fields, 0, len(paths))
	for _, p := range paths {
		records = append(records, filter.Fields{filter.FileNameField: filepath.Base(p), PathField: p})
	}
	kept := filter.Select(records, filter.Selection{
		Extensions: extensions,
		Node:       e.Filter,
		Unknown:    e.Config.Filter.UnknownMatches,
		Sort:       true,
	})
	out := make([]string, 0, len(kept))
	for _, rec := range kept {
		out = append(out, rec[PathField])
	}
	return out
}

// fileJob describes a stage that maps each selected file to one output file.
type fileJob struct {
	stage      string
	column     string
	action     string
	inputs     []string
	extensions []string
	fn         processing.Func[string, string]
	// prepare runs after selection, only when there is work.
	prepare func(ctx context.Context) (cleanup func(), err error)
}

func (e *Env) runFileJob(ctx context.Context, job fileJob) (Report, error) {
	started := time.Now()
	ctx, logger := e.begin(ctx, job.stage)
	report := Report{Stage: job.stage, Column: job.column}

	candidates, err := e.inputs(logger, job.inputs...)
	if err != nil {
		return report, err
	}
	paths := e.selectPaths(candidates, job.extensions)
	report.Available = len(paths)
	if len(paths) == 0 {
		return report, services.Warn(job.stage, fmt.Sprintf("no files with extension %v to %s", job.extensions, job.action))
	}

	if job.prepare != nil {
		cleanup, err := job.prepare(ctx)
		if err != nil {
			return report, err
		}
		if cleanup != nil {
			defer cleanup()
		}
	}

	result, err := processing.Process(ctx, processing.Present(paths...), job.fn, e.processingOptions(job.action, "file", logger))
	if err != nil {
		return report, err
	}
	links := make([]registry.Link, 0, len(result.Outcomes))
	for i, outcome := range result.Outcomes {
		if v, ok := outcome.Get(); ok {
			links = append(links, registry.Link{Sources: []string{paths[result.Positions[i]]}, Value: v})
		}
	}
	report.Successes = len(links)
	report.Keys = e.record(logger, job.column, links)
	finish(logger, report, started)
	return report, nil
}

// record writes links into column. Write-once conflicts are logged, the
// remaining links are still recorded.
func (e *Env) record(logger *slog.Logger, column string, links []registry.Link) []string {
	if e.Registry == nil {
		return nil
	}
	keys, err := e.Registry.Extend(column, links, false)
	if err != nil {
		logging.WarnWithContext(logger, "Registry refused some values", "registry_conflict",
			logging.String("column", column),
			logging.Error(err),
			logging.String(logging.FieldImpact, "earlier values were kept"))
	}
	return keys
}
