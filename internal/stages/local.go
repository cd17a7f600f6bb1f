package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"mmproteo/internal/archives"
	"mmproteo/internal/fileutil"
	"mmproteo/internal/formats"
	"mmproteo/internal/logging"
	"mmproteo/internal/pairing"
	"mmproteo/internal/processing"
	"mmproteo/internal/registry"
	"mmproteo/internal/services"
	"mmproteo/internal/tablestore"
	"mmproteo/internal/thermo"
)

// MGFTableSuffix replaces the extension of a converted MGF file.
const MGFTableSuffix = "_mgf.sqlite"

// Extract unpacks the downloaded archives.
func Extract(ctx context.Context, env *Env) (Report, error) {
	return env.runFileJob(ctx, fileJob{
		stage:      "extract",
		column:     ExtractedColumn,
		action:     "extract",
		inputs:     []string{DownloadedColumn},
		extensions: archives.Extensions(),
		fn:         env.Extractor.Extract,
	})
}

// ConvertRaw converts raw files with the containerized parser. The container
// is started once before the first conversion and stopped afterwards unless
// configured to keep running.
func ConvertRaw(ctx context.Context, env *Env) (Report, error) {
	return env.runFileJob(ctx, fileJob{
		stage:      "convertraw",
		column:     ConvertedRawColumn,
		action:     "convert",
		inputs:     []string{DownloadedColumn, ExtractedColumn},
		extensions: []string{thermo.RawExtension},
		fn:         env.Converter.Convert,
		prepare: func(ctx context.Context) (func(), error) {
			if err := env.Converter.Start(ctx); err != nil {
				return nil, err
			}
			if env.Converter.KeepRunning() {
				return nil, nil
			}
			return func() {
				if err := env.Converter.Stop(context.WithoutCancel(ctx)); err != nil {
					logging.WithContext(ctx, env.Logger).Warn("Failed to stop converter container", logging.Error(err))
				}
			}, nil
		},
	})
}

// MGF2SQLite stores every MGF file as a SQLite table next to it.
func MGF2SQLite(ctx context.Context, env *Env) (Report, error) {
	return env.runFileJob(ctx, fileJob{
		stage:      "mgf2sqlite",
		column:     MGFTableColumn,
		action:     "convert",
		inputs:     []string{DownloadedColumn, ExtractedColumn, ConvertedRawColumn},
		extensions: []string{"mgf"},
		fn:         env.convertMGF,
	})
}

// MGFTablePath returns where the table of an MGF file is written.
func MGFTablePath(path string) string {
	base, _ := fileutil.SplitExtension(filepath.Base(path), []string{"mgf"})
	return filepath.Join(filepath.Dir(path), base+MGFTableSuffix)
}

func (e *Env) convertMGF(ctx context.Context, path string) processing.Outcome[string] {
	logger := logging.WithContext(ctx, e.Logger)
	target := MGFTablePath(path)
	if e.Config.Processing.SkipExisting && fileutil.FileExists(target) {
		logger.Info("Skipping conversion, target already exists", logging.String(logging.FieldFile, target))
		return processing.Succeed(target)
	}
	tbl, err := formats.Read(ctx, path)
	if err != nil {
		return processing.Fail[string](err)
	}
	if err := tablestore.Write(ctx, target, tbl); err != nil {
		return processing.Fail[string](fmt.Errorf("mgf2sqlite: write %s: %w", target, err))
	}
	logger.Info("Converted file",
		logging.String(logging.FieldFile, target),
		logging.Int("spectra", tbl.Len()))
	return processing.Succeed(target)
}

// MZ2SQLite pairs mzML files with their mzID companions and stores each
// merged pair as a SQLite table.
func MZ2SQLite(ctx context.Context, env *Env) (Report, error) {
	const stage = "mz2sqlite"
	started := time.Now()
	ctx, logger := env.begin(ctx, stage)
	report := Report{Stage: stage, Column: MzMLIDTableColumn}

	candidates, err := env.inputs(logger, DownloadedColumn, ExtractedColumn)
	if err != nil {
		return report, err
	}
	paths := env.selectPaths(candidates, []string{"mzml", "mzid"})
	jobs := pairing.Plan(paths, "mzml", "mzid", pairing.Options{
		Tolerance: env.Config.Merge.PrefixTolerance,
		Suffix:    env.Config.Merge.Suffix,
	})
	report.Available = len(jobs)
	if len(jobs) == 0 {
		return report, services.Warn(stage, fmt.Sprintf("no mzML/mzID pairs among %d files", len(paths)))
	}
	logger.Debug("Planned merge jobs", logging.Int("jobs", len(jobs)))

	opts := formats.MergeOptions{
		MzMLKeys: env.Config.Merge.MzMLKeys,
		MzIDKeys: env.Config.Merge.MzIDKeys,
		Logger:   logger,
	}
	merge := func(ctx context.Context, job pairing.MergeJob) processing.Outcome[string] {
		if env.Config.Processing.SkipExisting && fileutil.FileExists(job.Target) {
			logger.Info("Skipping merge, target already exists", logging.String(logging.FieldFile, job.Target))
			return processing.Succeed(job.Target)
		}
		rows, err := formats.MergeFiles(ctx, job.A, job.B, job.Target, opts)
		if err != nil {
			return processing.Fail[string](err)
		}
		logger.Info("Merged files",
			logging.String(logging.FieldFile, job.Target),
			logging.String("sources", strings.Join([]string{filepath.Base(job.A), filepath.Base(job.B)}, " + ")),
			logging.Int("rows", rows))
		return processing.Succeed(job.Target)
	}

	result, err := processing.Process(ctx, processing.Present(jobs...), merge, env.processingOptions("merge", "file pair", logger))
	if err != nil {
		return report, err
	}
	links := make([]registry.Link, 0, len(result.Outcomes))
	for i, outcome := range result.Outcomes {
		if v, ok := outcome.Get(); ok {
			job := jobs[result.Positions[i]]
			links = append(links, registry.Link{Sources: []string{job.A, job.B}, Value: v})
		}
	}
	report.Successes = len(links)
	report.Keys = env.record(logger, MzMLIDTableColumn, links)
	finish(logger, report, started)
	return report, nil
}
