package stages

import (
	"context"
	"fmt"
	"time"

	"mmproteo/internal/archives"
	"mmproteo/internal/filter"
	"mmproteo/internal/logging"
	"mmproteo/internal/pride"
	"mmproteo/internal/processing"
	"mmproteo/internal/registry"
	"mmproteo/internal/services"
)

// SelectProjectFiles narrows a project listing with the configured extension
// allow-list and the filter tree, sorted by file name. Archived variants of
// allowed extensions pass as well.
func (e *Env) SelectProjectFiles(files []pride.File) []pride.File {
	return filter.Select(files, filter.Selection{
		NameField:  pride.FileNameField,
		Extensions: e.Config.Processing.ValidExtensions,
		Optional:   archives.Extensions(),
		Node:       e.Filter,
		Unknown:    e.Config.Filter.UnknownMatches,
		Sort:       true,
		Dedupe:     true,
	})
}

// Download fetches the selected files of the configured project. The listing
// row of every downloaded file is added to the registry, keyed by file name,
// together with its local path.
func Download(ctx context.Context, env *Env) (Report, error) {
	const stage = "download"
	started := time.Now()
	ctx, logger := env.begin(ctx, stage)
	report := Report{Stage: stage, Column: DownloadedColumn}

	project := env.Config.Project.ID
	listing, err := env.Lister.ListFiles(ctx, project)
	if err != nil {
		return report, services.Wrap(services.ErrWarning, stage, "list files",
			fmt.Sprintf("no file listing for project %s", project), err)
	}
	files := env.SelectProjectFiles(listing)
	report.Available = len(files)
	if len(files) == 0 {
		return report, services.Warn(stage, fmt.Sprintf("none of the %d files of project %s passed the filters", len(listing), project))
	}

	links := make([]processing.Maybe[string], 0, len(files))
	for _, f := range files {
		if link := f.DownloadLink(); link != "" {
			links = append(links, processing.Some(link))
			continue
		}
		logger.Debug("File has no download link", logging.String(logging.FieldFile, f.Name()))
		links = append(links, processing.None[string]())
	}

	result, err := processing.Process(ctx, links, env.Fetcher.Fetch, env.processingOptions("download", "file", logger))
	if err != nil {
		return report, err
	}

	var rows []registry.Row
	var produced []registry.Link
	for i, outcome := range result.Outcomes {
		path, ok := outcome.Get()
		if !ok {
			continue
		}
		f := files[result.Positions[i]]
		rows = append(rows, registry.Row{Key: f.Name(), Values: f.Fields})
		produced = append(produced, registry.Link{Sources: []string{f.Name()}, Value: path})
	}
	if env.Registry != nil && len(rows) > 0 {
		if err := env.Registry.Append(rows...); err != nil {
			logging.WarnWithContext(logger, "Registry refused some listing values", "registry_conflict",
				logging.Error(err),
				logging.String(logging.FieldImpact, "earlier values were kept"))
		}
	}
	report.Successes = len(produced)
	report.Keys = env.record(logger, DownloadedColumn, produced)
	finish(logger, report, started)
	return report, nil
}
