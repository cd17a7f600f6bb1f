package commands

import (
	"context"
	"fmt"
	"strings"

	"mmproteo/internal/archives"
	"mmproteo/internal/config"
	"mmproteo/internal/logging"
	"mmproteo/internal/preflight"
	"mmproteo/internal/pride"
	"mmproteo/internal/services"
	"mmproteo/internal/stages"
)

// Builtins returns every command the CLI offers.
func Builtins() []Command {
	return []Command{
		infoCommand{},
		listCommand{},
		downloadCommand{},
		stageCommand{
			name:        "extract",
			description: "extract all downloaded archive files or, if none were downloaded, those in the storage directory. Supported archive formats: " + strings.Join(archives.Extensions(), ", "),
			run:         stages.Extract,
			needs:       preflight.Needs{Archives: true},
		},
		stageCommand{
			name:        "convertraw",
			description: "convert all downloaded or extracted raw files or, if none were processed, the raw files in the storage directory with ThermoRawFileParser. Requires Docker.",
			run:         stages.ConvertRaw,
			needs:       preflight.Needs{Docker: true},
			validate:    func(s *Session) error { return s.ensureConverter() },
		},
		stageCommand{
			name:        "mgf2sqlite",
			description: "store all downloaded, extracted or converted mgf files or, if none were processed, the mgf files in the storage directory as SQLite tables",
			run:         stages.MGF2SQLite,
		},
		stageCommand{
			name:        "mz2sqlite",
			description: "merge pairs of downloaded or extracted mzML and mzID files or, if none were processed, those in the storage directory into SQLite tables",
			run:         stages.MZ2SQLite,
		},
		clearCacheCommand{},
		showConfigCommand{},
	}
}

func requireProject(cfg *config.Config) error {
	if err := cfg.RequireProject(); err != nil {
		return services.Wrap(services.ErrValidation, "", "project", "", err)
	}
	return nil
}

type infoCommand struct{}

func (infoCommand) Name() string { return "info" }

func (infoCommand) Description() string {
	return "request project information for the configured project"
}

func (infoCommand) Needs() preflight.Needs { return preflight.Needs{Network: true} }

func (infoCommand) Validate(s *Session) error { return requireProject(s.Config) }

func (infoCommand) Run(ctx context.Context, s *Session) error {
	summary, err := s.Lister.Summary(ctx, s.Config.Project.ID)
	if err != nil {
		return services.Wrap(services.ErrWarning, "info", "summary", "no project information", err)
	}
	text, err := pride.FormatSummary(summary)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.Out, text)
	return err
}

type listCommand struct{}

func (listCommand) Name() string { return "list" }

func (listCommand) Description() string {
	return "list files and their attributes in the configured project"
}

func (listCommand) Needs() preflight.Needs { return preflight.Needs{Network: true} }

func (listCommand) Validate(s *Session) error { return requireProject(s.Config) }

func (listCommand) Run(ctx context.Context, s *Session) error {
	files, err := s.Lister.ListFiles(ctx, s.Config.Project.ID)
	if err != nil {
		return services.Wrap(services.ErrWarning, "list", "list files", "no file listing", err)
	}
	selected := s.Env().SelectProjectFiles(files)
	if len(selected) == 0 {
		return services.Warn("list", fmt.Sprintf("none of the %d files passed the filters", len(files)))
	}
	if limit := s.Config.Processing.MaxItems; limit > 0 && len(selected) > limit {
		selected = selected[:limit]
	}
	t := pride.Table(selected).Project(s.previewColumns())
	return renderTable(s.Out, t, s.escapedColumns())
}

type downloadCommand struct{}

func (downloadCommand) Name() string { return "download" }

func (downloadCommand) Description() string {
	return "download files of the configured project"
}

func (downloadCommand) Needs() preflight.Needs {
	return preflight.Needs{Network: true}
}

func (downloadCommand) Validate(s *Session) error {
	if err := requireProject(s.Config); err != nil {
		return err
	}
	p := s.Config.Processing
	if n := len(p.ValidExtensions); n > 0 && p.MaxItems%n != 0 {
		s.Logger.Info("max_items should be a multiple of the number of valid extensions so that files belonging together are downloaded together",
			logging.Int("max_items", p.MaxItems),
			logging.Strings("valid_extensions", p.ValidExtensions))
	}
	return nil
}

func (downloadCommand) Run(ctx context.Context, s *Session) error {
	report, err := stages.Download(ctx, s.Env())
	if err != nil {
		return err
	}
	return s.previewRows(report.Keys, stages.DownloadedColumn)
}

// stageCommand runs a local stage and previews the rows it wrote.
type stageCommand struct {
	name        string
	description string
	run         func(context.Context, *stages.Env) (stages.Report, error)
	validate    func(*Session) error
	needs       preflight.Needs
}

func (c stageCommand) Name() string { return c.name }

func (c stageCommand) Description() string { return c.description }

func (c stageCommand) Needs() preflight.Needs { return c.needs }

func (c stageCommand) Validate(s *Session) error {
	if c.validate == nil {
		return nil
	}
	return c.validate(s)
}

func (c stageCommand) Run(ctx context.Context, s *Session) error {
	report, err := c.run(ctx, s.Env())
	if err != nil {
		return err
	}
	return s.previewRows(report.Keys, report.Column)
}

type clearCacheCommand struct{}

func (clearCacheCommand) Name() string { return "clearcache" }

func (clearCacheCommand) Description() string {
	return "forget the files processed by the previous commands so that the next command scans the storage directory again"
}

func (clearCacheCommand) Validate(*Session) error { return nil }

func (clearCacheCommand) Run(_ context.Context, s *Session) error {
	s.Registry.Clear()
	s.Lister.Forget()
	s.Logger.Info("Cleared processed files")
	return nil
}

type showConfigCommand struct{}

func (showConfigCommand) Name() string { return "showconfig" }

func (showConfigCommand) Description() string {
	return "print the effective configuration of this run"
}

func (showConfigCommand) Validate(*Session) error { return nil }

func (showConfigCommand) Run(_ context.Context, s *Session) error {
	return s.Config.Encode(s.Out)
}
