package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mmproteo/internal/commands"
	"mmproteo/internal/config"
	"mmproteo/internal/logging"
	"mmproteo/internal/preflight"
	"mmproteo/internal/services"
)

// lockFileName guards a storage directory against concurrent runs.
const lockFileName = ".mmproteo.lock"

func newRunCommand(configFlag *string, verbose *bool) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run COMMAND...",
		Short: "Run one or more commands in order",
		Long: "Run one or more commands in order. Each command works on the files\n" +
			"processed by the previous ones, or on the storage directory when none were.\n\n" +
			commands.Default().Describe(),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(strings.TrimSpace(*configFlag), flags, cmd)
			if err != nil {
				return err
			}
			return runCommands(cmd, cfg, args, *verbose, flags.skipPreflight)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func loadRunConfig(path string, flags *runFlags, cmd *cobra.Command) (*config.Config, error) {
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "load config", "", err)
	}
	flags.apply(cmd.Flags(), cfg)
	if err := cfg.Normalize(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "normalize config", "", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "validate config", "", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCommands(cmd *cobra.Command, cfg *config.Config, names []string, verbose, skipPreflight bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = services.WithRequestID(ctx, uuid.NewString())

	logHandle, err := logging.NewFromConfig(cfg, verbose)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logHandle.Close()
	logger := logging.WithContext(ctx, logHandle.Logger)

	dispatcher := commands.Default()
	cmds, err := dispatcher.Resolve(names)
	if err != nil {
		return err
	}

	lock := flock.New(filepath.Join(cfg.Paths.StorageDir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another mmproteo run is using %s", cfg.Paths.StorageDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release storage lock", logging.Error(err))
		}
	}()

	if !skipPreflight {
		if err := runPreflight(ctx, cfg, commands.Needs(cmds), logger); err != nil {
			return err
		}
	}

	session, err := commands.NewSession(cfg, logger, commands.WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	logger.Info("mmproteo run started",
		logging.Strings("commands", names),
		logging.String("storage_dir", cfg.Paths.StorageDir))
	if err := dispatcher.Dispatch(ctx, session, names); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("run interrupted")
		}
		return err
	}
	logger.Info("mmproteo run finished")
	return nil
}

func runPreflight(ctx context.Context, cfg *config.Config, needs preflight.Needs, logger *slog.Logger) error {
	results := preflight.RunAll(ctx, cfg, needs)
	for _, r := range results {
		logger.Debug("preflight check", logging.String("check", r.Name), logging.Bool("passed", r.Passed), logging.String("detail", r.Detail))
	}
	failed := preflight.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	details := make([]string, 0, len(failed))
	for _, r := range failed {
		logger.Error("preflight check failed", logging.String("check", r.Name), logging.String("detail", r.Detail))
		details = append(details, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "", "preflight", strings.Join(details, "; "), nil)
}
