// Package thermo converts Thermo raw files with ThermoRawFileParser running
// inside a long-lived Docker container.
package thermo

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mmproteo/internal/config"
	"mmproteo/internal/fileutil"
	"mmproteo/internal/logging"
	"mmproteo/internal/processing"
	"mmproteo/internal/services"
)

// RawExtension is the only input extension the parser accepts.
const RawExtension = "raw"

// containerDataDir is where the storage directory is mounted.
const containerDataDir = "/data"

var outputExtensions = map[string]string{
	"mgf":     "mgf",
	"mzml":    "mzML",
	"imzml":   "imzML",
	"parquet": "parquet",
}

// Option configures the converter.
type Option func(*Converter)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(c *Converter) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithPollInterval sets the wait between container state checks after start.
func WithPollInterval(d time.Duration) Option {
	return func(c *Converter) { c.pollInterval = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Converter manages the container and runs conversions in it.
type Converter struct {
	exec          services.Executor
	docker        string
	image         string
	container     string
	storageDir    string
	format        string
	formatID      int
	skipExisting  bool
	keepRunning   bool
	pollInterval  time.Duration
	startAttempts int
	logger        *slog.Logger
}

// New constructs a converter from the thermo section of cfg.
func New(cfg *config.Config, opts ...Option) (*Converter, error) {
	format := strings.ToLower(strings.TrimSpace(cfg.Thermo.OutputFormat))
	id, ok := config.ThermoOutputFormats[format]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "thermo", "output format",
			fmt.Sprintf("unsupported output format %q", cfg.Thermo.OutputFormat), nil)
	}
	storage, err := filepath.Abs(cfg.Paths.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	c := &Converter{
		exec:          services.CommandExecutor{},
		docker:        cfg.DockerBinary(),
		image:         cfg.Thermo.Image,
		container:     cfg.Thermo.ContainerName,
		storageDir:    storage,
		format:        format,
		formatID:      id,
		skipExisting:  cfg.Processing.SkipExisting,
		keepRunning:   cfg.Thermo.KeepContainerRunning,
		pollInterval:  time.Second,
		startAttempts: 5,
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "thermo")
	return c, nil
}

// KeepRunning reports whether the container should outlive the stage.
func (c *Converter) KeepRunning() bool {
	return c.keepRunning
}

// OutputPath returns the file the parser writes for a raw input.
func (c *Converter) OutputPath(rawPath string) (string, bool) {
	base, ext := fileutil.SplitExtension(filepath.Base(rawPath), []string{RawExtension})
	if ext == "" {
		return "", false
	}
	return filepath.Join(filepath.Dir(rawPath), base+"."+outputExtensions[c.format]), true
}

// Running reports whether the named container is up.
func (c *Converter) Running(ctx context.Context) (bool, error) {
	var names []string
	args := []string{"ps", "--filter", "name=^/" + c.container + "$", "--format", "{{.Names}}"}
	if err := c.exec.Run(ctx, c.docker, args, func(line string) {
		names = append(names, strings.TrimSpace(line))
	}); err != nil {
		return false, services.Wrap(services.ErrExternalTool, "thermo", "docker ps", "query container state", err)
	}
	for _, name := range names {
		if name == c.container {
			return true, nil
		}
	}
	return false, nil
}

// Start launches the container unless it is already running, then waits
// until docker reports it as running.
func (c *Converter) Start(ctx context.Context) error {
	running, err := c.Running(ctx)
	if err != nil {
		return err
	}
	if running {
		c.logger.Info("Converter container is already running", logging.String("container", c.container))
		return nil
	}
	args := []string{
		"run", "--rm",
		"-w", containerDataDir,
		"-v", c.storageDir + ":" + containerDataDir,
		"--name", c.container,
		"-d", c.image,
		"tail", "-f", "/dev/null",
	}
	c.logger.Debug("Starting converter container", logging.String("command", c.docker+" "+strings.Join(args, " ")))
	if err := c.exec.Run(ctx, c.docker, args, nil); err != nil {
		return services.Wrap(services.ErrExternalTool, "thermo", "docker run", "failed to start converter container", err)
	}
	for attempt := 0; attempt < c.startAttempts; attempt++ {
		if running, err = c.Running(ctx); err != nil {
			return err
		}
		if running {
			c.logger.Info("Started converter container", logging.String("container", c.container), logging.String("image", c.image))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return services.Wrap(services.ErrExternalTool, "thermo", "docker run",
		fmt.Sprintf("container %s does not seem to be running", c.container), nil)
}

// Stop stops the container when it is running.
func (c *Converter) Stop(ctx context.Context) error {
	running, err := c.Running(ctx)
	if err != nil {
		return err
	}
	if !running {
		c.logger.Info("Converter container is already stopped", logging.String("container", c.container))
		return nil
	}
	if err := c.exec.Run(ctx, c.docker, []string{"stop", c.container}, nil); err != nil {
		return services.Wrap(services.ErrExternalTool, "thermo", "docker stop", "failed to stop converter container", err)
	}
	c.logger.Info("Stopped converter container", logging.String("container", c.container))
	return nil
}

// Convert runs the parser on one raw file. Files without the raw extension
// yield a null outcome.
func (c *Converter) Convert(ctx context.Context, rawPath string) processing.Outcome[string] {
	target, ok := c.OutputPath(rawPath)
	if !ok {
		c.logger.Debug("Cannot convert file with unknown extension", logging.String(logging.FieldFile, rawPath))
		return processing.Skip[string]()
	}
	if c.skipExisting && fileutil.FileExists(target) {
		c.logger.Info("Skipping conversion, target already exists", logging.String(logging.FieldFile, target))
		return processing.Succeed(target)
	}

	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return processing.Fail[string](err)
	}
	rel, err := filepath.Rel(c.storageDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return processing.Fail[string](services.Wrap(services.ErrValidation, "thermo", "convert",
			fmt.Sprintf("%s is outside the storage directory %s", rawPath, c.storageDir), err))
	}
	input := path.Join(containerDataDir, filepath.ToSlash(rel))
	args := []string{"exec", c.container, "ThermoRawFileParser", "-f", strconv.Itoa(c.formatID), "-i", input}
	c.logger.Debug("Converting file", logging.String("command", c.docker+" "+strings.Join(args, " ")))

	var lastLine string
	if err := c.exec.Run(ctx, c.docker, args, func(line string) {
		if line = strings.TrimSpace(line); line != "" {
			lastLine = line
		}
	}); err != nil {
		detail := fmt.Sprintf("convert %s (exit code %d)", filepath.Base(rawPath), services.ExitCode(err))
		if lastLine != "" {
			detail += ": " + lastLine
		}
		return processing.Fail[string](services.Wrap(services.ErrExternalTool, "thermo", "ThermoRawFileParser", detail, err))
	}
	if !fileutil.FileExists(target) {
		return processing.Fail[string](services.Wrap(services.ErrExternalTool, "thermo", "ThermoRawFileParser",
			fmt.Sprintf("%s was not produced", filepath.Base(target)), nil))
	}
	c.logger.Info("Converted file", logging.String(logging.FieldFile, target))
	return processing.Succeed(target)
}
