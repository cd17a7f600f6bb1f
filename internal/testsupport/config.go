// Package testsupport builds configurations and fixtures for tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mmproteo/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose storage directory is a fresh temp
// directory. File logging is disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StorageDir = filepath.Join(base, "storage")
	cfgVal.Paths.LogFile = ""
	cfgVal.Project.ID = "PXD000001"
	if err := os.MkdirAll(cfgVal.Paths.StorageDir, 0o755); err != nil {
		t.Fatalf("mkdir storage dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithProject overrides the project accession.
func WithProject(id string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Project.ID = id
	}
}

// WithBaseURL points the PRIDE client at a test server.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Project.BaseURL = url
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, docker, gunzip and unzip are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"docker", "gunzip", "unzip"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StorageDir)
}

// WriteConfig encodes cfg as TOML at path.
func WriteConfig(t testing.TB, path string, cfg *config.Config) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create config: %v", err)
	}
	defer f.Close()
	if err := cfg.Encode(f); err != nil {
		t.Fatalf("encode config: %v", err)
	}
}
