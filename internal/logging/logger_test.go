package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mmproteo/internal/config"
	"mmproteo/internal/logging"
	"mmproteo/internal/services"
)

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer logger.Close()

	logging.NewComponentLogger(logger.Logger, "download").Info("fetched file", logging.String("file", "a b.raw"))

	line := buf.String()
	if !strings.Contains(line, " INFO download: fetched file") {
		t.Fatalf("unexpected console line %q", line)
	}
	if !strings.Contains(line, `file="a b.raw"`) {
		t.Fatalf("expected quoted field, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", line)
	}
}

func TestVerboseEnablesDebugWithSource(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "warn", Console: &buf, Verbose: true})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Logger.Debug("debug message")
	if !strings.Contains(buf.String(), "DEBUG debug message [logger_test.go:") {
		t.Fatalf("expected debug line with caller, got %q", buf.String())
	}
}

func TestJSONLoggerWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("json message", logging.String("k", "v"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json line %q: %v", buf.String(), err)
	}
	if record["msg"] != "json message" || record["k"] != "v" || record["level"] != "info" {
		t.Fatalf("unexpected record %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key in %v", record)
	}
}

func TestUnsupportedFormatFails(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLogFileRecordsDebugEvenWhenConsoleDoesNot(t *testing.T) {
	var console bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "nested", "run.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &console, LogFile: logPath})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("only in file")
	logger.Info("everywhere")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "only in file") || !strings.Contains(string(content), "everywhere") {
		t.Fatalf("unexpected log file content %q", content)
	}
	if strings.Contains(console.String(), "only in file") {
		t.Fatalf("debug line leaked to console: %q", console.String())
	}
}

func TestNewFromConfigUsesStorageDirLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StorageDir = t.TempDir()
	logger, err := logging.NewFromConfig(&cfg, false)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello")
	logger.Close()
	if _, err := os.Stat(filepath.Join(cfg.Paths.StorageDir, "mmproteo.log")); err != nil {
		t.Fatalf("expected log file in storage dir: %v", err)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithStage(context.Background(), "extract")
	ctx = services.WithRequestID(ctx, "run-xyz")

	logging.WithContext(ctx, logger.Logger).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if record[logging.FieldStage] != "extract" || record[logging.FieldCorrelationID] != "run-xyz" {
		t.Fatalf("missing context fields in %v", record)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger.Logger, "nothing to do", "stage_empty", logging.String(logging.FieldImpact, "skipped"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if record[logging.FieldEventType] != "stage_empty" || record[logging.FieldImpact] != "skipped" {
		t.Fatalf("unexpected warning fields %v", record)
	}
	if record[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error hint in %v", record)
	}
}
