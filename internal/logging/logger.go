package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"mmproteo/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Console receives the user-facing stream. Defaults to os.Stderr.
	Console io.Writer
	// LogFile additionally records every message, debug included. Empty disables it.
	LogFile string
	// Verbose forces debug level on the console.
	Verbose bool
}

// Logger bundles the slog logger with the resources it holds open.
type Logger struct {
	*slog.Logger
	closers []io.Closer
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var firstErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.closers = nil
	return firstErr
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*Logger, error) {
	level := parseLevel(opts.Level)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	consoleHandler, err := newHandler(format, console, level)
	if err != nil {
		return nil, err
	}

	result := &Logger{}
	handlers := []slog.Handler{consoleHandler}
	if path := strings.TrimSpace(opts.LogFile); path != "" {
		file, err := openLogFile(path)
		if err != nil {
			return nil, err
		}
		fileHandler, err := newHandler(format, file, slog.LevelDebug)
		if err != nil {
			file.Close()
			return nil, err
		}
		handlers = append(handlers, fileHandler)
		result.closers = append(result.closers, file)
	}

	result.Logger = slog.New(newFanoutHandler(handlers...))
	return result, nil
}

// NewFromConfig creates a logger using application config values.
func NewFromConfig(cfg *config.Config, verbose bool) (*Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console", Verbose: verbose})
	}
	return New(Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		LogFile: cfg.LogFilePath(),
		Verbose: verbose,
	})
}

func newHandler(format string, w io.Writer, level slog.Level) (slog.Handler, error) {
	addSource := level <= slog.LevelDebug
	switch format {
	case "json":
		return newJSONHandler(w, level, addSource), nil
	case "console":
		return newPrettyHandler(w, level, addSource), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", format)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}

func newJSONHandler(w io.Writer, level slog.Level, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	}
	return slog.NewJSONHandler(w, &opts)
}

// prettyHandler renders "ts LEVEL component: msg k=v" lines.
type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     slog.Level
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, level slog.Level, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: level, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})

	var component string
	filtered := kvs[:0]
	for _, entry := range kvs {
		if entry.key == FieldComponent {
			if component == "" {
				component = entry.value.String()
			}
			continue
		}
		filtered = append(filtered, entry)
	}
	kvs = filtered

	var buf bytes.Buffer
	buf.Grow(128 + len(kvs)*24)
	buf.WriteString(timestamp.UTC().Format(time.RFC3339))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	buf.WriteByte(' ')
	if component != "" {
		buf.WriteString(component)
		buf.WriteString(": ")
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		buf.WriteString(msg)
	} else {
		buf.WriteString("(no message)")
	}
	if h.addSource {
		if record.PC != 0 {
			src, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
			buf.WriteString(" [")
			buf.WriteString(filepath.Base(src.File))
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(src.Line))
			buf.WriteByte(']')
		}
	}
	for _, entry := range kvs {
		if entry.key == "" {
			continue
		}
		buf.WriteByte(' ')
		buf.WriteString(entry.key)
		buf.WriteByte('=')
		buf.WriteString(formatValue(entry.value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	return &prettyHandler{
		mu:        h.mu,
		writer:    h.writer,
		level:     h.level,
		addSource: h.addSource,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
	}
}

type kv struct {
	key   string
	value slog.Value
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append([]string(nil), prefix...), attr.Key)
		}
		flattenAttrs(dst, next, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(append(append([]string(nil), prefix...), key), ".")
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return true
		}
	}
	return false
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
