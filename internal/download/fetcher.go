// Package download fetches single files over HTTP into the storage directory.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"mmproteo/internal/archives"
	"mmproteo/internal/config"
	"mmproteo/internal/fileutil"
	"mmproteo/internal/logging"
	"mmproteo/internal/processing"
	"mmproteo/internal/services"
)

// Option configures the fetcher.
type Option func(*Fetcher)

// WithHTTPClient injects a custom HTTP client (primarily for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) {
		if hc != nil {
			f.http = hc
		}
	}
}

func WithSkipExisting(skip bool) Option {
	return func(f *Fetcher) { f.skipExisting = skip }
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Fetcher downloads URLs into a directory.
type Fetcher struct {
	dir          string
	http         *http.Client
	skipExisting bool
	userAgent    string
	logger       *slog.Logger
}

func New(dir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		dir:          dir,
		http:         &http.Client{},
		skipExisting: true,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.NewComponentLogger(f.logger, "download")
	return f
}

// NewFromConfig builds a fetcher writing into the storage directory.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) *Fetcher {
	base := []Option{
		WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Download.TimeoutSeconds) * time.Second}),
		WithSkipExisting(cfg.Processing.SkipExisting),
		WithUserAgent(cfg.Download.UserAgent),
		WithLogger(logger),
	}
	return New(cfg.Paths.StorageDir, append(base, opts...)...)
}

// FileName returns the last path segment of rawURL, unescaped.
func FileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	if idx := strings.LastIndex(rawURL, "/"); idx >= 0 {
		return rawURL[idx+1:]
	}
	return rawURL
}

// Fetch downloads rawURL. With skip-existing, a file that is already present
// either as downloaded or as its extracted counterpart yields a null outcome.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) processing.Outcome[string] {
	name := FileName(rawURL)
	if name == "" || name == "." || name == "/" {
		return processing.Fail[string](services.Wrap(services.ErrValidation, "download", "fetch",
			fmt.Sprintf("cannot derive a file name from %q", rawURL), nil))
	}
	target := filepath.Join(f.dir, name)

	if f.skipExisting {
		if fileutil.FileExists(target) {
			f.logger.Info("Skipped download, file already exists", logging.String(logging.FieldFile, target))
			return processing.Skip[string]()
		}
		if extracted, ext := archives.Target(target); ext != "" && fileutil.FileExists(extracted) {
			f.logger.Info("Skipped download, extracted file already exists", logging.String(logging.FieldFile, extracted))
			return processing.Skip[string]()
		}
	}

	f.logger.Info("Downloading file", logging.String("url", rawURL))
	start := time.Now()
	var written int64
	err := fileutil.WriteAtomic(target, func(w io.Writer) error {
		n, err := f.copyTo(ctx, rawURL, w)
		written = n
		return err
	})
	if err != nil {
		f.logger.Warn("Download failed",
			logging.String("url", rawURL),
			logging.Error(err))
		return processing.Fail[string](err)
	}

	elapsed := time.Since(start)
	rate := "n/a"
	if secs := elapsed.Seconds(); secs > 0 {
		rate = humanize.Bytes(uint64(float64(written)/secs)) + "/s"
	}
	f.logger.Info("Downloaded file",
		logging.String(logging.FieldFile, target),
		logging.String("size", humanize.Bytes(uint64(written))),
		logging.String("rate", rate),
		logging.Duration("elapsed", elapsed.Round(time.Millisecond)))
	return processing.Succeed(target)
}

func (f *Fetcher) copyTo(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "download", "request", rawURL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "download", "request", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		marker := services.ErrNotFound
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			marker = services.ErrTransient
		}
		return 0, services.Wrap(marker, "download", "request", fmt.Sprintf("HTTP %d from %s", resp.StatusCode, rawURL), nil)
	}
	if resp.ContentLength > 0 {
		f.logger.Debug("Receiving file", logging.String("size", humanize.Bytes(uint64(resp.ContentLength))))
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, services.Wrap(services.ErrTransient, "download", "read body", rawURL, err)
	}
	return n, nil
}
