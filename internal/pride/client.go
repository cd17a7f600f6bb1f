// Package pride lists the files of a PRIDE archive project and fetches its
// summary, trying the configured API versions in order.
package pride

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mmproteo/internal/config"
	"mmproteo/internal/logging"
	"mmproteo/internal/services"
)

// Lister is what the stages need from a project source.
type Lister interface {
	ListFiles(ctx context.Context, project string) ([]File, error)
	Summary(ctx context.Context, project string) (map[string]any, error)
}

// API version identifiers accepted in project.api_versions.
const (
	VersionV1    = "1"
	VersionV2    = "2"
	VersionIndex = "index"
)

const (
	v1FilesPath   = "/pride/ws/archive/file/list/project/"
	v1SummaryPath = "/pride/ws/archive/project/"
	v2FilesPath   = "/pride/ws/archive/v2/files/byProject"
	v2SummaryPath = "/pride/ws/archive/v2/projects/"
)

// Option configures the client.
type Option func(*Client)

// WithHTTPClient injects a custom HTTP client (primarily for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.baseURL = base
		}
	}
}

// WithIndexURL sets the directory index template used by the index source.
func WithIndexURL(template string) Option {
	return func(c *Client) { c.indexURL = strings.TrimSpace(template) }
}

func WithVersions(versions ...string) Option {
	return func(c *Client) {
		if len(versions) > 0 {
			c.versions = append([]string(nil), versions...)
		}
	}
}

// WithFTPRewrite controls whether ftp:// download links become https://.
func WithFTPRewrite(enabled bool) Option {
	return func(c *Client) { c.rewriteFTP = enabled }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the PRIDE archive web services.
type Client struct {
	http       *http.Client
	baseURL    string
	indexURL   string
	versions   []string
	rewriteFTP bool
	userAgent  string
	logger     *slog.Logger
}

// New constructs a client with the public PRIDE endpoints and API versions 2 then 1.
func New(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: time.Minute},
		baseURL:    config.DefaultBaseURL,
		versions:   append([]string(nil), config.DefaultAPIVersions...),
		rewriteFTP: true,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "pride")
	return c
}

// NewFromConfig builds a client from the project and download sections.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) *Client {
	base := []Option{
		WithBaseURL(cfg.Project.BaseURL),
		WithIndexURL(cfg.Project.IndexURL),
		WithVersions(cfg.Project.APIVersions...),
		WithFTPRewrite(cfg.Download.RewriteFTP),
		WithUserAgent(cfg.Download.UserAgent),
		WithLogger(logger),
	}
	return New(append(base, opts...)...)
}

// ListFiles returns the project's files from the first API version that
// answers successfully.
func (c *Client) ListFiles(ctx context.Context, project string) ([]File, error) {
	if strings.TrimSpace(project) == "" {
		return nil, services.Wrap(services.ErrValidation, "pride", "list files", "project id required", nil)
	}
	var errs []error
	for _, version := range c.versions {
		files, err := c.listVersion(ctx, version, project)
		if err == nil {
			for i := range files {
				c.normalizeLink(files[i])
			}
			c.logger.Info("Received project file list",
				logging.String("api_version", version),
				logging.String("project", project),
				logging.Int("files", len(files)))
			return files, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("Project file list request failed",
			logging.String("api_version", version),
			logging.String("project", project),
			logging.Error(err))
		errs = append(errs, fmt.Errorf("api version %s: %w", version, err))
	}
	return nil, services.Wrap(services.ErrNotFound, "pride", "list files",
		fmt.Sprintf("could not get list of files for project %q", project), errors.Join(errs...))
}

// Summary returns the project description from the first API version that
// answers successfully.
func (c *Client) Summary(ctx context.Context, project string) (map[string]any, error) {
	if strings.TrimSpace(project) == "" {
		return nil, services.Wrap(services.ErrValidation, "pride", "summary", "project id required", nil)
	}
	var errs []error
	for _, version := range c.versions {
		var endpoint string
		switch version {
		case VersionV1:
			endpoint = c.baseURL + v1SummaryPath + url.PathEscape(project)
		case VersionV2:
			endpoint = c.baseURL + v2SummaryPath + url.PathEscape(project)
		default:
			continue
		}
		var summary map[string]any
		err := c.getJSON(ctx, endpoint, &summary)
		if err == nil {
			c.logger.Info("Received project summary",
				logging.String("api_version", version),
				logging.String("project", project))
			return summary, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("api version %s: %w", version, err))
	}
	return nil, services.Wrap(services.ErrNotFound, "pride", "summary",
		fmt.Sprintf("could not get summary of project %q", project), errors.Join(errs...))
}

// FormatSummary renders a summary as indented JSON.
func FormatSummary(summary map[string]any) (string, error) {
	encoded, err := json.MarshalIndent(summary, "", "    ")
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (c *Client) listVersion(ctx context.Context, version, project string) ([]File, error) {
	switch version {
	case VersionV2:
		return c.listV2(ctx, project)
	case VersionV1:
		return c.listV1(ctx, project)
	case VersionIndex:
		return c.listIndex(ctx, project)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "pride", "list files",
			fmt.Sprintf("unknown api version %q", version), nil)
	}
}

func (c *Client) listV2(ctx context.Context, project string) ([]File, error) {
	endpoint := c.baseURL + v2FilesPath + "?accession=" + url.QueryEscape(project)
	var entries []map[string]any
	if err := c.getJSON(ctx, endpoint, &entries); err != nil {
		return nil, err
	}
	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if locations, ok := entry["publicFileLocations"].([]any); ok {
			delete(entry, "publicFileLocations")
			if location := firstTransferLocation(locations); location != nil {
				entry["publicFileLocation"] = location
			}
		}
		f := newFile(entry)
		if link, ok := f.Fields["publicFileLocation.value"]; ok {
			f.Fields[DownloadLinkField] = link
		}
		files = append(files, f)
	}
	return files, nil
}

func firstTransferLocation(locations []any) map[string]any {
	for _, raw := range locations {
		location, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		value, _ := location["value"].(string)
		lower := strings.ToLower(value)
		if strings.HasPrefix(lower, "ftp://") || strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			return location
		}
	}
	return nil
}

func (c *Client) listV1(ctx context.Context, project string) ([]File, error) {
	endpoint := c.baseURL + v1FilesPath + url.PathEscape(project)
	var payload struct {
		List []map[string]any `json:"list"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	if payload.List == nil {
		return nil, services.Wrap(services.ErrNotFound, "pride", "list files", "response has no file list", nil)
	}
	files := make([]File, 0, len(payload.List))
	for _, entry := range payload.List {
		files = append(files, newFile(entry))
	}
	return files, nil
}

// normalizeLink fills fileName from the link when missing and rewrites ftp
// links when enabled.
func (c *Client) normalizeLink(f File) {
	link := f.Fields[DownloadLinkField]
	if link == "" {
		return
	}
	if c.rewriteFTP && strings.HasPrefix(strings.ToLower(link), "ftp://") {
		link = "https://" + link[len("ftp://"):]
		f.Fields[DownloadLinkField] = link
	}
	if f.Fields[FileNameField] == "" {
		if idx := strings.LastIndex(link, "/"); idx >= 0 && idx < len(link)-1 {
			f.Fields[FileNameField] = link[idx+1:]
		}
	}
}

// statusError describes an unexpected HTTP answer.
type statusError struct {
	URL        string
	StatusCode int
	Detail     string
}

func (e *statusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Detail)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	c.logger.Info("Requesting", logging.String("url", endpoint))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "pride", "request", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "pride", "read response", endpoint, err)
	}
	c.logger.Debug("Received response",
		logging.String("url", endpoint),
		logging.Int("status", resp.StatusCode),
		logging.Int("bytes", len(body)))

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNoContent:
		return nil, services.Wrap(services.ErrNotFound, "pride", "request", "project does not exist",
			&statusError{URL: endpoint, StatusCode: resp.StatusCode})
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, services.Wrap(services.ErrConfiguration, "pride", "request", "unauthorized",
			&statusError{URL: endpoint, StatusCode: resp.StatusCode, Detail: unauthorizedDetail(body)})
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, services.Wrap(services.ErrTransient, "pride", "request", "server error",
			&statusError{URL: endpoint, StatusCode: resp.StatusCode})
	default:
		return nil, services.Wrap(services.ErrNotFound, "pride", "request", "unexpected response",
			&statusError{URL: endpoint, StatusCode: resp.StatusCode})
	}
}

func (c *Client) getJSON(ctx context.Context, endpoint string, into any) error {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(into); err != nil {
		return services.Wrap(services.ErrNotFound, "pride", "decode response", endpoint, err)
	}
	return nil
}

func unauthorizedDetail(body []byte) string {
	var payload struct {
		Message          string `json:"message"`
		DeveloperMessage string `json:"developerMessage"`
		MoreInfoURL      string `json:"moreInfoUrl"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	orUnknown := func(s string) string {
		if s == "" {
			return "?"
		}
		return s
	}
	return fmt.Sprintf("%s (%s) -> %s", orUnknown(payload.Message), orUnknown(payload.DeveloperMessage), orUnknown(payload.MoreInfoURL))
}
