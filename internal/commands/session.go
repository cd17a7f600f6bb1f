package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"mmproteo/internal/archives"
	"mmproteo/internal/config"
	"mmproteo/internal/download"
	"mmproteo/internal/filter"
	"mmproteo/internal/logging"
	"mmproteo/internal/pride"
	"mmproteo/internal/registry"
	"mmproteo/internal/services"
	"mmproteo/internal/stages"
	"mmproteo/internal/thermo"
)

// Session is the state shared by the commands of one invocation.
type Session struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *registry.Registry
	Filter   filter.Node
	// Lister caches project listings so that list and download share one request.
	Lister    *pride.Cache
	Fetcher   stages.Fetcher
	Extractor stages.Extractor
	// Converter is created by convertraw validation unless injected.
	Converter stages.Converter
	Out       io.Writer
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithOutput redirects previews and printed results.
func WithOutput(w io.Writer) SessionOption {
	return func(s *Session) {
		if w != nil {
			s.Out = w
		}
	}
}

// WithLister replaces the PRIDE client.
func WithLister(l pride.Lister) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.Lister = pride.NewCache(l)
		}
	}
}

func WithFetcher(f stages.Fetcher) SessionOption {
	return func(s *Session) { s.Fetcher = f }
}

func WithExtractor(e stages.Extractor) SessionOption {
	return func(s *Session) { s.Extractor = e }
}

func WithConverter(c stages.Converter) SessionOption {
	return func(s *Session) { s.Converter = c }
}

// NewSession parses the configured filters and wires the collaborators
// described by cfg.
func NewSession(cfg *config.Config, logger *slog.Logger, opts ...SessionOption) (*Session, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	parser, err := filter.NewParser(cfg.Filter.OrSeparator, cfg.Filter.Comparator)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "filter", "invalid comparator", err)
	}
	node, err := parser.ParseAll(cfg.Processing.Filters)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "", "filter", fmt.Sprintf("cannot parse %q", cfg.Processing.Filters), err)
	}

	s := &Session{
		Config:    cfg,
		Logger:    logger,
		Registry:  registry.New(),
		Filter:    node,
		Lister:    pride.NewCache(pride.NewFromConfig(cfg, logger)),
		Fetcher:   download.NewFromConfig(cfg, logger),
		Extractor: archives.NewFromConfig(cfg, logger),
		Out:       os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Env exposes the session to the stages.
func (s *Session) Env() *stages.Env {
	return &stages.Env{
		Config:    s.Config,
		Logger:    s.Logger,
		Registry:  s.Registry,
		Filter:    s.Filter,
		Lister:    s.Lister,
		Fetcher:   s.Fetcher,
		Extractor: s.Extractor,
		Converter: s.Converter,
	}
}

func (s *Session) ensureConverter() error {
	if s.Converter != nil {
		return nil
	}
	conv, err := thermo.New(s.Config, thermo.WithLogger(s.Logger))
	if err != nil {
		return err
	}
	s.Converter = conv
	return nil
}
