package logging

import (
	"context"
	"log/slog"
)

// fanoutHandler delivers each record to every handler whose level accepts it.
type fanoutHandler struct {
	handlers []slog.Handler
}

func newFanoutHandler(handlers ...slog.Handler) slog.Handler {
	filtered := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	switch len(filtered) {
	case 0:
		return NoopHandler{}
	case 1:
		return filtered[0]
	}
	return &fanoutHandler{handlers: filtered}
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.each(func(handler slog.Handler) slog.Handler { return handler.WithAttrs(attrs) })
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	return h.each(func(handler slog.Handler) slog.Handler { return handler.WithGroup(name) })
}

func (h *fanoutHandler) each(fn func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = fn(handler)
	}
	return &fanoutHandler{handlers: next}
}
