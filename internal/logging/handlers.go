package logging

import (
	"context"
	"errors"
	"log/slog"
)

type fanout struct {
	handlers []slog.Handler
}

// Fanout returns a handler that passes each record to every enabled handler.
// A failing handler does not prevent delivery to the others.
func Fanout(handlers ...slog.Handler) slog.Handler {
	return &fanout{handlers: handlers}
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *fanout) each(fn func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = fn(h)
	}
	return &fanout{handlers: next}
}

type minLevel struct {
	next  slog.Handler
	level slog.Level
}

// MinLevel drops records below level before they reach next.
func MinLevel(next slog.Handler, level slog.Level) slog.Handler {
	return &minLevel{next: next, level: level}
}

func (m *minLevel) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= m.level && m.next.Enabled(ctx, level)
}

func (m *minLevel) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < m.level {
		return nil
	}
	return m.next.Handle(ctx, r)
}

func (m *minLevel) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &minLevel{next: m.next.WithAttrs(attrs), level: m.level}
}

func (m *minLevel) WithGroup(name string) slog.Handler {
	return &minLevel{next: m.next.WithGroup(name), level: m.level}
}
