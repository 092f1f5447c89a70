package logger

import (
	"context"
	"errors"
	"log/slog"
)

// fanout hands every record to each sink that accepts its level. A failing
// sink does not stop the others.
type fanout struct {
	sinks []slog.Handler
}

// Multi combines loggers into one. "vellum serve --log-file" uses it to keep
// console output on stdout while a JSON copy goes to the file. Nil loggers
// are skipped, and a single logger is returned as is.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	sinks := make([]slog.Handler, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			sinks = append(sinks, l.Handler())
		}
	}
	switch len(sinks) {
	case 0:
		return Nop()
	case 1:
		return slog.New(sinks[0])
	}
	return slog.New(&fanout{sinks: sinks})
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.sinks {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.sinks {
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
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *fanout) WithGroup(name string) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *fanout) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	sinks := make([]slog.Handler, len(f.sinks))
	for i, h := range f.sinks {
		sinks[i] = fn(h)
	}
	return &fanout{sinks: sinks}
}
