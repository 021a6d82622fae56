package audit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getmockd/reqaudit/pkg/entry"
	"github.com/getmockd/reqaudit/pkg/logging"
	"github.com/getmockd/reqaudit/pkg/meta"
	"github.com/getmockd/reqaudit/pkg/metrics"
	"github.com/getmockd/reqaudit/pkg/policy"
	"github.com/getmockd/reqaudit/pkg/sink"
)

// Logger builds audit entries for responses of type R and writes them to a
// sink.
type Logger[R any] struct {
	name     string
	adapter  Adapter[R]
	sink     sink.Sink
	exclude  policy.RequestFilter
	registry meta.Registry[R]
	log      *slog.Logger
	metrics  *metrics.Audit
}

// Option configures a Logger.
type Option[R any] func(*Logger[R])

// WithRequestFilter suppresses entries whose request f excludes. Several
// filters combine with policy.Any.
func WithRequestFilter[R any](f policy.RequestFilter) Option[R] {
	return func(l *Logger[R]) {
		l.exclude = policy.Any(l.exclude, f)
	}
}

// WithEnrichers registers meta enrichers at construction.
func WithEnrichers[R any](enrichers ...meta.Enricher[R]) Option[R] {
	return func(l *Logger[R]) {
		l.registry.Register(enrichers...)
	}
}

// WithLogger sets the logger used for the audit logger's own diagnostics.
func WithLogger[R any](log *slog.Logger) Option[R] {
	return func(l *Logger[R]) {
		if log != nil {
			l.log = log
		}
	}
}

// WithMetrics counts logged, suppressed and failed entries in m.
func WithMetrics[R any](m *metrics.Audit) Option[R] {
	return func(l *Logger[R]) {
		l.metrics = m
	}
}

// New creates a Logger. A nil sink discards entries.
func New[R any](name string, adapter Adapter[R], s sink.Sink, opts ...Option[R]) (*Logger[R], error) {
	if adapter == nil {
		return nil, &ConfigError{Field: "adapter", Message: "is required"}
	}
	if s == nil {
		s = sink.Nop{}
	}

	l := &Logger[R]{
		name:    name,
		adapter: adapter,
		sink:    s,
		exclude: policy.Never,
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With("component", "audit", "logger", name)
	return l, nil
}

// Name returns the logger name.
func (l *Logger[R]) Name() string {
	return l.name
}

// Register adds meta enrichers. It is safe to call while other goroutines
// are logging.
func (l *Logger[R]) Register(enrichers ...meta.Enricher[R]) {
	l.registry.Register(enrichers...)
}

// Adapter returns the adapter the logger builds entries with.
func (l *Logger[R]) Adapter() Adapter[R] {
	return l.adapter
}

// ExcludeRequest reports whether req is suppressed entirely.
func (l *Logger[R]) ExcludeRequest(req *http.Request) bool {
	return l.exclude(req)
}

// BuildEntry returns the entry for resp, or nil without error when the
// request is excluded.
func (l *Logger[R]) BuildEntry(ctx context.Context, resp R) (*entry.Entry, error) {
	req, err := l.adapter.GetRequest(ctx, resp)
	if err != nil {
		return nil, err
	}
	if l.exclude(req) {
		l.log.Debug("entry suppressed", "method", req.Method, "path", requestPath(req))
		return nil, nil
	}

	e := entry.Template()

	reqFields, err := l.adapter.BuildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	e.Request.Overlay(reqFields)

	respFields, err := l.adapter.BuildResponse(ctx, resp)
	if err != nil {
		return nil, err
	}
	e.Response.Overlay(respFields)

	if ex, ok := l.adapter.(meta.BodyExcluder[R]); ok && ex.ExcludesBody(ctx, resp) {
		ctx = meta.WithoutResponseBody(ctx)
	}
	e.Meta.Overlay(l.registry.Build(ctx, resp))
	return e, nil
}

// Log builds the entry for resp, encodes it and writes the string to the
// sink. logged is false when the request was excluded; in that case the
// sink is not called.
func (l *Logger[R]) Log(ctx context.Context, resp R) (logged bool, err error) {
	e, err := l.build(ctx, resp)
	if err != nil || e == nil {
		return false, err
	}
	encoded, err := e.Encode()
	if err != nil {
		l.metrics.Failed(l.name)
		return false, err
	}
	return l.write(ctx, encoded, len(encoded))
}

// LogStructured is like Log but hands the *entry.Entry itself to the sink.
func (l *Logger[R]) LogStructured(ctx context.Context, resp R) (logged bool, err error) {
	e, err := l.build(ctx, resp)
	if err != nil || e == nil {
		return false, err
	}
	return l.write(ctx, e, 0)
}

// build is BuildEntry with metrics.
func (l *Logger[R]) build(ctx context.Context, resp R) (*entry.Entry, error) {
	e, err := l.BuildEntry(ctx, resp)
	switch {
	case err != nil:
		l.metrics.Failed(l.name)
	case e == nil:
		l.metrics.Suppressed(l.name)
	}
	return e, err
}

func (l *Logger[R]) write(ctx context.Context, payload any, size int) (bool, error) {
	if err := l.sink.Info(ctx, payload); err != nil {
		l.metrics.Failed(l.name)
		return false, fmt.Errorf("audit: logger %q: failed to write entry: %w", l.name, err)
	}
	l.metrics.Logged(l.name, size)
	return true, nil
}

func requestPath(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	return req.URL.Path
}
