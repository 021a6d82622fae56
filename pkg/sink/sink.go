// Package sink delivers finished audit entries to their destination.
//
// A Sink receives either an encoded entry (a string) or a structured value
// (an *entry.Entry) and must be safe for concurrent use. Delivery errors are
// returned to the caller; sinks never retry.
package sink

import (
	"context"
	"io"
	"log/slog"

	"github.com/getmockd/reqaudit/pkg/logging"
)

// Sink is the destination of audit entries.
type Sink interface {
	// Info records one entry at informational level.
	Info(ctx context.Context, payload any) error
}

// Nop discards every entry. Use it when audit logging is disabled.
type Nop struct{}

// Info discards the entry. Always returns nil.
func (Nop) Info(context.Context, any) error { return nil }

// Slog writes entries through a named slog logger. Encoded entries become
// the record message; structured entries are attached as the "entry"
// attribute under a fixed message.
type Slog struct {
	name   string
	logger *slog.Logger
}

// StructuredMessage is the record message used for structured entries.
const StructuredMessage = "http exchange"

// NewSlog returns a sink that logs through logger, tagged with name.
// A nil logger discards everything.
func NewSlog(name string, logger *slog.Logger) *Slog {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Slog{
		name:   name,
		logger: logger.With("logger", name),
	}
}

// Name returns the logger name entries are tagged with.
func (s *Slog) Name() string {
	return s.name
}

// Info logs payload at info level.
func (s *Slog) Info(ctx context.Context, payload any) error {
	if msg, ok := payload.(string); ok {
		s.logger.InfoContext(ctx, msg)
		return nil
	}
	s.logger.InfoContext(ctx, StructuredMessage, slog.Any("entry", payload))
	return nil
}

// Close closes s if it holds resources.
func Close(s Sink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var (
	_ Sink = Nop{}
	_ Sink = (*Slog)(nil)
)
