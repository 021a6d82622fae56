package sink

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Multi fans entries out to several sinks. Every sink receives the entry
// even if an earlier one fails.
type Multi struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewMulti returns a Multi over the non-nil sinks.
func NewMulti(sinks ...Sink) *Multi {
	valid := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			valid = append(valid, s)
		}
	}
	return &Multi{sinks: valid}
}

// Info writes payload to every sink and joins their errors.
func (m *Multi) Info(ctx context.Context, payload any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for _, s := range m.sinks {
		if err := s.Info(ctx, payload); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &MultiError{Errors: errs}
	}
	return nil
}

// Add appends a sink. Safe to call concurrently with Info.
func (m *Multi) Add(s Sink) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sinks)
}

// Close closes every sink that holds resources.
func (m *Multi) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, s := range m.sinks {
		if err := Close(s); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &MultiError{Errors: errs}
	}
	return nil
}

// MultiError collects the errors of a fan-out.
type MultiError struct {
	Errors []error
}

// Error returns a string representation of all errors.
func (e *MultiError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var b strings.Builder
	b.WriteString("multiple errors:")
	for _, err := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying errors for use with errors.Is/As.
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// Is reports whether any collected error matches target.
func (e *MultiError) Is(target error) bool {
	for _, err := range e.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var _ Sink = (*Multi)(nil)
