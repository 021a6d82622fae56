package server

import (
	"context"
	"net/http"
	"time"
)

// Scope is the state of one in-flight request. It is created per request
// and must not be shared between requests.
type Scope struct {
	// Request is the request being handled.
	Request *http.Request
	// Body is the request body snapshot; nil when there was no body.
	Body []byte
	// Start is when handling began.
	Start time.Time
}

type scopeKey struct{}

// WithScope returns a copy of ctx carrying s.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFromContext returns the scope stored in ctx.
func ScopeFromContext(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok && s != nil && s.Request != nil
}
