package meta

import (
	"context"
	"net/http"
	"time"
)

// Source gives enrichers uniform access to an exchange, whichever side of
// the call produced the response. Both the client and the server adapters
// implement it.
type Source[R any] interface {
	// RequestHeader returns the headers of the request that produced resp,
	// or nil if the request cannot be resolved.
	RequestHeader(ctx context.Context, resp R) http.Header
	// RequestBody returns the request body snapshot, if any.
	RequestBody(ctx context.Context, resp R) []byte
	// ResponseHeader returns the response headers.
	ResponseHeader(resp R) http.Header
	// ResponseBody returns the response body without consuming it.
	ResponseBody(resp R) []byte
	// Elapsed returns the time since the request started, if it was recorded.
	Elapsed(ctx context.Context, resp R) (time.Duration, bool)
}

// BodyExcluder is implemented by sources whose rules can leave a response
// body out of the entry. Enrichers that read the response body honor it.
type BodyExcluder[R any] interface {
	ExcludesBody(ctx context.Context, resp R) bool
}

type bodyExcludedKey struct{}

// WithoutResponseBody marks ctx so that enrichers do not read the response
// body. The audit logger sets it when the entry leaves the body out.
func WithoutResponseBody(ctx context.Context) context.Context {
	return context.WithValue(ctx, bodyExcludedKey{}, true)
}

// ResponseBodyExcluded reports whether ctx was marked by WithoutResponseBody.
func ResponseBodyExcluded(ctx context.Context) bool {
	v, _ := ctx.Value(bodyExcludedKey{}).(bool)
	return v
}

func bodyExcluded[R any](ctx context.Context, src Source[R], resp R) bool {
	if ResponseBodyExcluded(ctx) {
		return true
	}
	ex, ok := src.(BodyExcluder[R])
	return ok && ex.ExcludesBody(ctx, resp)
}
