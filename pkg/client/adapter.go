package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getmockd/reqaudit/pkg/audit"
	"github.com/getmockd/reqaudit/pkg/entry"
	"github.com/getmockd/reqaudit/pkg/httputil"
	"github.com/getmockd/reqaudit/pkg/mask"
	"github.com/getmockd/reqaudit/pkg/meta"
)

// ErrMissingRequest is returned for a response that does not carry the
// request that produced it.
var ErrMissingRequest = fmt.Errorf("client: response carries no request: %w", audit.ErrMissingRequestContext)

// Adapter extracts entry fields from an *http.Response and its Request.
type Adapter struct {
	// Mask redacts the request payload.
	Mask mask.Config

	// ExcludeBody, when set and returning true, leaves the response body out
	// of the entry. By default every body is logged.
	ExcludeBody func(resp *http.Response) bool
}

// GetRequest returns resp.Request.
func (a Adapter) GetRequest(_ context.Context, resp *http.Response) (*http.Request, error) {
	if resp == nil || resp.Request == nil {
		return nil, ErrMissingRequest
	}
	return resp.Request, nil
}

// BuildRequest returns the URL, method, headers and masked payload of req.
// The body is read through req.GetBody so it is not consumed.
func (a Adapter) BuildRequest(_ context.Context, req *http.Request) (entry.Request, error) {
	body, err := httputil.ReadRequestBody(req)
	if err != nil {
		return entry.Request{}, err
	}
	return audit.RequestFields(req.URL.String(), req, body, a.Mask)
}

// BuildResponse returns the status line, headers and, unless excluded, the
// body as text. The body is restored on resp so callers can still read it.
func (a Adapter) BuildResponse(ctx context.Context, resp *http.Response) (entry.Response, error) {
	out := entry.Response{
		Status:  entry.String(httputil.ResponseStatus(resp)),
		Headers: entry.HeadersFrom(resp.Header),
	}
	if a.ExcludesBody(ctx, resp) {
		return out, nil
	}

	body, err := httputil.ReadResponseBody(resp)
	if err != nil {
		return entry.Response{}, err
	}
	data, err := audit.ResponseData(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return entry.Response{}, err
	}
	out.Data = data
	return out, nil
}

// ExcludesBody reports whether ExcludeBody leaves the body of resp out.
func (a Adapter) ExcludesBody(_ context.Context, resp *http.Response) bool {
	return a.ExcludeBody != nil && a.ExcludeBody(resp)
}

// RequestHeader returns the headers of resp.Request.
func (a Adapter) RequestHeader(_ context.Context, resp *http.Response) http.Header {
	if resp == nil || resp.Request == nil {
		return nil
	}
	return resp.Request.Header
}

// RequestBody returns the request body snapshot.
func (a Adapter) RequestBody(_ context.Context, resp *http.Response) []byte {
	if resp == nil || resp.Request == nil {
		return nil
	}
	body, _ := httputil.ReadRequestBody(resp.Request)
	return body
}

// ResponseHeader returns resp.Header.
func (a Adapter) ResponseHeader(resp *http.Response) http.Header {
	if resp == nil {
		return nil
	}
	return resp.Header
}

// ResponseBody reads and restores resp.Body.
func (a Adapter) ResponseBody(resp *http.Response) []byte {
	body, _ := httputil.ReadResponseBody(resp)
	return body
}

// Elapsed returns the time since Transport sent the request.
func (a Adapter) Elapsed(ctx context.Context, resp *http.Response) (time.Duration, bool) {
	start, ok := StartFromContext(ctx)
	if !ok && resp != nil && resp.Request != nil {
		start, ok = StartFromContext(resp.Request.Context())
	}
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}

type startKey struct{}

// WithStart records when a call started, for the Duration enricher.
func WithStart(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startKey{}, t)
}

// StartFromContext returns the start time recorded by WithStart.
func StartFromContext(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(startKey{}).(time.Time)
	return t, ok
}

// Source exposes client exchanges to the built-in meta enrichers.
var Source meta.Source[*http.Response] = Adapter{}

var (
	_ audit.Adapter[*http.Response]     = Adapter{}
	_ meta.BodyExcluder[*http.Response] = Adapter{}
)
