package server

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/getmockd/reqaudit/pkg/audit"
	"github.com/getmockd/reqaudit/pkg/entry"
	"github.com/getmockd/reqaudit/pkg/httputil"
	"github.com/getmockd/reqaudit/pkg/mask"
	"github.com/getmockd/reqaudit/pkg/meta"
	"github.com/getmockd/reqaudit/pkg/policy"
)

// Response is what a handler sent: a status line, headers and the body as
// the chunks that were written.
type Response struct {
	// Status is the status line, for example "404 Not Found".
	Status string
	Header http.Header
	Chunks [][]byte
}

// NewResponse builds a Response from a status code.
func NewResponse(code int, header http.Header, chunks ...[]byte) *Response {
	if header == nil {
		header = http.Header{}
	}
	return &Response{
		Status: httputil.StatusLine(code),
		Header: header,
		Chunks: chunks,
	}
}

// Body returns the chunks joined together.
func (r *Response) Body() []byte {
	return bytes.Join(r.Chunks, nil)
}

// Adapter extracts entry fields from a Response and the request in scope.
type Adapter struct {
	// Mask redacts the request payload.
	Mask mask.Config

	// Rules decide which response bodies are left out. The zero value
	// matches nothing; NewLogger defaults to policy.DefaultBodyRules.
	Rules policy.BodyRules
}

// GetRequest returns the request of the scope in ctx.
func (a Adapter) GetRequest(ctx context.Context, _ *Response) (*http.Request, error) {
	s, ok := ScopeFromContext(ctx)
	if !ok {
		return nil, audit.ErrMissingRequestContext
	}
	return s.Request, nil
}

// BuildRequest returns the full URL, method, headers and masked payload.
func (a Adapter) BuildRequest(ctx context.Context, req *http.Request) (entry.Request, error) {
	var body []byte
	if s, ok := ScopeFromContext(ctx); ok && s.Request == req {
		body = s.Body
	} else {
		var err error
		if body, err = httputil.ReadRequestBody(req); err != nil {
			return entry.Request{}, err
		}
	}
	return audit.RequestFields(httputil.FullURL(req), req, body, a.Mask)
}

// BuildResponse returns the status line, headers and, unless the rules
// exclude it, the joined body as text.
func (a Adapter) BuildResponse(ctx context.Context, resp *Response) (entry.Response, error) {
	out := entry.Response{
		Status:  entry.String(resp.Status),
		Headers: entry.HeadersFrom(resp.Header),
	}
	if a.ExcludesBody(ctx, resp) {
		return out, nil
	}

	data, err := audit.ResponseData(resp.Header.Get("Content-Type"), resp.Body())
	if err != nil {
		return entry.Response{}, err
	}
	out.Data = data
	return out, nil
}

// ExcludesBody reports whether the rules leave the body of resp out.
func (a Adapter) ExcludesBody(ctx context.Context, resp *Response) bool {
	method := ""
	if s, ok := ScopeFromContext(ctx); ok {
		method = s.Request.Method
	}
	return a.Rules.Excludes(method, resp.Status)
}

// RequestHeader returns the headers of the request in scope.
func (a Adapter) RequestHeader(ctx context.Context, _ *Response) http.Header {
	if s, ok := ScopeFromContext(ctx); ok {
		return s.Request.Header
	}
	return nil
}

// RequestBody returns the body snapshot of the request in scope.
func (a Adapter) RequestBody(ctx context.Context, _ *Response) []byte {
	if s, ok := ScopeFromContext(ctx); ok {
		return s.Body
	}
	return nil
}

// ResponseHeader returns resp.Header.
func (a Adapter) ResponseHeader(resp *Response) http.Header {
	return resp.Header
}

// ResponseBody returns the joined body.
func (a Adapter) ResponseBody(resp *Response) []byte {
	return resp.Body()
}

// Elapsed returns the time since the scope started.
func (a Adapter) Elapsed(ctx context.Context, _ *Response) (time.Duration, bool) {
	s, ok := ScopeFromContext(ctx)
	if !ok || s.Start.IsZero() {
		return 0, false
	}
	return time.Since(s.Start), true
}

// Source exposes server exchanges to the built-in meta enrichers.
var Source meta.Source[*Response] = Adapter{}

var (
	_ audit.Adapter[*Response]     = Adapter{}
	_ meta.BodyExcluder[*Response] = Adapter{}
)
