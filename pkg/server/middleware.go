package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/getmockd/reqaudit/pkg/audit"
	"github.com/getmockd/reqaudit/pkg/httputil"
	"github.com/getmockd/reqaudit/pkg/meta"
	"github.com/getmockd/reqaudit/pkg/tracing"
	"github.com/google/uuid"
)

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middleware)

// WithOnError sets the hook that receives logging failures. By default they
// are logged at error level on slog.Default().
func WithOnError(fn func(r *http.Request, err error)) MiddlewareOption {
	return func(m *middleware) {
		m.onError = fn
	}
}

// WithLog sets the logger used for the middleware's own diagnostics.
func WithLog(log *slog.Logger) MiddlewareOption {
	return func(m *middleware) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMaxBodySize bounds the request body snapshot and the captured
// response body. Exchanges with a larger body are handled normally but not
// logged.
func WithMaxBodySize(n int64) MiddlewareOption {
	return func(m *middleware) {
		m.maxBody = n
	}
}

// WithRequestID makes sure every request carries an id in header. A
// missing id is generated, set on the request before the handler runs and
// echoed on the response.
func WithRequestID(header string) MiddlewareOption {
	return func(m *middleware) {
		m.requestIDHeader = http.CanonicalHeaderKey(header)
	}
}

type middleware struct {
	next            http.Handler
	logger          *audit.Logger[*Response]
	onError         func(r *http.Request, err error)
	log             *slog.Logger
	maxBody         int64
	requestIDHeader string
}

// Middleware returns a wrapper that logs every exchange of the wrapped
// handler through logger. A nil logger disables logging.
func Middleware(logger *audit.Logger[*Response], opts ...MiddlewareOption) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		m := &middleware{
			next:   next,
			logger: logger,
		}
		for _, opt := range opts {
			opt(m)
		}
		return m
	}
}

// ServeHTTP implements http.Handler.
func (m *middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.logger == nil {
		m.next.ServeHTTP(w, r)
		return
	}

	start := time.Now()

	if m.requestIDHeader != "" {
		id := r.Header.Get(m.requestIDHeader)
		if id == "" {
			id = uuid.New().String()
			r.Header.Set(m.requestIDHeader, id)
		}
		w.Header().Set(m.requestIDHeader, id)
	}

	body, err := httputil.SnapshotRequestBody(r, m.maxBody)
	if err != nil {
		m.report(r, err)
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			m.next.ServeHTTP(w, r)
		} else {
			httputil.WriteError(w, http.StatusBadRequest, "invalid_body", "failed to read request body")
		}
		return
	}

	// Handlers see the scope and the caller's trace context on r.Context().
	scope := &Scope{Body: body, Start: start}
	ctx := tracing.Extract(WithScope(r.Context(), scope), r.Header)
	r = r.WithContext(ctx)
	scope.Request = r

	capture := &responseCapture{ResponseWriter: w, limit: m.maxBody}
	if capture.limit <= 0 {
		capture.limit = httputil.DefaultMaxBodySize
	}
	if ex, ok := m.logger.Adapter().(meta.BodyExcluder[*Response]); ok {
		capture.excludes = func(code int, header http.Header) bool {
			return ex.ExcludesBody(ctx, &Response{Status: httputil.StatusLine(code), Header: header})
		}
	}
	m.next.ServeHTTP(capture, r)

	if capture.tooLarge {
		if !m.logger.ExcludeRequest(r) {
			m.report(r, httputil.ErrBodyTooLarge)
		}
		return
	}
	if _, err := m.logger.Log(r.Context(), capture.response()); err != nil {
		m.report(r, err)
	}
}

func (m *middleware) report(r *http.Request, err error) {
	if m.onError != nil {
		m.onError(r, err)
		return
	}
	log := m.log
	if log == nil {
		log = slog.Default()
	}
	log.Error("failed to log http exchange",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
}

// responseCapture records the status, headers and body chunks a handler
// writes while passing everything through. Chunks are not kept once the body
// is known to be excluded, or once they exceed limit.
type responseCapture struct {
	http.ResponseWriter
	statusCode  int
	header      http.Header
	chunks      [][]byte
	wroteHeader bool

	excludes func(code int, header http.Header) bool
	limit    int64
	size     int64
	skipBody bool
	tooLarge bool
}

// WriteHeader captures the final status code and header snapshot and
// delegates to the underlying ResponseWriter. Informational codes other
// than 101 are passed through without being recorded.
func (rc *responseCapture) WriteHeader(code int) {
	if !rc.wroteHeader && !informational(code) {
		rc.wroteHeader = true
		rc.statusCode = code
		rc.header = rc.ResponseWriter.Header().Clone()
		rc.skipBody = rc.excludes != nil && rc.excludes(code, rc.header)
	}
	rc.ResponseWriter.WriteHeader(code)
}

func informational(code int) bool {
	return code >= 100 && code < 200 && code != http.StatusSwitchingProtocols
}

// Write captures a copy of each chunk and delegates to the underlying
// ResponseWriter.
func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.wroteHeader {
		rc.WriteHeader(http.StatusOK)
	}
	n, err := rc.ResponseWriter.Write(b)
	if n > 0 && !rc.skipBody && !rc.tooLarge {
		rc.size += int64(n)
		if rc.limit > 0 && rc.size > rc.limit {
			rc.tooLarge = true
			rc.chunks = nil
		} else {
			rc.chunks = append(rc.chunks, append([]byte(nil), b[:n]...))
		}
	}
	return n, err
}

// Flush implements http.Flusher when the underlying writer does.
func (rc *responseCapture) Flush() {
	if !rc.wroteHeader {
		rc.WriteHeader(http.StatusOK)
	}
	if f, ok := rc.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rc *responseCapture) Unwrap() http.ResponseWriter {
	return rc.ResponseWriter
}

func (rc *responseCapture) response() *Response {
	code := rc.statusCode
	header := rc.header
	if !rc.wroteHeader {
		code = http.StatusOK
		header = rc.ResponseWriter.Header().Clone()
	}
	return &Response{
		Status: httputil.StatusLine(code),
		Header: header,
		Chunks: rc.chunks,
	}
}
