package httputil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrBodyTooLarge is returned when a request body exceeds the snapshot limit.
var ErrBodyTooLarge = errors.New("httputil: body exceeds snapshot limit")

// DefaultMaxBodySize bounds how much of a request body is buffered for
// logging (10MB).
const DefaultMaxBodySize = 10 << 20

// SnapshotRequestBody buffers r.Body so it can be read again. The body is
// replaced with a fresh reader over the snapshot and r.GetBody is set, so
// the handler or the next RoundTripper still sees the full body. A limit of
// zero or less means DefaultMaxBodySize.
func SnapshotRequestBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}

	orig := r.Body
	data, err := io.ReadAll(io.LimitReader(orig, limit+1))
	if err != nil {
		_ = orig.Close()
		return nil, fmt.Errorf("httputil: failed to read request body: %w", err)
	}
	if int64(len(data)) > limit {
		// Hand the handler everything, including the part already read.
		r.Body = readCloser{io.MultiReader(bytes.NewReader(data), orig), orig}
		return nil, ErrBodyTooLarge
	}
	_ = orig.Close()

	r.Body = io.NopCloser(bytes.NewReader(data))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	r.ContentLength = int64(len(data))
	return data, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// ReadRequestBody returns the request body without consuming it. It uses
// r.GetBody when available (set by http.NewRequest for in-memory bodies and
// by SnapshotRequestBody) and otherwise snapshots r.Body.
func ReadRequestBody(r *http.Request) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	if r.GetBody == nil {
		return SnapshotRequestBody(r, 0)
	}

	rc, err := r.GetBody()
	if err != nil {
		return nil, fmt.Errorf("httputil: failed to reopen request body: %w", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("httputil: failed to read request body: %w", err)
	}
	return data, nil
}

// FullURL reconstructs the absolute URL of a request. Outgoing requests
// already carry one; server requests only have the request URI, so scheme
// and host are taken from the connection.
func FullURL(r *http.Request) string {
	if r.URL != nil && r.URL.IsAbs() {
		return r.URL.String()
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if host == "" && r.URL != nil {
		host = r.URL.Host
	}

	uri := r.RequestURI
	if uri == "" && r.URL != nil {
		uri = r.URL.RequestURI()
	}
	return scheme + "://" + host + uri
}
