// Package httputil provides shared HTTP helpers used by both sides of the
// audit logger: body snapshots, status lines, full URLs and JSON responses.
package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// ReadResponseBody reads resp.Body and replaces it with a reader over the
// same bytes so callers downstream can still consume it. If the read fails,
// the replacement yields the bytes read so far and then the same error.
func ReadResponseBody(resp *http.Response) ([]byte, error) {
	return SnapshotResponseBody(resp, -1)
}

// SnapshotResponseBody buffers up to limit bytes of resp.Body. When the
// body is larger it returns ErrBodyTooLarge and resp.Body still streams the
// whole body, including the part already read. A limit of zero means
// DefaultMaxBodySize; a negative limit means no limit.
func SnapshotResponseBody(resp *http.Response, limit int64) ([]byte, error) {
	if resp == nil || resp.Body == nil || resp.Body == http.NoBody {
		return nil, nil
	}
	if limit == 0 {
		limit = DefaultMaxBodySize
	}

	orig := resp.Body
	var r io.Reader = orig
	if limit > 0 {
		r = io.LimitReader(orig, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		_ = orig.Close()
		resp.Body = io.NopCloser(io.MultiReader(bytes.NewReader(data), errReader{err}))
		return nil, fmt.Errorf("httputil: failed to read response body: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		resp.Body = readCloser{io.MultiReader(bytes.NewReader(data), orig), orig}
		return nil, ErrBodyTooLarge
	}
	_ = orig.Close()

	resp.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// errReader replays a read error after the buffered bytes.
type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

// StatusLine formats a status code as "<code> <reason>", for example
// "404 Not Found". Unknown codes are returned without a reason.
func StatusLine(code int) string {
	text := http.StatusText(code)
	if text == "" {
		return strconv.Itoa(code)
	}
	return strconv.Itoa(code) + " " + text
}

// ResponseStatus returns the status line of a client response. resp.Status
// already has the "200 OK" form when set by the transport.
func ResponseStatus(resp *http.Response) string {
	if s := strings.TrimSpace(resp.Status); s != "" {
		return s
	}
	return StatusLine(resp.StatusCode)
}

// ErrorResponse is the body written by WriteError.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON writes data as a JSON response with the given status code.
// HTML characters are left unescaped so echoed payloads read as sent.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

// WriteError writes an ErrorResponse with a machine-readable code.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{Error: code, Message: message})
}
