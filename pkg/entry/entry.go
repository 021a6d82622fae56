// Package entry defines the canonical audit-log entry for one HTTP
// request/response pair, independent of which side of the call produced it.
//
// An encoded entry is a JSON object with exactly three keys, in this order:
//
//	{
//	  "request":  {"url": ..., "method": ..., "headers": [[name, value], ...], "payload": ...},
//	  "response": {"status": ..., "headers": [[name, value], ...], "data": ...},
//	  "meta":     {...}
//	}
//
// Leaves that were not populated encode as null; header lists and meta are
// never null.
package entry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/getmockd/reqaudit/pkg/payload"
)

// Entry is a single audit record. Build one with Template and Overlay; an
// Entry is not modified after it has been handed to a sink.
type Entry struct {
	Request  Request  `json:"request"`
	Response Response `json:"response"`
	Meta     Meta     `json:"meta"`
}

// Request holds the normalised request half of an entry.
type Request struct {
	URL     *string `json:"url"`
	Method  *string `json:"method"`
	Headers Headers `json:"headers"`
	// Payload is the masked, JSON-compatible request body, or nil.
	Payload any `json:"payload"`
}

// Response holds the normalised response half of an entry.
type Response struct {
	Status  *string `json:"status"`
	Headers Headers `json:"headers"`
	Data    *string `json:"data"`
}

// Meta carries enrichment values keyed by name.
type Meta map[string]any

// Header is a single name/value pair. It encodes as a two-element array.
type Header [2]string

// Name returns the header name.
func (h Header) Name() string { return h[0] }

// Value returns the header value.
func (h Header) Value() string { return h[1] }

// Headers is an ordered list of header pairs. Unlike http.Header it keeps
// every value of a repeated header as its own pair.
type Headers []Header

// HeadersFrom flattens an http.Header into pairs. Names are sorted because
// http.Header does not remember arrival order; the values of each name keep
// their received order.
func HeadersFrom(h http.Header) Headers {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(Headers, 0, len(h))
	for _, name := range names {
		for _, value := range h[name] {
			out = append(out, Header{name, value})
		}
	}
	return out
}

// Values returns every value recorded for name, in order.
func (hs Headers) Values(name string) []string {
	var out []string
	for _, h := range hs {
		if http.CanonicalHeaderKey(h.Name()) == http.CanonicalHeaderKey(name) {
			out = append(out, h.Value())
		}
	}
	return out
}

// String returns a pointer to s, for populating nullable fields.
func String(s string) *string {
	return &s
}

// Template returns an entry with every leaf at its default: nil scalars,
// empty header lists and empty meta.
func Template() *Entry {
	return &Entry{
		Request: Request{
			Headers: Headers{},
		},
		Response: Response{
			Headers: Headers{},
		},
		Meta: Meta{},
	}
}

// Overlay copies the fields that partial sets onto r. Unset fields (nil
// pointers, a nil header list, a nil payload) keep their current value.
func (r *Request) Overlay(partial Request) {
	if partial.URL != nil {
		r.URL = partial.URL
	}
	if partial.Method != nil {
		r.Method = partial.Method
	}
	if partial.Headers != nil {
		r.Headers = partial.Headers
	}
	if partial.Payload != nil {
		r.Payload = partial.Payload
	}
}

// Overlay copies the fields that partial sets onto r.
func (r *Response) Overlay(partial Response) {
	if partial.Status != nil {
		r.Status = partial.Status
	}
	if partial.Headers != nil {
		r.Headers = partial.Headers
	}
	if partial.Data != nil {
		r.Data = partial.Data
	}
}

// Overlay merges meta values into m; keys in values replace existing ones.
func (m Meta) Overlay(values map[string]any) {
	for k, v := range values {
		m[k] = v
	}
}

// Encode serialises the entry to its canonical JSON form.
// HTML characters are not escaped so payloads appear as sent.
func (e *Entry) Encode() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return "", fmt.Errorf("entry: failed to encode: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// Decode parses an encoded entry. Payload objects keep their key order and
// numbers come back as json.Number.
func Decode(data []byte) (*Entry, error) {
	var raw struct {
		Request struct {
			URL     *string         `json:"url"`
			Method  *string         `json:"method"`
			Headers Headers         `json:"headers"`
			Payload json.RawMessage `json:"payload"`
		} `json:"request"`
		Response Response                   `json:"response"`
		Meta     map[string]json.RawMessage `json:"meta"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("entry: failed to decode: %w", err)
	}

	e := Template()
	e.Request.Overlay(Request{
		URL:     raw.Request.URL,
		Method:  raw.Request.Method,
		Headers: raw.Request.Headers,
	})
	e.Response.Overlay(raw.Response)

	if p := bytes.TrimSpace(raw.Request.Payload); len(p) > 0 && !bytes.Equal(p, []byte("null")) {
		v, err := payload.DecodeJSON(p)
		if err != nil {
			return nil, fmt.Errorf("entry: failed to decode payload: %w", err)
		}
		e.Request.Payload = v
	}

	for k, v := range raw.Meta {
		decoded, err := payload.DecodeJSON(v)
		if err != nil {
			return nil, fmt.Errorf("entry: failed to decode meta %q: %w", k, err)
		}
		e.Meta[k] = decoded
	}
	return e, nil
}
