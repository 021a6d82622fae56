package tracing

import (
	"context"
	"encoding/hex"
	"net/http"
	"strings"
)

const (
	// TraceparentHeader is the W3C Trace Context traceparent header name.
	TraceparentHeader = "traceparent"

	// TracestateHeader is the W3C Trace Context tracestate header name.
	TracestateHeader = "tracestate"

	traceparentVersion = "00"

	flagSampled = 0x01
)

// SpanContext holds the propagated trace context of a request.
type SpanContext struct {
	TraceID    string
	SpanID     string
	Sampled    bool
	TraceState string
}

// IsValid reports whether both IDs are present.
func (sc SpanContext) IsValid() bool {
	return sc.TraceID != "" && sc.SpanID != ""
}

// Traceparent formats sc as a traceparent header value.
func (sc SpanContext) Traceparent() string {
	flags := "00"
	if sc.Sampled {
		flags = "01"
	}
	return traceparentVersion + "-" + sc.TraceID + "-" + sc.SpanID + "-" + flags
}

// FromHeader reads the trace context from headers. ok is false when there is
// no traceparent or it is malformed.
func FromHeader(headers http.Header) (SpanContext, bool) {
	sc, ok := ParseTraceparent(headers.Get(TraceparentHeader))
	if !ok {
		return SpanContext{}, false
	}
	sc.TraceState = headers.Get(TracestateHeader)
	return sc, true
}

// ParseTraceparent parses a W3C traceparent header value.
func ParseTraceparent(traceparent string) (SpanContext, bool) {
	parts := strings.Split(strings.TrimSpace(traceparent), "-")
	if len(parts) != 4 {
		return SpanContext{}, false
	}
	version, traceID, spanID, flags := parts[0], parts[1], parts[2], parts[3]

	// Unknown versions with a valid layout are still accepted; "ff" is reserved.
	if len(version) != 2 || !isValidHex(version) || strings.EqualFold(version, "ff") {
		return SpanContext{}, false
	}

	if len(traceID) != 32 || !isValidHex(traceID) || traceID == strings.Repeat("0", 32) {
		return SpanContext{}, false
	}
	if len(spanID) != 16 || !isValidHex(spanID) || spanID == strings.Repeat("0", 16) {
		return SpanContext{}, false
	}

	if len(flags) != 2 {
		return SpanContext{}, false
	}
	flagBytes, err := hex.DecodeString(flags)
	if err != nil || len(flagBytes) != 1 {
		return SpanContext{}, false
	}

	return SpanContext{
		TraceID: strings.ToLower(traceID),
		SpanID:  strings.ToLower(spanID),
		Sampled: flagBytes[0]&flagSampled != 0,
	}, true
}

func isValidHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

type spanContextKey struct{}

// ContextWithSpanContext returns a copy of ctx carrying sc.
func ContextWithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, spanContextKey{}, sc)
}

// SpanContextFromContext returns the span context stored in ctx, if any.
func SpanContextFromContext(ctx context.Context) SpanContext {
	if ctx == nil {
		return SpanContext{}
	}
	sc, _ := ctx.Value(spanContextKey{}).(SpanContext)
	return sc
}

// Extract stores the trace context found in headers on ctx. If there is no
// valid traceparent, ctx is returned unchanged.
func Extract(ctx context.Context, headers http.Header) context.Context {
	sc, ok := FromHeader(headers)
	if !ok {
		return ctx
	}
	return ContextWithSpanContext(ctx, sc)
}
