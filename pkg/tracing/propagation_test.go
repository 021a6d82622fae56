package tracing

import (
	"context"
	"net/http"
	"testing"
)

func TestParseTraceparent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		ok      bool
		sampled bool
	}{
		{"sampled", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01", true, true},
		{"not sampled", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-00", true, false},
		{"future version", "01-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01", true, true},
		{"reserved version", "ff-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01", false, false},
		{"empty", "", false, false},
		{"short trace id", "00-0af7651916cd43dd-b7ad6b7169203331-01", false, false},
		{"zero trace id", "00-00000000000000000000000000000000-b7ad6b7169203331-01", false, false},
		{"zero span id", "00-0af7651916cd43dd8448eb211c80319c-0000000000000000-01", false, false},
		{"not hex", "00-0af7651916cd43dd8448eb211c80319z-b7ad6b7169203331-01", false, false},
		{"bad flags", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-1", false, false},
		{"too many parts", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01-x", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, ok := ParseTraceparent(tt.value)
			if ok != tt.ok {
				t.Fatalf("ParseTraceparent(%q) ok = %v, want %v", tt.value, ok, tt.ok)
			}
			if !ok {
				return
			}
			if sc.Sampled != tt.sampled {
				t.Errorf("Sampled = %v, want %v", sc.Sampled, tt.sampled)
			}
			if sc.TraceID != "0af7651916cd43dd8448eb211c80319c" {
				t.Errorf("TraceID = %q", sc.TraceID)
			}
			if sc.SpanID != "b7ad6b7169203331" {
				t.Errorf("SpanID = %q", sc.SpanID)
			}
		})
	}
}

func TestTraceparentRoundTrip(t *testing.T) {
	t.Parallel()

	in := "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"
	sc, ok := ParseTraceparent(in)
	if !ok {
		t.Fatal("expected valid traceparent")
	}
	if got := sc.Traceparent(); got != in {
		t.Errorf("Traceparent() = %q, want %q", got, in)
	}
}

func TestExtract(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set(TraceparentHeader, "00-0AF7651916CD43DD8448EB211C80319C-B7AD6B7169203331-01")
	h.Set(TracestateHeader, "vendor=abc")

	ctx := Extract(context.Background(), h)
	sc := SpanContextFromContext(ctx)
	if !sc.IsValid() {
		t.Fatal("expected span context in context")
	}
	if sc.TraceID != "0af7651916cd43dd8448eb211c80319c" {
		t.Errorf("TraceID not normalised: %q", sc.TraceID)
	}
	if sc.TraceState != "vendor=abc" {
		t.Errorf("TraceState = %q", sc.TraceState)
	}

	plain := context.Background()
	if got := Extract(plain, http.Header{}); got != plain {
		t.Error("context should be unchanged without traceparent")
	}
	if SpanContextFromContext(plain).IsValid() {
		t.Error("empty context should have no span context")
	}
}
