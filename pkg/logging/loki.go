package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const lokiFlushInterval = 5 * time.Second

// LokiHandler is a slog.Handler that batches records and pushes them to a
// Loki push endpoint. Handlers derived with WithAttrs or WithGroup share the
// parent's batch, so one Flush or Close covers all of them.
type LokiHandler struct {
	shared *lokiShared
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

type lokiShared struct {
	url        string
	labels     map[string]string
	client     *http.Client
	batchSize  int
	mu         sync.Mutex
	batch      []lokiEntry
	flushTimer *time.Timer
	stopped    bool
}

type lokiEntry struct {
	timestamp time.Time
	line      string
}

// lokiStream is one labelled stream of a push request.
type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// lokiPush is the body of a Loki push request.
type lokiPush struct {
	Streams []lokiStream `json:"streams"`
}

// LokiOption configures a LokiHandler.
type LokiOption func(*LokiHandler)

// WithLokiLabels sets additional stream labels.
func WithLokiLabels(labels map[string]string) LokiOption {
	return func(h *LokiHandler) {
		for k, v := range labels {
			h.shared.labels[k] = v
		}
	}
}

// WithLokiLevel sets the minimum log level.
func WithLokiLevel(level slog.Level) LokiOption {
	return func(h *LokiHandler) {
		h.level = level
	}
}

// WithLokiBatchSize sets the batch size before flushing.
func WithLokiBatchSize(size int) LokiOption {
	return func(h *LokiHandler) {
		if size > 0 {
			h.shared.batchSize = size
		}
	}
}

// WithLokiClient sets the HTTP client used for pushes.
func WithLokiClient(c *http.Client) LokiOption {
	return func(h *LokiHandler) {
		if c != nil {
			h.shared.client = c
		}
	}
}

// NewLokiHandler creates a new Loki log handler.
// The url should be the Loki push endpoint (e.g., "http://localhost:3100/loki/api/v1/push").
func NewLokiHandler(url string, opts ...LokiOption) *LokiHandler {
	h := &LokiHandler{
		shared: &lokiShared{
			url:       url,
			labels:    map[string]string{"job": "reqaudit"},
			client:    &http.Client{Timeout: 5 * time.Second},
			batchSize: 100,
		},
		level: slog.LevelInfo,
	}

	for _, opt := range opts {
		opt(h)
	}

	s := h.shared
	s.flushTimer = time.AfterFunc(lokiFlushInterval, func() {
		_ = s.flush()
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.stopped {
			s.flushTimer.Reset(lokiFlushInterval)
		}
	})

	return h
}

// Enabled implements slog.Handler.
func (h *LokiHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements slog.Handler.
func (h *LokiHandler) Handle(_ context.Context, r slog.Record) error {
	line := h.formatRecord(r)

	s := h.shared
	s.mu.Lock()
	s.batch = append(s.batch, lokiEntry{timestamp: r.Time, line: line})
	shouldFlush := len(s.batch) >= s.batchSize
	s.mu.Unlock()

	if shouldFlush {
		go func() { _ = s.flush() }()
	}
	return nil
}

// formatRecord formats a log record as a JSON line. Grouped attributes are
// flattened with dotted keys.
func (h *LokiHandler) formatRecord(r slog.Record) string {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
		"time":  r.Time.Format(time.RFC3339Nano),
	}

	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Resolve().Any()
	}

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		data[prefix+a.Key] = a.Value.Resolve().Any()
		return true
	})

	b, err := json.Marshal(data)
	if err != nil {
		b, _ = json.Marshal(map[string]any{
			"level": r.Level.String(),
			"msg":   r.Message,
			"error": err.Error(),
		})
	}
	return string(b)
}

// WithAttrs implements slog.Handler.
func (h *LokiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	added := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		added[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}
	return &LokiHandler{
		shared: h.shared,
		level:  h.level,
		attrs:  append(h.attrs[:len(h.attrs):len(h.attrs)], added...),
		groups: h.groups,
	}
}

// WithGroup implements slog.Handler.
func (h *LokiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &LokiHandler{
		shared: h.shared,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(h.groups[:len(h.groups):len(h.groups)], name),
	}
}

// Flush sends all buffered logs to Loki.
func (h *LokiHandler) Flush() error {
	return h.shared.flush()
}

func (s *lokiShared) flush() error {
	s.mu.Lock()
	if len(s.batch) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.batch
	s.batch = nil
	s.mu.Unlock()

	values := make([][]string, len(batch))
	for i, entry := range batch {
		values[i] = []string{
			strconv.FormatInt(entry.timestamp.UnixNano(), 10),
			entry.line,
		}
	}

	body, err := json.Marshal(lokiPush{
		Streams: []lokiStream{{Stream: s.labels, Values: values}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal loki push: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create loki request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send logs to loki: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("loki returned status %d", resp.StatusCode)
	}
	return nil
}

// Close flushes remaining logs and stops the background flush.
func (h *LokiHandler) Close() error {
	s := h.shared
	s.mu.Lock()
	s.stopped = true
	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}
	s.mu.Unlock()
	return s.flush()
}
