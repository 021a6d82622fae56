package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	c, err := r.NewCounter("requests_total", "Requests", "method")
	require.NoError(t, err)

	require.NoError(t, c.Inc("GET"))
	require.NoError(t, c.Add(2, "GET"))
	require.NoError(t, c.Inc("POST"))

	assert.Equal(t, float64(3), c.Value("GET"))
	assert.Equal(t, float64(1), c.Value("POST"))
	assert.Zero(t, c.Value("PUT"))

	assert.ErrorIs(t, c.Add(-1, "GET"), ErrNegativeCounterValue)
	assert.ErrorIs(t, c.Inc(), ErrLabelCountMismatch)
	assert.ErrorIs(t, c.Inc("GET", "extra"), ErrLabelCountMismatch)
}

func TestCounter_Concurrent(t *testing.T) {
	t.Parallel()

	c, err := NewRegistry().NewCounter("hits_total", "Hits", "logger")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_ = c.Inc("a")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, float64(800), c.Value("a"))
}

func TestRegistry_WriteTo(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	c, err := r.NewCounter("entries_total", "Entries\nwritten", "logger")
	require.NoError(t, err)
	h, err := r.NewHistogram("entry_bytes", "Entry size", []float64{100, 10}, "logger")
	require.NoError(t, err)
	_, err = r.NewCounter("unused_total", "Never incremented")
	require.NoError(t, err)

	require.NoError(t, c.Inc(`a"b`))
	require.NoError(t, h.Observe(5, "x"))
	require.NoError(t, h.Observe(50, "x"))
	require.NoError(t, h.Observe(500, "x"))

	var buf bytes.Buffer
	r.WriteTo(&buf)

	assert.Equal(t, `# HELP entries_total Entries\nwritten
# TYPE entries_total counter
entries_total{logger="a\"b"} 1
# HELP entry_bytes Entry size
# TYPE entry_bytes histogram
entry_bytes_bucket{le="+Inf",logger="x"} 3
entry_bytes_bucket{le="10",logger="x"} 1
entry_bytes_bucket{le="100",logger="x"} 2
entry_bytes_count{logger="x"} 3
entry_bytes_sum{logger="x"} 555
`, buf.String())
}

func TestRegistry_DuplicateName(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.NewCounter("dup_total", "first")
	require.NoError(t, err)
	_, err = r.NewHistogram("dup_total", "second", nil)
	assert.ErrorIs(t, err, ErrDuplicateMetric)
}

func TestRegistry_Handler(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a, err := NewAudit(r)
	require.NoError(t, err)
	a.Logged("api.audit", 300)
	a.Suppressed("api.audit")

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	body := w.Body.String()
	assert.Contains(t, body, `reqaudit_entries_total{logger="api.audit",outcome="logged"} 1`)
	assert.Contains(t, body, `reqaudit_entries_total{logger="api.audit",outcome="suppressed"} 1`)
	assert.Contains(t, body, `reqaudit_entry_bytes_bucket{le="1024",logger="api.audit"} 1`)
	assert.Contains(t, body, `reqaudit_entry_bytes_bucket{le="256",logger="api.audit"} 0`)
}

func TestAudit_NilRecordsNothing(t *testing.T) {
	t.Parallel()

	var a *Audit
	assert.NotPanics(t, func() {
		a.Logged("x", 10)
		a.Suppressed("x")
		a.Failed("x")
	})
}

func TestAudit_UnencodedEntryHasNoSize(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a, err := NewAudit(r)
	require.NoError(t, err)
	a.Logged("x", 0)

	assert.Equal(t, float64(1), a.Entries.Value("x", OutcomeLogged))
	var buf bytes.Buffer
	r.WriteTo(&buf)
	assert.NotContains(t, buf.String(), "reqaudit_entry_bytes")
}
