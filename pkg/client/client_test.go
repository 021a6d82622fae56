package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/getmockd/reqaudit/pkg/audit"
	"github.com/getmockd/reqaudit/pkg/entry"
	"github.com/getmockd/reqaudit/pkg/httputil"
	"github.com/getmockd/reqaudit/pkg/mask"
	"github.com/getmockd/reqaudit/pkg/meta"
	"github.com/getmockd/reqaudit/pkg/payload"
	"github.com/getmockd/reqaudit/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingSink struct {
	mu      sync.Mutex
	entries []string
}

func (c *capturingSink) Info(_ context.Context, p any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, p.(string))
	return nil
}

func (c *capturingSink) decoded(t *testing.T) []*entry.Entry {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*entry.Entry, 0, len(c.entries))
	for _, s := range c.entries {
		e, err := entry.Decode([]byte(s))
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

// onlyReader hides bytes.Reader's type so http.NewRequest cannot set GetBody.
type onlyReader struct{ io.Reader }

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("X-Request-Id", "srv-1")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestLogger(t *testing.T, s *capturingSink, opts ...audit.Option[*http.Response]) *audit.Logger[*http.Response] {
	t.Helper()
	l, err := NewLogger("payments", mask.NewConfig([]string{"card_number"}, mask.Token("X")), s, opts...)
	require.NoError(t, err)
	return l
}

func TestTransport_LogsExchange(t *testing.T) {
	t.Parallel()

	srv := echoServer(t)
	s := &capturingSink{}
	c := Wrap(srv.Client(), newTestLogger(t, s), nil)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/charges?x=1", strings.NewReader(`{"card_number":"4111111111111111","amount":12}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"card_number":"4111111111111111","amount":12}`, string(body), "caller still reads the body")

	entries := s.decoded(t)
	require.Len(t, entries, 1)
	e := entries[0]

	assert.Equal(t, srv.URL+"/charges?x=1", *e.Request.URL)
	assert.Equal(t, "POST", *e.Request.Method)
	assert.Equal(t, []string{"application/json"}, e.Request.Headers.Values("Content-Type"))

	obj, ok := e.Request.Payload.(*payload.Object)
	require.True(t, ok)
	card, _ := obj.Get("card_number")
	assert.Equal(t, "XXXXXXXX", card)

	assert.Equal(t, "201 Created", *e.Response.Status)
	assert.Equal(t, []string{"srv-1"}, e.Response.Headers.Values("X-Request-Id"))
	assert.Equal(t, `{"card_number":"4111111111111111","amount":12}`, *e.Response.Data)
}

func TestTransport_SnapshotsBodyWithoutGetBody(t *testing.T) {
	t.Parallel()

	srv := echoServer(t)
	s := &capturingSink{}
	c := Wrap(srv.Client(), newTestLogger(t, s), nil)

	req, err := http.NewRequest(http.MethodPut, srv.URL, onlyReader{strings.NewReader(`{"a":1}`)})
	require.NoError(t, err)
	require.Nil(t, req.GetBody)

	resp, err := c.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, `{"a":1}`, string(body), "server received the full body")

	entries := s.decoded(t)
	require.Len(t, entries, 1)
	obj := entries[0].Request.Payload.(*payload.Object)
	assert.Equal(t, []string{"a"}, payload.Keys(obj))
}

func TestTransport_ExcludedRequestIsNotLogged(t *testing.T) {
	t.Parallel()

	srv := echoServer(t)
	s := &capturingSink{}
	health, err := policy.PathFilter("/health")
	require.NoError(t, err)
	c := Wrap(srv.Client(), newTestLogger(t, s, audit.WithRequestFilter[*http.Response](health)), nil)

	resp, err := c.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, s.decoded(t))
}

func TestTransport_LogErrorsDoNotFailCall(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte{0xc3, 0x28})
	}))
	defer srv.Close()

	s := &capturingSink{}
	var reported []error
	c := srv.Client()
	c.Transport = &Transport{
		Base:    c.Transport,
		Logger:  newTestLogger(t, s),
		OnError: func(_ *http.Request, err error) { reported = append(reported, err) },
	}

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, reported, 1)
	var decodeErr *audit.DecodeError
	assert.ErrorAs(t, reported[0], &decodeErr)
	assert.Empty(t, s.decoded(t))
}

func TestTransport_ExcludeBody(t *testing.T) {
	t.Parallel()

	srv := echoServer(t)
	s := &capturingSink{}
	l, err := NewLoggerWithAdapter("payments", Adapter{
		ExcludeBody: func(resp *http.Response) bool { return resp.StatusCode == http.StatusCreated },
	}, s)
	require.NoError(t, err)

	c := Wrap(srv.Client(), l, nil)
	resp, err := c.Post(srv.URL, "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()

	entries := s.decoded(t)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Response.Data)
	assert.Equal(t, "201 Created", *entries[0].Response.Status)
}

func TestTransport_Enrichers(t *testing.T) {
	t.Parallel()

	srv := echoServer(t)
	s := &capturingSink{}
	l := newTestLogger(t, s, audit.WithEnrichers(
		meta.RequestID(Source, ""),
		meta.Duration(Source),
	))

	resp, err := Wrap(srv.Client(), l, nil).Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	entries := s.decoded(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "srv-1", entries[0].Meta[meta.KeyRequestID])
	assert.Contains(t, entries[0].Meta, meta.KeyDuration)
}

func TestTransport_BaseErrorPassesThrough(t *testing.T) {
	t.Parallel()

	boom := errors.New("dial failed")
	s := &capturingSink{}
	tr := &Transport{
		Base:   roundTripFunc(func(*http.Request) (*http.Response, error) { return nil, boom }),
		Logger: newTestLogger(t, s),
	}

	req := httptest.NewRequest(http.MethodGet, "http://unreachable.invalid/", nil)
	_, err := tr.RoundTrip(req)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.decoded(t))
}

func TestTransport_BodyReadErrorReachesCaller(t *testing.T) {
	t.Parallel()

	reset := errors.New("connection reset")
	s := &capturingSink{}
	var reported []error
	tr := &Transport{
		Base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": {"text/plain"}},
				Body:       io.NopCloser(io.MultiReader(strings.NewReader("partial"), failingReader{reset})),
				Request:    r,
			}, nil
		}),
		Logger:  newTestLogger(t, s),
		OnError: func(_ *http.Request, err error) { reported = append(reported, err) },
	}

	resp, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "http://upstream.test/", nil))
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.ErrorIs(t, readErr, reset)
	assert.Equal(t, "partial", string(body))
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], reset)
	assert.Empty(t, s.decoded(t))
}

func TestTransport_OversizeResponseStreamsButIsNotLogged(t *testing.T) {
	t.Parallel()

	large := strings.Repeat("x", 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(large))
	}))
	defer srv.Close()

	s := &capturingSink{}
	var reported []error
	c := srv.Client()
	c.Transport = &Transport{
		Base:        c.Transport,
		Logger:      newTestLogger(t, s),
		OnError:     func(_ *http.Request, err error) { reported = append(reported, err) },
		MaxBodySize: 16,
	}

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, large, string(body))
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], httputil.ErrBodyTooLarge)
	assert.Empty(t, s.decoded(t))
}

// Not parallel: swaps the process-wide default logger.
func TestTransport_DefaultReportsToSlogDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte{0xc3, 0x28})
	}))
	defer srv.Close()

	resp, err := Wrap(srv.Client(), newTestLogger(t, &capturingSink{}), nil).Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Contains(t, buf.String(), "failed to log http exchange")
	assert.Contains(t, buf.String(), "level=ERROR")
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestAdapter_MissingRequest(t *testing.T) {
	t.Parallel()

	l := newTestLogger(t, &capturingSink{})
	_, err := l.Log(context.Background(), &http.Response{StatusCode: 200})
	assert.ErrorIs(t, err, ErrMissingRequest)
	assert.ErrorIs(t, err, audit.ErrMissingRequestContext)
}

func TestAdapter_StatusLineWithoutStatusText(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "http://api.local/x", nil)
	resp := &http.Response{StatusCode: http.StatusNotFound, Header: http.Header{}, Request: req, Body: http.NoBody}

	out, err := Adapter{}.BuildResponse(context.Background(), resp)
	require.NoError(t, err)
	assert.Equal(t, "404 Not Found", *out.Status)
	assert.Equal(t, "", *out.Data)
}

func TestNewLogger_RejectsEmptyToken(t *testing.T) {
	t.Parallel()

	_, err := NewLogger("x", mask.NewConfig([]string{"a"}, mask.Token("")), nil)
	var cfgErr *audit.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "mask", cfgErr.Field)
}
