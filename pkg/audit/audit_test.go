package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/getmockd/reqaudit/pkg/entry"
	"github.com/getmockd/reqaudit/pkg/httputil"
	"github.com/getmockd/reqaudit/pkg/mask"
	"github.com/getmockd/reqaudit/pkg/metrics"
	"github.com/getmockd/reqaudit/pkg/payload"
	"github.com/getmockd/reqaudit/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exchange is a response that carries its request, like a client response.
type exchange struct {
	req         *http.Request
	status      string
	contentType string
	body        string
}

type exchangeAdapter struct {
	mask mask.Config
}

func (a exchangeAdapter) GetRequest(_ context.Context, x *exchange) (*http.Request, error) {
	if x.req == nil {
		return nil, ErrMissingRequestContext
	}
	return x.req, nil
}

func (a exchangeAdapter) BuildRequest(_ context.Context, req *http.Request) (entry.Request, error) {
	body, err := httputil.ReadRequestBody(req)
	if err != nil {
		return entry.Request{}, err
	}
	return RequestFields(req.URL.String(), req, body, a.mask)
}

func (a exchangeAdapter) BuildResponse(_ context.Context, x *exchange) (entry.Response, error) {
	data, err := ResponseData(x.contentType, []byte(x.body))
	if err != nil {
		return entry.Response{}, err
	}
	return entry.Response{Status: entry.String(x.status), Data: data}, nil
}

// capturingSink records every payload it receives.
type capturingSink struct {
	mu       sync.Mutex
	payloads []any
	err      error
}

func (c *capturingSink) Info(_ context.Context, p any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.payloads = append(c.payloads, p)
	return nil
}

func (c *capturingSink) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func newRequest(t *testing.T, method, url, contentType, body string) *http.Request {
	t.Helper()
	var r *http.Request
	var err error
	if body == "" {
		r, err = http.NewRequest(method, url, nil)
	} else {
		r, err = http.NewRequest(method, url, strings.NewReader(body))
	}
	require.NoError(t, err)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return r
}

func newLogger(t *testing.T, s *capturingSink, opts ...Option[*exchange]) *Logger[*exchange] {
	t.Helper()
	cfg := mask.NewConfig([]string{"card_number"}, mask.Token("X"))
	l, err := New[*exchange]("billing", exchangeAdapter{mask: cfg}, s, opts...)
	require.NoError(t, err)
	return l
}

func TestLog_MasksAndEncodes(t *testing.T) {
	t.Parallel()

	s := &capturingSink{}
	l := newLogger(t, s)

	x := &exchange{
		req:    newRequest(t, http.MethodPost, "http://api.local/charge", "application/json", `{"card_number":"41111","amount":10}`),
		status: "200 OK",
		body:   "ok",
	}

	logged, err := l.Log(context.Background(), x)
	require.NoError(t, err)
	assert.True(t, logged)
	require.Equal(t, 1, s.calls())
	assert.Equal(t,
		`{"request":{"url":"http://api.local/charge","method":"POST","headers":[["Content-Type","application/json"]],"payload":{"card_number":"XXXXXXXX","amount":10}},`+
			`"response":{"status":"200 OK","headers":[],"data":"ok"},"meta":{}}`,
		s.payloads[0])
	assert.Equal(t, "billing", l.Name())
}

func TestLog_ExcludedRequestSkipsSink(t *testing.T) {
	t.Parallel()

	s := &capturingSink{}
	health, err := policy.PathFilter("/health")
	require.NoError(t, err)
	l := newLogger(t, s, WithRequestFilter[*exchange](health))

	x := &exchange{req: newRequest(t, http.MethodGet, "http://api.local/health", "", ""), status: "200 OK"}

	e, err := l.BuildEntry(context.Background(), x)
	require.NoError(t, err)
	assert.Nil(t, e)

	logged, err := l.Log(context.Background(), x)
	require.NoError(t, err)
	assert.False(t, logged)

	logged, err = l.LogStructured(context.Background(), x)
	require.NoError(t, err)
	assert.False(t, logged)

	assert.Zero(t, s.calls())
	assert.True(t, l.ExcludeRequest(x.req))
}

func TestBuildEntry_MetaLaterWins(t *testing.T) {
	t.Parallel()

	s := &capturingSink{}
	l := newLogger(t, s, WithEnrichers[*exchange](func(context.Context, *exchange) map[string]any {
		return map[string]any{"a": 1}
	}))
	l.Register(func(context.Context, *exchange) map[string]any {
		return map[string]any{"a": 2, "b": 3}
	})

	x := &exchange{req: newRequest(t, http.MethodGet, "http://api.local/x", "", ""), status: "200 OK"}
	e, err := l.BuildEntry(context.Background(), x)
	require.NoError(t, err)
	assert.Equal(t, entry.Meta{"a": 2, "b": 3}, e.Meta)
}

func TestBuildEntry_NoBodyGivesNullPayload(t *testing.T) {
	t.Parallel()

	l := newLogger(t, &capturingSink{})
	x := &exchange{req: newRequest(t, http.MethodGet, "http://api.local/x", "", ""), status: "200 OK"}

	e, err := l.BuildEntry(context.Background(), x)
	require.NoError(t, err)
	assert.Nil(t, e.Request.Payload)
	assert.Equal(t, "GET", *e.Request.Method)
}

func TestBuildEntry_FormBodyBecomesPayload(t *testing.T) {
	t.Parallel()

	l := newLogger(t, &capturingSink{})
	x := &exchange{
		req:    newRequest(t, http.MethodPost, "http://api.local/pay", "application/x-www-form-urlencoded", "card_number=4111&name=Ann"),
		status: "200 OK",
	}

	e, err := l.BuildEntry(context.Background(), x)
	require.NoError(t, err)
	obj, ok := e.Request.Payload.(*payload.Object)
	require.True(t, ok)
	assert.Equal(t, []string{"card_number", "name"}, payload.Keys(obj))
	v, _ := obj.Get("card_number")
	assert.Equal(t, "XXXXXXXX", v)
}

func TestLog_TextBodyIsDecodeError(t *testing.T) {
	t.Parallel()

	s := &capturingSink{}
	l := newLogger(t, s)
	x := &exchange{
		req:    newRequest(t, http.MethodPost, "http://api.local/x", "text/plain", "hello there"),
		status: "200 OK",
	}

	logged, err := l.Log(context.Background(), x)
	assert.False(t, logged)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, PartRequest, decodeErr.Part)

	var syntaxErr *payload.SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
	assert.Zero(t, s.calls(), "sink must not see a partial entry")
}

func TestLog_InvalidResponseTextIsDecodeError(t *testing.T) {
	t.Parallel()

	s := &capturingSink{}
	l := newLogger(t, s)
	x := &exchange{
		req:    newRequest(t, http.MethodGet, "http://api.local/x", "", ""),
		status: "200 OK",
		body:   string([]byte{0xff, 0xfe, 0xfd}),
	}

	_, err := l.Log(context.Background(), x)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, PartResponse, decodeErr.Part)
	assert.Zero(t, s.calls())
}

func TestLog_MissingRequest(t *testing.T) {
	t.Parallel()

	s := &capturingSink{}
	l := newLogger(t, s)

	_, err := l.Log(context.Background(), &exchange{status: "200 OK"})
	assert.ErrorIs(t, err, ErrMissingRequestContext)
	assert.Zero(t, s.calls())
}

func TestLogStructured_HandsEntry(t *testing.T) {
	t.Parallel()

	s := &capturingSink{}
	l := newLogger(t, s)
	x := &exchange{req: newRequest(t, http.MethodDelete, "http://api.local/x/1", "", ""), status: "204 No Content"}

	logged, err := l.LogStructured(context.Background(), x)
	require.NoError(t, err)
	assert.True(t, logged)

	require.Equal(t, 1, s.calls())
	e, ok := s.payloads[0].(*entry.Entry)
	require.True(t, ok)
	assert.Equal(t, "204 No Content", *e.Response.Status)
}

func TestLog_SinkErrorIsReturned(t *testing.T) {
	t.Parallel()

	down := errors.New("collector down")
	l := newLogger(t, &capturingSink{err: down})
	x := &exchange{req: newRequest(t, http.MethodGet, "http://api.local/x", "", ""), status: "200 OK"}

	logged, err := l.Log(context.Background(), x)
	assert.False(t, logged)
	assert.ErrorIs(t, err, down)
}

func TestLog_EncodedEntryDecodesBack(t *testing.T) {
	t.Parallel()

	s := &capturingSink{}
	l := newLogger(t, s)
	x := &exchange{
		req:         newRequest(t, http.MethodPost, "http://localhost/語", "application/json", `{"汉语":"漢語","card_number":"4111"}`),
		status:      "200 OK",
		contentType: "text/plain; charset=utf-8",
		body:        "Hello 漢語!",
	}

	built, err := l.BuildEntry(context.Background(), x)
	require.NoError(t, err)
	_, err = l.Log(context.Background(), x)
	require.NoError(t, err)

	decoded, err := entry.Decode([]byte(s.payloads[0].(string)))
	require.NoError(t, err)

	want, err := built.Encode()
	require.NoError(t, err)
	got, err := decoded.Encode()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "Hello 漢語!", *decoded.Response.Data)
}

func TestNew_RequiresAdapter(t *testing.T) {
	t.Parallel()

	_, err := New[*exchange]("x", nil, nil)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "adapter", cfgErr.Field)
	assert.Equal(t, "audit config: adapter: is required", err.Error())
}

func TestLogger_ConcurrentRegisterAndLog(t *testing.T) {
	t.Parallel()

	s := &capturingSink{}
	l := newLogger(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			l.Register(func(context.Context, *exchange) map[string]any { return map[string]any{"k": "v"} })
		}()
		go func() {
			defer wg.Done()
			r := httptest.NewRequest(http.MethodGet, "http://api.local/x", nil)
			_, err := l.Log(context.Background(), &exchange{req: r, status: "200 OK"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, s.calls())
}

func TestLog_RecordsOutcomeMetrics(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewAudit(metrics.NewRegistry())
	require.NoError(t, err)
	health, err := policy.PathFilter("/health")
	require.NoError(t, err)

	s := &capturingSink{}
	l := newLogger(t, s, WithRequestFilter[*exchange](health), WithMetrics[*exchange](m))
	ctx := context.Background()

	_, err = l.Log(ctx, &exchange{req: newRequest(t, http.MethodGet, "http://api.local/x", "", ""), status: "200 OK"})
	require.NoError(t, err)
	_, err = l.Log(ctx, &exchange{req: newRequest(t, http.MethodGet, "http://api.local/health", "", ""), status: "200 OK"})
	require.NoError(t, err)
	_, err = l.Log(ctx, &exchange{status: "200 OK"})
	require.Error(t, err)

	assert.Equal(t, float64(1), m.Entries.Value("billing", metrics.OutcomeLogged))
	assert.Equal(t, float64(1), m.Entries.Value("billing", metrics.OutcomeSuppressed))
	assert.Equal(t, float64(1), m.Entries.Value("billing", metrics.OutcomeFailed))
}
