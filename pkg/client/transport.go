package client

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/getmockd/reqaudit/pkg/audit"
	"github.com/getmockd/reqaudit/pkg/httputil"
)

// Transport is an http.RoundTripper that logs every exchange.
type Transport struct {
	// Base performs the call. Defaults to http.DefaultTransport.
	Base http.RoundTripper

	// Logger builds and writes the entries. A nil Logger disables logging.
	Logger *audit.Logger[*http.Response]

	// OnError receives logging failures. Defaults to logging them on Log.
	OnError func(req *http.Request, err error)

	// Log is used by the default OnError. Defaults to slog.Default().
	Log *slog.Logger

	// MaxBodySize bounds the request and response body snapshots. Exchanges
	// with a larger body pass through unchanged but are not logged.
	MaxBodySize int64
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Logger == nil {
		return base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(WithStart(req.Context(), time.Now()))

	logIt := true
	if out.GetBody == nil {
		if _, err := httputil.SnapshotRequestBody(out, t.MaxBodySize); err != nil {
			if !errors.Is(err, httputil.ErrBodyTooLarge) {
				return nil, err
			}
			t.report(out, err)
			logIt = false
		}
	}

	resp, err := base.RoundTrip(out)
	if err != nil || !logIt {
		return resp, err
	}
	if resp.Request == nil {
		resp.Request = out
	}

	// The caller still gets the whole body, or the read error, from resp.Body.
	if _, err := httputil.SnapshotResponseBody(resp, t.MaxBodySize); err != nil {
		if !t.Logger.ExcludeRequest(out) {
			t.report(out, err)
		}
		return resp, nil
	}

	if _, err := t.Logger.Log(out.Context(), resp); err != nil {
		t.report(out, err)
	}
	return resp, nil
}

func (t *Transport) report(req *http.Request, err error) {
	if t.OnError != nil {
		t.OnError(req, err)
		return
	}
	log := t.Log
	if log == nil {
		log = slog.Default()
	}
	log.Error("failed to log http exchange",
		"method", req.Method,
		"url", req.URL.String(),
		"error", err,
	)
}

// Wrap returns a shallow copy of c whose transport logs through logger.
// A nil c wraps http.DefaultClient.
func Wrap(c *http.Client, logger *audit.Logger[*http.Response], log *slog.Logger) *http.Client {
	if c == nil {
		c = http.DefaultClient
	}
	wrapped := *c
	wrapped.Transport = &Transport{Base: c.Transport, Logger: logger, Log: log}
	return &wrapped
}
