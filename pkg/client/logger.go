package client

import (
	"net/http"

	"github.com/getmockd/reqaudit/pkg/audit"
	"github.com/getmockd/reqaudit/pkg/mask"
	"github.com/getmockd/reqaudit/pkg/sink"
)

// NewLogger returns an audit logger for outgoing calls. Response bodies are
// always logged; use NewLoggerWithAdapter to exclude some.
func NewLogger(name string, maskCfg mask.Config, s sink.Sink, opts ...audit.Option[*http.Response]) (*audit.Logger[*http.Response], error) {
	return NewLoggerWithAdapter(name, Adapter{Mask: maskCfg}, s, opts...)
}

// NewLoggerWithAdapter is NewLogger with a fully configured Adapter.
func NewLoggerWithAdapter(name string, a Adapter, s sink.Sink, opts ...audit.Option[*http.Response]) (*audit.Logger[*http.Response], error) {
	if err := a.Mask.Validate(); err != nil {
		return nil, &audit.ConfigError{Field: "mask", Message: err.Error(), Err: err}
	}
	return audit.New[*http.Response](name, a, s, opts...)
}
