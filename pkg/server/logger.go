package server

import (
	"github.com/getmockd/reqaudit/pkg/audit"
	"github.com/getmockd/reqaudit/pkg/mask"
	"github.com/getmockd/reqaudit/pkg/policy"
	"github.com/getmockd/reqaudit/pkg/sink"
)

// NewLogger returns an audit logger for handled requests. rules lists the
// responses whose bodies are not logged, as accepted by
// policy.ParseBodyRules; nil selects every 2xx status.
func NewLogger(name string, maskCfg mask.Config, rules []any, s sink.Sink, opts ...audit.Option[*Response]) (*audit.Logger[*Response], error) {
	if err := maskCfg.Validate(); err != nil {
		return nil, &audit.ConfigError{Field: "mask", Message: err.Error(), Err: err}
	}
	bodyRules, err := policy.ParseBodyRules(rules)
	if err != nil {
		return nil, &audit.ConfigError{Field: "noResponseBody", Message: err.Error(), Err: err}
	}
	return audit.New[*Response](name, Adapter{Mask: maskCfg, Rules: bodyRules}, s, opts...)
}
