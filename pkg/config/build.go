package config

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/getmockd/reqaudit/pkg/audit"
	"github.com/getmockd/reqaudit/pkg/client"
	"github.com/getmockd/reqaudit/pkg/logging"
	"github.com/getmockd/reqaudit/pkg/mask"
	"github.com/getmockd/reqaudit/pkg/meta"
	"github.com/getmockd/reqaudit/pkg/policy"
	"github.com/getmockd/reqaudit/pkg/server"
	"github.com/getmockd/reqaudit/pkg/sink"
)

// MaskConfig returns the masking configuration, including the fields found
// in the OpenAPI document when one is configured.
func (c *Config) MaskConfig() (mask.Config, error) {
	fields := slices.Clone(c.SensitiveFields)
	if c.OpenAPI != "" {
		found, err := SensitiveFieldsFromOpenAPI(c.OpenAPI)
		if err != nil {
			return mask.Config{}, &audit.ConfigError{Field: "openapi", Message: err.Error(), Err: err}
		}
		fields = append(fields, found...)
	}

	cfg := mask.NewConfig(fields, c.Mask)
	if err := cfg.Validate(); err != nil {
		return mask.Config{}, &audit.ConfigError{Field: "mask", Message: err.Error(), Err: err}
	}
	return cfg, nil
}

// RequestFilter combines excludePaths and excludeWhen.
func (c *Config) RequestFilter() (policy.RequestFilter, error) {
	paths, err := policy.PathFilter(c.ExcludePaths...)
	if err != nil {
		return nil, &audit.ConfigError{Field: "excludePaths", Message: err.Error(), Err: err}
	}
	var when policy.RequestFilter
	if c.ExcludeWhen != "" {
		when, err = policy.ExprFilter(c.ExcludeWhen)
		if err != nil {
			return nil, &audit.ConfigError{Field: "excludeWhen", Message: err.Error(), Err: err}
		}
	}
	return policy.Any(paths, when), nil
}

// LoggingConfig converts the logging section for logging.Setup.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Logging.Level)
	cfg.Format = logging.ParseFormat(c.Logging.Format)
	cfg.File = c.Logging.File
	cfg.LokiURL = c.Logging.LokiURL
	if cfg.LokiURL != "" {
		cfg.LokiLabels = map[string]string{"logger": c.Logger}
	}
	return cfg
}

// Sink returns the slog sink named after the configured logger.
func (c *Config) Sink(log *slog.Logger) sink.Sink {
	return sink.NewSlog(c.Logger, log)
}

// Enrichers builds the meta enrichers selected in the meta section, in a
// fixed order: static values first so that computed values win.
func Enrichers[R any](c *Config, src meta.Source[R]) ([]meta.Enricher[R], error) {
	m := c.Meta
	var out []meta.Enricher[R]

	if len(m.Static) > 0 {
		out = append(out, meta.Static[R](m.Static))
	}
	if m.RequestIDHeader != "" {
		out = append(out, meta.RequestID(src, m.RequestIDHeader))
	}
	if m.Timing {
		out = append(out, meta.Duration(src))
	}
	if m.Trace {
		out = append(out, meta.TraceContext(src))
	}
	if m.JWT {
		out = append(out, meta.JWTSubject(src))
	}
	if m.GraphQL {
		out = append(out, meta.GraphQLOperation(src))
	}
	if len(m.JSONPath) > 0 {
		e, err := meta.JSONPath(src, m.JSONPath)
		if err != nil {
			return nil, &audit.ConfigError{Field: "meta.jsonPath", Message: err.Error(), Err: err}
		}
		out = append(out, e)
	}
	return out, nil
}

// options collects the logger options shared by both sides.
func options[R any](c *Config, src meta.Source[R], log *slog.Logger) ([]audit.Option[R], error) {
	filter, err := c.RequestFilter()
	if err != nil {
		return nil, err
	}
	enrichers, err := Enrichers(c, src)
	if err != nil {
		return nil, err
	}
	return []audit.Option[R]{
		audit.WithRequestFilter[R](filter),
		audit.WithEnrichers(enrichers...),
		audit.WithLogger[R](log),
	}, nil
}

// ServerLogger builds the audit logger for handled requests. extra options
// are applied after the configured ones.
func (c *Config) ServerLogger(s sink.Sink, log *slog.Logger, extra ...audit.Option[*server.Response]) (*audit.Logger[*server.Response], error) {
	maskCfg, err := c.MaskConfig()
	if err != nil {
		return nil, err
	}
	opts, err := options(c, server.Source, log)
	if err != nil {
		return nil, err
	}
	return server.NewLogger(c.Logger, maskCfg, c.NoResponseBody, s, append(opts, extra...)...)
}

// ClientLogger builds the audit logger for outgoing calls.
func (c *Config) ClientLogger(s sink.Sink, log *slog.Logger, extra ...audit.Option[*http.Response]) (*audit.Logger[*http.Response], error) {
	maskCfg, err := c.MaskConfig()
	if err != nil {
		return nil, err
	}
	opts, err := options(c, client.Source, log)
	if err != nil {
		return nil, err
	}
	return client.NewLogger(c.Logger, maskCfg, s, append(opts, extra...)...)
}

// Describe summarizes the effective settings as label/value pairs for
// human-readable output.
func (c *Config) Describe() [][2]string {
	token := "(drop)"
	if c.Mask != nil {
		token = fmt.Sprintf("%q", *c.Mask)
	}
	bodies := "2xx"
	if c.NoResponseBody != nil {
		bodies = fmt.Sprintf("%d rule(s)", len(c.NoResponseBody))
	}
	return [][2]string{
		{"logger", c.Logger},
		{"mask", token},
		{"sensitive fields", fmt.Sprintf("%d", len(c.SensitiveFields))},
		{"skipped bodies", bodies},
		{"excluded paths", fmt.Sprintf("%d", len(c.ExcludePaths))},
		{"enrichers", fmt.Sprintf("%d", c.enricherCount())},
	}
}

func (c *Config) enricherCount() int {
	n := len(c.Meta.JSONPath)
	for _, on := range []bool{len(c.Meta.Static) > 0, c.Meta.RequestIDHeader != "", c.Meta.Timing, c.Meta.Trace, c.Meta.JWT, c.Meta.GraphQL} {
		if on {
			n++
		}
	}
	return n
}
