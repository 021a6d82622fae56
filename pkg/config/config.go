package config

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/getmockd/reqaudit/pkg/mask"
	"github.com/getmockd/reqaudit/pkg/policy"
)

// DefaultLoggerName is the logger name used when none is configured.
const DefaultLoggerName = "http.audit"

// Config is the root of a reqaudit configuration file.
type Config struct {
	// Logger names the slog logger that receives entries.
	Logger string `json:"logger" yaml:"logger"`

	// SensitiveFields are payload and query keys whose values are masked.
	SensitiveFields []string `json:"sensitiveFields,omitempty" yaml:"sensitiveFields,omitempty"`

	// Mask is the replacement token. An explicit null drops sensitive keys
	// instead of masking them.
	Mask *string `json:"mask" yaml:"mask"`

	// NoResponseBody lists status codes and [method, status] pairs whose
	// response bodies are not logged by the server logger. Absent means
	// every 2xx status; an empty list logs every body.
	NoResponseBody []any `json:"noResponseBody" yaml:"noResponseBody,omitempty"`

	// ExcludePaths are doublestar patterns of request paths never logged.
	ExcludePaths []string `json:"excludePaths,omitempty" yaml:"excludePaths,omitempty"`

	// ExcludeWhen is a boolean expression; matching requests are not logged.
	ExcludeWhen string `json:"excludeWhen,omitempty" yaml:"excludeWhen,omitempty"`

	// Meta selects the enrichers that fill the entry's meta object.
	Meta MetaConfig `json:"meta,omitempty" yaml:"meta,omitempty"`

	// OpenAPI is a document whose sensitive properties are added to
	// SensitiveFields.
	OpenAPI string `json:"openapi,omitempty" yaml:"openapi,omitempty"`

	// Logging configures where entries and diagnostics are written.
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// MetaConfig selects meta enrichers.
type MetaConfig struct {
	RequestIDHeader string            `json:"requestIdHeader,omitempty" yaml:"requestIdHeader,omitempty"`
	Timing          bool              `json:"timing,omitempty" yaml:"timing,omitempty"`
	Trace           bool              `json:"trace,omitempty" yaml:"trace,omitempty"`
	JWT             bool              `json:"jwt,omitempty" yaml:"jwt,omitempty"`
	GraphQL         bool              `json:"graphql,omitempty" yaml:"graphql,omitempty"`
	JSONPath        map[string]string `json:"jsonPath,omitempty" yaml:"jsonPath,omitempty"`
	Static          map[string]any    `json:"static,omitempty" yaml:"static,omitempty"`
}

// LoggingConfig configures the slog output.
type LoggingConfig struct {
	Level   string `json:"level,omitempty" yaml:"level,omitempty"`
	Format  string `json:"format,omitempty" yaml:"format,omitempty"`
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
	LokiURL string `json:"lokiUrl,omitempty" yaml:"lokiUrl,omitempty"`
}

// Default returns a configuration that masks with "X", logs every request
// and skips 2xx response bodies on the server side.
func Default() *Config {
	return &Config{
		Logger: DefaultLoggerName,
		Mask:   mask.Token(mask.DefaultToken),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ValidationError is a single semantic problem in a configuration.
type ValidationError struct {
	Path    string // e.g. "noResponseBody[1]"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationResult collects every problem found in a configuration.
type ValidationResult struct {
	Errors []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message.
func (r *ValidationResult) Error() string {
	if r.IsValid() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "\n")
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(path, message string) {
	r.Errors = append(r.Errors, ValidationError{Path: path, Message: message})
}

// Err returns r as an error, or nil when r is valid.
func (r *ValidationResult) Err() error {
	if r.IsValid() {
		return nil
	}
	return r
}

// Validate checks the rules a schema cannot express.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	if strings.TrimSpace(c.Logger) == "" {
		result.AddError("logger", "required")
	}
	if c.Mask != nil && *c.Mask == "" {
		result.AddError("mask", "must not be empty; use null to drop sensitive fields")
	}
	for i, f := range c.SensitiveFields {
		if f == "" {
			result.AddError(fmt.Sprintf("sensitiveFields[%d]", i), "must not be empty")
		}
	}

	for i, item := range c.NoResponseBody {
		if _, err := policy.ParseBodyRules([]any{item}); err != nil {
			result.AddError(fmt.Sprintf("noResponseBody[%d]", i), ruleMessage(err))
		}
	}
	for i, p := range c.ExcludePaths {
		if _, err := policy.PathFilter(p); err != nil {
			result.AddError(fmt.Sprintf("excludePaths[%d]", i), ruleMessage(err))
		}
	}
	if c.ExcludeWhen != "" {
		if _, err := policy.ExprFilter(c.ExcludeWhen); err != nil {
			result.AddError("excludeWhen", ruleMessage(err))
		}
	}
	for key, path := range c.Meta.JSONPath {
		if _, err := jp.ParseString(path); err != nil {
			result.AddError("meta.jsonPath."+key, err.Error())
		}
	}

	return result
}

func ruleMessage(err error) string {
	if re, ok := err.(*policy.RuleError); ok {
		return re.Message
	}
	return err.Error()
}
