// Package mask redacts sensitive fields from decoded payloads.
//
// Masking never reveals the length of a redacted text value: every masked
// string is the token repeated MaskLength times, whatever its source length.
package mask

import (
	"errors"
	"strings"

	"github.com/getmockd/reqaudit/pkg/payload"
)

// MaskLength is how many times the token is repeated for masked text.
const MaskLength = 8

// DefaultToken is the token used when a configuration does not name one.
const DefaultToken = "X"

// Config names the sensitive fields and how to redact them.
// A Config is immutable once built; construct a new one to change it.
type Config struct {
	fields map[string]struct{}
	token  *string
}

// NewConfig builds a Config. A nil token drops sensitive fields from the
// output instead of replacing their values.
func NewConfig(fields []string, token *string) Config {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	var tok *string
	if token != nil {
		t := *token
		tok = &t
	}
	return Config{fields: set, token: tok}
}

// Token returns a pointer to s, for use with NewConfig.
func Token(s string) *string {
	return &s
}

// Validate rejects an empty token. Use a nil token to drop fields instead.
func (c Config) Validate() error {
	if c.token != nil && *c.token == "" {
		return errors.New("mask: token must not be empty (use no token to drop fields)")
	}
	return nil
}

// IsSensitive reports whether key names a sensitive field.
func (c Config) IsSensitive(key string) bool {
	_, ok := c.fields[key]
	return ok
}

// Drops reports whether sensitive fields are removed rather than replaced.
func (c Config) Drops() bool {
	return c.token == nil
}

// Fields returns the number of sensitive field names.
func (c Config) Fields() int {
	return len(c.fields)
}

// Mask returns a redacted copy of v. Values that are not objects are
// returned as they are. Nested objects are masked recursively unless their
// own key is sensitive, in which case the whole value is replaced.
func Mask(v any, cfg Config) any {
	obj, ok := v.(*payload.Object)
	if !ok || obj == nil {
		return v
	}
	return maskObject(obj, cfg)
}

func maskObject(obj *payload.Object, cfg Config) *payload.Object {
	out := payload.NewObject()
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		key, value := pair.Key, pair.Value

		if cfg.IsSensitive(key) {
			if cfg.token == nil {
				continue
			}
			out.Set(key, redact(value, *cfg.token))
			continue
		}

		if nested, ok := value.(*payload.Object); ok && nested != nil {
			value = maskObject(nested, cfg)
		}
		out.Set(key, value)
	}
	return out
}

func redact(value any, token string) any {
	if _, ok := value.(string); ok {
		return strings.Repeat(token, MaskLength)
	}
	return token
}
