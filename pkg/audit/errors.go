package audit

import (
	"errors"
	"fmt"
)

// ErrMissingRequestContext is returned when a response is logged outside
// the request scope that produced it, so its request cannot be resolved.
var ErrMissingRequestContext = errors.New("audit: no request in scope")

// Parts of an exchange a DecodeError can refer to.
const (
	PartRequest  = "request"
	PartResponse = "response"
)

// ConfigError reports an invalid logger configuration. It is returned by
// constructors and never at log time.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	return "audit config: " + e.Field + ": " + e.Message
}

// Unwrap returns the underlying validation error, if any.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// DecodeError reports a non-empty body that could not be decoded.
type DecodeError struct {
	// Part is PartRequest or PartResponse.
	Part string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("audit: failed to decode %s body: %v", e.Part, e.Err)
}

// Unwrap returns the decoder error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
