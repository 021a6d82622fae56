package config

import (
	"os"
	"strings"

	"github.com/getmockd/reqaudit/pkg/mask"
)

// Environment variable names
const (
	EnvConfig          = "REQAUDIT_CONFIG"
	EnvLogger          = "REQAUDIT_LOGGER"
	EnvMask            = "REQAUDIT_MASK"
	EnvSensitiveFields = "REQAUDIT_SENSITIVE_FIELDS"
	EnvLogLevel        = "REQAUDIT_LOG_LEVEL"
	EnvLogFormat       = "REQAUDIT_LOG_FORMAT"
	EnvLokiURL         = "REQAUDIT_LOKI_URL"
)

// MaskDrop is the REQAUDIT_MASK value that drops sensitive fields.
const MaskDrop = "none"

// ApplyEnv overrides cfg with the REQAUDIT_* variables that are set and
// returns the names of the variables it applied.
// REQAUDIT_SENSITIVE_FIELDS is a comma-separated list that replaces the
// configured fields.
func ApplyEnv(cfg *Config) []string {
	return applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) []string {
	var applied []string
	set := func(name string) (string, bool) {
		v, ok := lookup(name)
		if !ok || v == "" {
			return "", false
		}
		applied = append(applied, name)
		return v, true
	}

	if v, ok := set(EnvLogger); ok {
		cfg.Logger = v
	}
	if v, ok := set(EnvMask); ok {
		if strings.EqualFold(v, MaskDrop) {
			cfg.Mask = nil
		} else {
			cfg.Mask = mask.Token(v)
		}
	}
	if v, ok := set(EnvSensitiveFields); ok {
		cfg.SensitiveFields = splitList(v)
	}
	if v, ok := set(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
	if v, ok := set(EnvLogFormat); ok {
		cfg.Logging.Format = v
	}
	if v, ok := set(EnvLokiURL); ok {
		cfg.Logging.LokiURL = v
	}
	return applied
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
