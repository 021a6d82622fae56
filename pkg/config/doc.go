// Package config loads audit logger configuration from YAML or JSON files.
//
// A file is checked in two passes. The document is first validated against
// an embedded JSON schema, which catches wrong types and unknown keys. The
// decoded Config is then validated semantically: body rules, path patterns,
// filter expressions and JSONPath queries must all compile.
//
// Example:
//
//	logger: http.audit
//	sensitiveFields: [password, token]
//	mask: "*"
//	noResponseBody: [204, [GET, 404]]
//	excludePaths: ["/health", "/internal/**"]
//	meta:
//	  timing: true
//	  trace: true
//
// Environment variables prefixed with REQAUDIT_ override file values; see
// ApplyEnv.
package config
