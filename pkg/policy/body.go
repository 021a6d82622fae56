package policy

import (
	"fmt"
	"strconv"
	"strings"
)

// RuleError reports a rule that is neither a status code nor a
// method/status pair, or a filter that cannot be compiled.
type RuleError struct {
	Rule    any
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("policy: rule %v: %s", e.Rule, e.Message)
}

type ruleKey struct {
	method string // empty for status-only rules
	status string
}

// BodyRules is a set of status codes and (method, status) pairs whose
// response bodies are left out of the log.
type BodyRules struct {
	keys map[ruleKey]struct{}
}

// DefaultBodyRules returns rules matching every 2xx status.
func DefaultBodyRules() BodyRules {
	rules := BodyRules{keys: make(map[ruleKey]struct{}, 100)}
	for code := 200; code < 300; code++ {
		rules.keys[ruleKey{status: strconv.Itoa(code)}] = struct{}{}
	}
	return rules
}

// ParseBodyRules builds a rule set from a mixed list. Each element is one of:
//
//   - a status code as an integer or string: 204, "204"
//   - a two-element list [method, status]: ["GET", 404]
//   - a map with method and status keys: {method: GET, status: 404}
//
// A nil list yields DefaultBodyRules. An empty, non-nil list yields a rule
// set that matches nothing.
func ParseBodyRules(items []any) (BodyRules, error) {
	if items == nil {
		return DefaultBodyRules(), nil
	}

	rules := BodyRules{keys: make(map[ruleKey]struct{}, len(items))}
	for _, item := range items {
		key, err := parseRule(item)
		if err != nil {
			return BodyRules{}, err
		}
		rules.keys[key] = struct{}{}
	}
	return rules, nil
}

func parseRule(item any) (ruleKey, error) {
	switch v := item.(type) {
	case []any:
		if len(v) != 2 {
			return ruleKey{}, &RuleError{Rule: item, Message: "method/status pair must have exactly two elements"}
		}
		method, ok := v[0].(string)
		if !ok || method == "" {
			return ruleKey{}, &RuleError{Rule: item, Message: "method must be a non-empty string"}
		}
		status, ok := statusString(v[1])
		if !ok {
			return ruleKey{}, &RuleError{Rule: item, Message: "status must be a status code"}
		}
		return ruleKey{method: method, status: status}, nil
	case []string:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return parseRule(items)
	case map[string]any:
		var method string
		if raw, present := v["method"]; present {
			m, ok := raw.(string)
			if !ok || m == "" {
				return ruleKey{}, &RuleError{Rule: item, Message: "method must be a non-empty string"}
			}
			method = m
		}
		status, ok := statusString(v["status"])
		if !ok {
			return ruleKey{}, &RuleError{Rule: item, Message: "status must be a status code"}
		}
		return ruleKey{method: method, status: status}, nil
	default:
		status, ok := statusString(item)
		if !ok {
			return ruleKey{}, &RuleError{Rule: item, Message: "must be a status code or a method/status pair"}
		}
		return ruleKey{status: status}, nil
	}
}

func statusString(v any) (string, bool) {
	var s string
	switch n := v.(type) {
	case int:
		s = strconv.Itoa(n)
	case int64:
		s = strconv.FormatInt(n, 10)
	case uint64:
		s = strconv.FormatUint(n, 10)
	case float64:
		if n != float64(int(n)) {
			return "", false
		}
		s = strconv.Itoa(int(n))
	case string:
		s = strings.TrimSpace(n)
	default:
		return "", false
	}
	if _, err := strconv.Atoi(s); err != nil || s == "" {
		return "", false
	}
	return s, true
}

// Excludes reports whether the response body should be left out. status
// may be a bare code ("204") or a status line ("204 No Content").
func (b BodyRules) Excludes(method, status string) bool {
	code := StatusCode(status)
	if code == "" {
		return false
	}
	if _, ok := b.keys[ruleKey{status: code}]; ok {
		return true
	}
	_, ok := b.keys[ruleKey{method: method, status: code}]
	return ok
}

// Len returns the number of rules.
func (b BodyRules) Len() int {
	return len(b.keys)
}

// StatusCode returns the leading code token of a status line.
func StatusCode(status string) string {
	fields := strings.Fields(status)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
