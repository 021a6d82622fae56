package policy

import (
	"fmt"
	"net/http"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// RequestFilter reports whether a request must not be logged at all.
type RequestFilter func(r *http.Request) bool

// Never is the default filter: every request is logged.
func Never(*http.Request) bool { return false }

// Any combines filters; the request is excluded if any of them excludes it.
// Nil filters are skipped.
func Any(filters ...RequestFilter) RequestFilter {
	var active []RequestFilter
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	switch len(active) {
	case 0:
		return Never
	case 1:
		return active[0]
	}
	return func(r *http.Request) bool {
		for _, f := range active {
			if f(r) {
				return true
			}
		}
		return false
	}
}

// PathFilter excludes requests whose URL path matches any of the glob
// patterns. Patterns use doublestar syntax, so "/internal/**" matches every
// path below /internal.
func PathFilter(patterns ...string) (RequestFilter, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, &RuleError{Rule: p, Message: "invalid path pattern"}
		}
	}
	if len(patterns) == 0 {
		return Never, nil
	}

	pats := append([]string(nil), patterns...)
	return func(r *http.Request) bool {
		if r == nil || r.URL == nil {
			return false
		}
		for _, p := range pats {
			if ok, _ := doublestar.Match(p, r.URL.Path); ok {
				return true
			}
		}
		return false
	}, nil
}

// exprEnv is the sample environment used to type-check filter expressions.
func exprEnv(r *http.Request) map[string]any {
	env := map[string]any{
		"method":        "",
		"path":          "",
		"host":          "",
		"query":         "",
		"header":        map[string]string{},
		"contentLength": int64(0),
	}
	if r == nil {
		return env
	}

	header := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			header[name] = values[0]
		}
	}
	env["method"] = r.Method
	env["host"] = r.Host
	env["header"] = header
	env["contentLength"] = r.ContentLength
	if r.URL != nil {
		env["path"] = r.URL.Path
		env["query"] = r.URL.RawQuery
	}
	return env
}

// ExprFilter compiles a boolean expression over the request. The expression
// sees method, path, host, query, header (canonical name to first value) and
// contentLength, for example:
//
//	method == "GET" && path startsWith "/health"
func ExprFilter(src string) (RequestFilter, error) {
	program, err := expr.Compile(src, expr.Env(exprEnv(nil)), expr.AsBool())
	if err != nil {
		return nil, &RuleError{Rule: src, Message: fmt.Sprintf("invalid expression: %v", err)}
	}
	return exprFilter(program), nil
}

func exprFilter(program *vm.Program) RequestFilter {
	return func(r *http.Request) bool {
		if r == nil {
			return false
		}
		out, err := expr.Run(program, exprEnv(r))
		if err != nil {
			return false
		}
		excluded, _ := out.(bool)
		return excluded
	}
}
