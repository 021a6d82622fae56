package policy

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBodyRules(t *testing.T) {
	t.Parallel()

	rules := DefaultBodyRules()
	assert.Equal(t, 100, rules.Len())

	tests := []struct {
		method, status string
		want           bool
	}{
		{"GET", "200 OK", true},
		{"POST", "201 Created", true},
		{"GET", "204 No Content", true},
		{"GET", "299", true},
		{"GET", "404 Not Found", false},
		{"POST", "500 Internal Server Error", false},
		{"GET", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rules.Excludes(tt.method, tt.status), "%s %s", tt.method, tt.status)
	}
}

func TestParseBodyRules_Mixed(t *testing.T) {
	t.Parallel()

	rules, err := ParseBodyRules([]any{
		204,
		"304",
		[]any{"GET", 404},
		[]string{"DELETE", "410"},
		map[string]any{"method": "PUT", "status": float64(409)},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, rules.Len())

	assert.True(t, rules.Excludes("POST", "204 No Content"))
	assert.True(t, rules.Excludes("GET", "304 Not Modified"))
	assert.True(t, rules.Excludes("GET", "404 Not Found"))
	assert.False(t, rules.Excludes("POST", "404 Not Found"))
	assert.True(t, rules.Excludes("DELETE", "410 Gone"))
	assert.True(t, rules.Excludes("PUT", "409 Conflict"))
	assert.False(t, rules.Excludes("GET", "200 OK"))
}

func TestParseBodyRules_NilAndEmpty(t *testing.T) {
	t.Parallel()

	rules, err := ParseBodyRules(nil)
	require.NoError(t, err)
	assert.True(t, rules.Excludes("GET", "200 OK"))

	rules, err = ParseBodyRules([]any{})
	require.NoError(t, err)
	assert.False(t, rules.Excludes("GET", "200 OK"))
	assert.Zero(t, rules.Len())
}

func TestParseBodyRules_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		item any
	}{
		{"word", "ok"},
		{"fraction", 20.5},
		{"bool", true},
		{"short pair", []any{"GET"}},
		{"long pair", []any{"GET", 200, "x"}},
		{"pair without method", []any{200, 200}},
		{"pair with bad status", []any{"GET", "teapot"}},
		{"map without status", map[string]any{"method": "GET"}},
		{"map with numeric method", map[string]any{"method": 5, "status": 404}},
		{"map with empty method", map[string]any{"method": "", "status": 404}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBodyRules([]any{200, tt.item})
			require.Error(t, err)

			var ruleErr *RuleError
			require.True(t, errors.As(err, &ruleErr))
			assert.Equal(t, tt.item, ruleErr.Rule)
		})
	}
}

func TestParseBodyRules_MapWithoutMethodIsStatusOnly(t *testing.T) {
	t.Parallel()

	rules, err := ParseBodyRules([]any{map[string]any{"status": 404}})
	require.NoError(t, err)
	assert.True(t, rules.Excludes("GET", "404 Not Found"))
	assert.True(t, rules.Excludes("POST", "404"))
}

func TestStatusCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "204", StatusCode("204 No Content"))
	assert.Equal(t, "500", StatusCode("500"))
	assert.Equal(t, "", StatusCode("  "))
}

func TestPathFilter(t *testing.T) {
	t.Parallel()

	filter, err := PathFilter("/health", "/internal/**")
	require.NoError(t, err)

	assert.True(t, filter(httptest.NewRequest(http.MethodGet, "/health", nil)))
	assert.True(t, filter(httptest.NewRequest(http.MethodGet, "/internal/metrics/raw", nil)))
	assert.False(t, filter(httptest.NewRequest(http.MethodGet, "/api/users", nil)))
	assert.False(t, filter(nil))
}

func TestPathFilter_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := PathFilter("/api/[")
	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "/api/[", ruleErr.Rule)
}

func TestExprFilter(t *testing.T) {
	t.Parallel()

	filter, err := ExprFilter(`method == "GET" && path startsWith "/health" || header["X-Audit"] == "off"`)
	require.NoError(t, err)

	assert.True(t, filter(httptest.NewRequest(http.MethodGet, "/healthz", nil)))
	assert.False(t, filter(httptest.NewRequest(http.MethodPost, "/healthz", nil)))

	r := httptest.NewRequest(http.MethodPost, "/orders", nil)
	r.Header.Set("X-Audit", "off")
	assert.True(t, filter(r))
}

func TestExprFilter_Invalid(t *testing.T) {
	t.Parallel()

	_, err := ExprFilter(`method ==`)
	var ruleErr *RuleError
	assert.ErrorAs(t, err, &ruleErr)

	_, err = ExprFilter(`path`)
	assert.ErrorAs(t, err, &ruleErr, "non-boolean expressions are rejected")
}

func TestAny(t *testing.T) {
	t.Parallel()

	health, err := PathFilter("/health")
	require.NoError(t, err)
	post, err := ExprFilter(`method == "POST"`)
	require.NoError(t, err)

	filter := Any(nil, health, post)
	assert.True(t, filter(httptest.NewRequest(http.MethodGet, "/health", nil)))
	assert.True(t, filter(httptest.NewRequest(http.MethodPost, "/x", nil)))
	assert.False(t, filter(httptest.NewRequest(http.MethodGet, "/x", nil)))

	assert.False(t, Any()(httptest.NewRequest(http.MethodGet, "/health", nil)))
}
