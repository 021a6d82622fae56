package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"mime"
	"strings"

	"github.com/getmockd/reqaudit/pkg/tracing"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Keys written by the built-in enrichers.
const (
	KeyRequestID        = "request_id"
	KeyDuration         = "duration_ms"
	KeyTraceID          = "trace_id"
	KeySpanID           = "span_id"
	KeySampled          = "sampled"
	KeySubject          = "subject"
	KeyIssuer           = "issuer"
	KeyGraphQLOperation = "graphql_operation"
	KeyGraphQLType      = "graphql_type"
)

// DefaultRequestIDHeader is the header RequestID reads when none is given.
const DefaultRequestIDHeader = "X-Request-Id"

// Static adds the same values to every entry.
func Static[R any](values map[string]any) Enricher[R] {
	fixed := maps.Clone(values)
	return func(context.Context, R) map[string]any {
		return maps.Clone(fixed)
	}
}

// RequestID copies a request identifier header into request_id. The request
// header is preferred; the response header is used when a server assigned
// the id.
func RequestID[R any](src Source[R], header string) Enricher[R] {
	if header == "" {
		header = DefaultRequestIDHeader
	}
	return func(ctx context.Context, resp R) map[string]any {
		id := src.RequestHeader(ctx, resp).Get(header)
		if id == "" {
			id = src.ResponseHeader(resp).Get(header)
		}
		if id == "" {
			return nil
		}
		return map[string]any{KeyRequestID: id}
	}
}

// Duration records the time spent on the exchange in milliseconds.
func Duration[R any](src Source[R]) Enricher[R] {
	return func(ctx context.Context, resp R) map[string]any {
		elapsed, ok := src.Elapsed(ctx, resp)
		if !ok {
			return nil
		}
		return map[string]any{KeyDuration: elapsed.Milliseconds()}
	}
}

// TraceContext records the W3C trace context carried by the request.
func TraceContext[R any](src Source[R]) Enricher[R] {
	return func(ctx context.Context, resp R) map[string]any {
		sc, ok := tracing.FromHeader(src.RequestHeader(ctx, resp))
		if !ok {
			sc = tracing.SpanContextFromContext(ctx)
			if !sc.IsValid() {
				return nil
			}
		}
		return map[string]any{
			KeyTraceID: sc.TraceID,
			KeySpanID:  sc.SpanID,
			KeySampled: sc.Sampled,
		}
	}
}

// JWTSubject records the subject and issuer of a bearer token. The token
// signature is not verified: the values identify the caller for the audit
// trail only and must not be used for authorisation.
func JWTSubject[R any](src Source[R]) Enricher[R] {
	p := jwt.NewParser()
	return func(ctx context.Context, resp R) map[string]any {
		raw, ok := bearerToken(src.RequestHeader(ctx, resp).Get("Authorization"))
		if !ok {
			return nil
		}

		claims := jwt.MapClaims{}
		if _, _, err := p.ParseUnverified(raw, claims); err != nil {
			return nil
		}

		out := make(map[string]any, 2)
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			out[KeySubject] = sub
		}
		if iss, err := claims.GetIssuer(); err == nil && iss != "" {
			out[KeyIssuer] = iss
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// JSONPath extracts values from a JSON response body. paths maps a meta key
// to a JSONPath expression such as "$.data.id". A path with one match
// records that value; several matches record a list; no match records
// nothing. Expressions are compiled up front. Bodies left out of the entry
// by the body rules are not read.
func JSONPath[R any](src Source[R], paths map[string]string) (Enricher[R], error) {
	compiled := make(map[string]jp.Expr, len(paths))
	for key, path := range paths {
		x, err := jp.ParseString(path)
		if err != nil {
			return nil, fmt.Errorf("meta: invalid JSONPath %q for %q: %w", path, key, err)
		}
		compiled[key] = x
	}

	return func(ctx context.Context, resp R) map[string]any {
		if bodyExcluded(ctx, src, resp) {
			return nil
		}
		body := src.ResponseBody(resp)
		if len(body) == 0 {
			return nil
		}
		data, err := oj.Parse(body)
		if err != nil {
			return nil
		}

		out := make(map[string]any, len(compiled))
		for key, x := range compiled {
			switch results := x.Get(data); len(results) {
			case 0:
			case 1:
				out[key] = results[0]
			default:
				out[key] = results
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}, nil
}

// graphQLRequest is the JSON body of a GraphQL-over-HTTP POST.
type graphQLRequest struct {
	Query         string `json:"query"`
	OperationName string `json:"operationName"`
}

// GraphQLOperation records the operation name and type of a GraphQL request.
// It understands JSON bodies ({"query": ..., "operationName": ...}) and raw
// application/graphql bodies. Other requests add nothing.
func GraphQLOperation[R any](src Source[R]) Enricher[R] {
	return func(ctx context.Context, resp R) map[string]any {
		body := src.RequestBody(ctx, resp)
		if len(body) == 0 {
			return nil
		}

		var req graphQLRequest
		mediaType, _, _ := mime.ParseMediaType(src.RequestHeader(ctx, resp).Get("Content-Type"))
		if mediaType == "application/graphql" {
			req.Query = string(body)
		} else if err := json.Unmarshal(body, &req); err != nil || req.Query == "" {
			return nil
		}

		doc, err := parser.ParseQuery(&ast.Source{Input: req.Query})
		if err != nil {
			return nil
		}

		var op *ast.OperationDefinition
		for _, def := range doc.Operations {
			if req.OperationName == "" || def.Name == req.OperationName {
				op = def
				break
			}
		}
		if op == nil {
			return nil
		}

		out := map[string]any{KeyGraphQLType: string(op.Operation)}
		if op.Name != "" {
			out[KeyGraphQLOperation] = op.Name
		}
		return out
	}
}
