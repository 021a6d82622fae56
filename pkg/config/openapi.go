package config

import (
	"fmt"
	"slices"

	"github.com/getkin/kin-openapi/openapi3"
)

// SensitiveExtension marks a schema property as sensitive in an OpenAPI
// document.
const SensitiveExtension = "x-sensitive-data"

// SensitiveFieldsFromOpenAPI loads an OpenAPI 3 document and returns the
// sorted names of properties that hold secrets: those with format
// password, those marked writeOnly, and those carrying x-sensitive-data:
// true. Component schemas, request bodies, responses and parameters are
// all searched.
func SensitiveFieldsFromOpenAPI(path string) ([]string, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	return SensitiveFields(doc), nil
}

// SensitiveFields returns the sensitive property names declared in doc.
func SensitiveFields(doc *openapi3.T) []string {
	w := &sensitiveWalker{
		seen:   make(map[*openapi3.Schema]bool),
		fields: make(map[string]struct{}),
	}

	if doc.Components != nil {
		for _, ref := range doc.Components.Schemas {
			w.walk(ref)
		}
	}

	if doc.Paths != nil {
		for _, item := range doc.Paths.Map() {
			w.params(item.Parameters)
			for _, op := range item.Operations() {
				w.params(op.Parameters)
				if op.RequestBody != nil && op.RequestBody.Value != nil {
					w.content(op.RequestBody.Value.Content)
				}
				if op.Responses != nil {
					for _, resp := range op.Responses.Map() {
						if resp != nil && resp.Value != nil {
							w.content(resp.Value.Content)
						}
					}
				}
			}
		}
	}

	out := make([]string, 0, len(w.fields))
	for name := range w.fields {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

type sensitiveWalker struct {
	seen   map[*openapi3.Schema]bool
	fields map[string]struct{}
}

func (w *sensitiveWalker) params(params openapi3.Parameters) {
	for _, p := range params {
		if p == nil || p.Value == nil {
			continue
		}
		if p.Value.Schema != nil && isSensitive(p.Value.Schema.Value) {
			w.fields[p.Value.Name] = struct{}{}
		}
		if isMarked(p.Value.Extensions) {
			w.fields[p.Value.Name] = struct{}{}
		}
		w.walk(p.Value.Schema)
	}
}

func (w *sensitiveWalker) content(content openapi3.Content) {
	for _, media := range content {
		if media != nil {
			w.walk(media.Schema)
		}
	}
}

func (w *sensitiveWalker) walk(ref *openapi3.SchemaRef) {
	if ref == nil || ref.Value == nil {
		return
	}
	schema := ref.Value
	if w.seen[schema] {
		return
	}
	w.seen[schema] = true

	for name, prop := range schema.Properties {
		if prop != nil && isSensitive(prop.Value) {
			w.fields[name] = struct{}{}
		}
		w.walk(prop)
	}
	w.walk(schema.Items)
	w.walk(schema.AdditionalProperties.Schema)
	w.walk(schema.Not)
	for _, group := range []openapi3.SchemaRefs{schema.AllOf, schema.AnyOf, schema.OneOf} {
		for _, sub := range group {
			w.walk(sub)
		}
	}
}

func isSensitive(s *openapi3.Schema) bool {
	if s == nil {
		return false
	}
	return s.Format == "password" || s.WriteOnly || isMarked(s.Extensions)
}

func isMarked(ext map[string]any) bool {
	switch v := ext[SensitiveExtension].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}
