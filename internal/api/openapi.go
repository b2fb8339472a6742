package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// Validator checks response bodies against the embedded OpenAPI document
type Validator struct {
	doc *openapi3.T
}

// NewValidator loads and validates the embedded OpenAPI document
func NewValidator() (*Validator, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(openAPIDocument)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}

	return &Validator{doc: doc}, nil
}

// Routes lists "METHOD route" for every documented operation
func (v *Validator) Routes() []string {
	var routes []string
	for _, path := range v.doc.Paths.InMatchingOrder() {
		item := v.doc.Paths.Value(path)
		for method := range item.Operations() {
			routes = append(routes, method+" "+path)
		}
	}
	sort.Strings(routes)
	return routes
}

// Validate checks body against the schema declared for method, route and status.
// Undocumented operations and statuses without a JSON schema pass.
func (v *Validator) Validate(method, route string, status int, body []byte) error {
	item := v.doc.Paths.Find(route)
	if item == nil {
		return nil
	}

	op := item.GetOperation(method)
	if op == nil || op.Responses == nil {
		return nil
	}

	ref := op.Responses.Status(status)
	if ref == nil {
		ref = op.Responses.Default()
	}
	if ref == nil || ref.Value == nil {
		return nil
	}

	media := ref.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return nil
	}

	var value interface{}
	if err := json.Unmarshal(body, &value); err != nil {
		return malformed(route, err)
	}

	if err := media.Schema.Value.VisitJSON(value); err != nil {
		return malformed(route, err)
	}

	return nil
}
