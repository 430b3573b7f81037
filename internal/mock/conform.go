package mock

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	genspec "github.com/mark3labs/resource-x/internal/spec"
)

const exampleSchemaURL = "mem://resource-x/example.json"

// conformance validates generated examples against their response schema.
// Swagger 2.0 schemas are a Draft 4 subset; unknown keywords such as
// "example" or "xml" are ignored by the validator.
type conformance struct {
	definitions map[string]any
}

func newConformance(defs *genspec.Definitions) conformance {
	c := conformance{definitions: map[string]any{}}
	for name, s := range defs.All() {
		c.definitions[name] = s
	}
	return c
}

func (c conformance) Validate(schema genspec.Schema, value any) error {
	doc := make(map[string]any, schema.Len()+1)
	for k, v := range schema.All() {
		doc[k] = v
	}
	if len(c.definitions) > 0 {
		doc["definitions"] = c.definitions
	}
	normalizedDoc, err := normalize(doc)
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	instance, err := normalize(value)
	if err != nil {
		return fmt.Errorf("example: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft4)
	if err := compiler.AddResource(exampleSchemaURL, normalizedDoc); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	sch, err := compiler.Compile(exampleSchemaURL)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return sch.Validate(instance)
}

// normalize re-decodes v the way the validator expects, with json.Number
// for every number.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}
