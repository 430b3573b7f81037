package spec

import (
	"context"
	"encoding/json"
	"fmt"

	openapi2 "github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
)

// Validator checks a candidate document and reports a descriptive error when
// it is not a valid Swagger 2.0 description.
type Validator interface {
	Validate(ctx context.Context, doc *Document) error
}

// ValidatorFunc adapts a plain function to Validator.
type ValidatorFunc func(ctx context.Context, doc *Document) error

func (f ValidatorFunc) Validate(ctx context.Context, doc *Document) error { return f(ctx, doc) }

// KinValidator validates by decoding into kin-openapi's Swagger 2.0 model,
// converting to OpenAPI 3 and running its validator. Every $ref must resolve
// during conversion.
type KinValidator struct{}

func (KinValidator) Validate(ctx context.Context, doc *Document) error {
	if doc == nil {
		return fmt.Errorf("nil document")
	}
	if doc.Swagger != SwaggerVersion {
		return fmt.Errorf("unsupported swagger version %q", doc.Swagger)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	var v2 openapi2.T
	if err := json.Unmarshal(data, &v2); err != nil {
		return fmt.Errorf("decode swagger 2.0: %w", err)
	}
	v3, err := openapi2conv.ToV3(&v2)
	if err != nil {
		return fmt.Errorf("convert v2→v3: %w", err)
	}
	// Conversion leaves Paths nil for a document without routes.
	if v3.Paths == nil {
		v3.Paths = openapi3.Paths{}
	}
	return v3.Validate(ctx)
}

func (s *Settings) validate(ctx context.Context, stage string, doc *Document) error {
	if err := s.Validator.Validate(ctx, doc); err != nil {
		s.Logger.Debug("validation failed", "stage", stage, "error", err)
		return NewError(InvalidSpecificationError, stage, err)
	}
	return nil
}
