// Package mock attaches API Gateway mock integrations and example payloads to
// a generated Swagger document.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	genspec "github.com/mark3labs/resource-x/internal/spec"
)

// RequestValidatorName names the document-level request validator.
const RequestValidatorName = "all"

// Settings configures mock synthesis.
type Settings struct {
	Validator genspec.Validator
	Examples  ExampleGenerator
	// Strict turns example failures into errors instead of warnings.
	Strict bool
	Logger *slog.Logger
}

func DefaultSettings() Settings {
	return Settings{
		Validator: genspec.KinValidator{},
		Examples:  SchemaExamples{},
		Logger:    slog.New(slog.DiscardHandler),
	}
}

type Option func(*Settings)

func WithValidator(v genspec.Validator) Option       { return func(s *Settings) { s.Validator = v } }
func WithExampleGenerator(g ExampleGenerator) Option { return func(s *Settings) { s.Examples = g } }
func WithStrict(strict bool) Option                  { return func(s *Settings) { s.Strict = strict } }
func WithLogger(l *slog.Logger) Option               { return func(s *Settings) { s.Logger = l } }

// Synthesize returns a dereferenced copy of doc in which every operation
// carries a mock integration. Running it on its own output replaces the
// integrations rather than adding to them.
func Synthesize(ctx context.Context, doc *genspec.Document, opts ...Option) (*genspec.Document, error) {
	s := DefaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if s.Logger == nil {
		s.Logger = slog.New(slog.DiscardHandler)
	}
	if doc == nil {
		return nil, &genspec.SpecError{Code: genspec.InputError, Stage: "mock", Message: "nil document"}
	}

	if err := s.Validator.Validate(ctx, doc); err != nil {
		return nil, genspec.NewError(genspec.InvalidSpecificationError, "mock", err)
	}
	out, err := genspec.Dereference(doc)
	if err != nil {
		return nil, genspec.NewError(genspec.InvalidSpecificationError, "mock", err)
	}

	out.RequestValidators = genspec.NewOrderedMap[genspec.RequestValidator]()
	out.RequestValidators.Set(RequestValidatorName, genspec.RequestValidator{
		ValidateRequestBody:       true,
		ValidateRequestParameters: true,
	})
	out.RequestValidator = RequestValidatorName

	check := newConformance(out.Definitions)
	for path, item := range out.Paths.All() {
		methods := item.Methods()
		for _, m := range methods {
			op := item.Operation(m)
			if m == genspec.OPTIONS {
				op.Integration = corsIntegration(methods)
				continue
			}
			in, err := s.integration(ctx, out.Definitions, check, path, m, op)
			if err != nil {
				return nil, err
			}
			op.Integration = in
		}
	}
	s.Logger.Debug("mock integrations attached", "title", out.Info.Title, "operations", len(out.Operations()))

	if err := s.Validator.Validate(ctx, out); err != nil {
		return nil, genspec.NewError(genspec.InvalidSpecificationError, "mock", err)
	}
	return out, nil
}

func (s Settings) integration(ctx context.Context, defs *genspec.Definitions, check conformance, path string, m genspec.HttpMethod, op *genspec.Operation) (*genspec.Integration, error) {
	status, resp, ok := op.Responses.First()
	if !ok || status == genspec.DefaultIntegrationResponse {
		status = "200"
	}

	var body string
	if ok && resp != nil && resp.Schema != nil {
		example, err := s.example(ctx, defs, check, resp.Schema)
		if err != nil {
			merr := &genspec.SpecError{
				Code:        genspec.MockDataGenerationError,
				Stage:       "mock",
				Message:     fmt.Sprintf("%s %s: %v", strings.ToUpper(string(m)), path, err),
				JSONPointer: pointer("paths", path, string(m), "responses", status, "schema"),
				Cause:       err,
			}
			if s.Strict {
				return nil, merr
			}
			s.Logger.Warn("example generation failed, mocking without a body", "operation", op.OperationID, "error", err)
		} else {
			body = example
		}
	}

	requests := genspec.NewOrderedMap[string]()
	requests.Set(genspec.ContentTypeJSON, fmt.Sprintf(`{"statusCode": %s}`, status))
	response := genspec.IntegrationResponse{StatusCode: status}
	if body != "" {
		response.ResponseTemplates = genspec.NewOrderedMap[string]()
		response.ResponseTemplates.Set(genspec.ContentTypeJSON, body)
	}
	responses := genspec.NewOrderedMap[genspec.IntegrationResponse]()
	responses.Set(status, response)

	return &genspec.Integration{
		Type:                genspec.IntegrationTypeMock,
		RequestTemplates:    requests,
		Responses:           responses,
		PassthroughBehavior: genspec.PassthroughWhenNoMatch,
	}, nil
}

// example returns the compact JSON of a generated value that validates
// against schema.
func (s Settings) example(ctx context.Context, defs *genspec.Definitions, check conformance, schema genspec.Schema) (string, error) {
	value, err := s.Examples.Example(ctx, schema, defs)
	if err != nil {
		return "", err
	}
	if err := check.Validate(schema, value); err != nil {
		return "", fmt.Errorf("generated example does not conform: %w", err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func corsIntegration(methods []genspec.HttpMethod) *genspec.Integration {
	names := make([]string, 0, len(methods))
	for _, m := range methods {
		names = append(names, strings.ToUpper(string(m)))
	}
	params := genspec.NewOrderedMap[string]()
	params.Set("method.response.header.Access-Control-Allow-Headers", quote(genspec.CORSAllowHeaders))
	params.Set("method.response.header.Access-Control-Allow-Methods", quote(strings.Join(names, ",")))
	params.Set("method.response.header.Access-Control-Allow-Origin", quote(genspec.CORSAllowOrigin))

	templates := genspec.NewOrderedMap[string]()
	templates.Set(genspec.ContentTypeJSON, "{}")

	requests := genspec.NewOrderedMap[string]()
	requests.Set(genspec.ContentTypeJSON, `{"statusCode": 200}`)

	responses := genspec.NewOrderedMap[genspec.IntegrationResponse]()
	responses.Set(genspec.DefaultIntegrationResponse, genspec.IntegrationResponse{
		StatusCode:         "200",
		ResponseParameters: params,
		ResponseTemplates:  templates,
	})
	return &genspec.Integration{
		Type:                genspec.IntegrationTypeMock,
		RequestTemplates:    requests,
		Responses:           responses,
		PassthroughBehavior: genspec.PassthroughWhenNoMatch,
	}
}

// API Gateway expects static header values wrapped in single quotes.
func quote(v string) string { return "'" + v + "'" }

func pointer(parts ...string) string {
	r := strings.NewReplacer("~", "~0", "/", "~1")
	var b strings.Builder
	b.WriteString("#")
	for _, p := range parts {
		b.WriteString("/")
		b.WriteString(r.Replace(p))
	}
	return b.String()
}
