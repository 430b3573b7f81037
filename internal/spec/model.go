package spec

import (
	"encoding/json"
	"fmt"
)

// Swagger 2.0 document model. Maps whose order shows up in the output are
// OrderedMaps; vendor extensions used by the gateway are closed fields.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	PATCH   HttpMethod = "patch"
	DELETE  HttpMethod = "delete"
	OPTIONS HttpMethod = "options"
	HEAD    HttpMethod = "head"
)

// Methods lists HTTP methods in the order operations are serialized.
var Methods = []HttpMethod{GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD}

const (
	SwaggerVersion  = "2.0"
	DefaultVersion  = "1.0.0"
	ContentTypeJSON = "application/json"
	CORSTag         = "cors"
)

// Schema is a JSON-Schema fragment. Nested objects are *OrderedMap[any] so
// keys serialize in the order they were written.
type Schema = *OrderedMap[any]

func NewSchema() Schema { return NewOrderedMap[any]() }

// ParseSchema decodes a JSON object into a Schema.
func ParseSchema(data []byte) (Schema, error) {
	s := NewSchema()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

// MustParseSchema is like ParseSchema but panics on malformed input.
func MustParseSchema(data string) Schema {
	s, err := ParseSchema([]byte(data))
	if err != nil {
		panic(fmt.Sprintf("spec: MustParseSchema(%q): %v", data, err))
	}
	return s
}

// Definitions maps type names to schemas in the order they were discovered.
type Definitions = OrderedMap[Schema]

// NewDefinitions returns an empty definitions map.
func NewDefinitions() *Definitions { return NewOrderedMap[Schema]() }

type Document struct {
	Swagger           string                        `json:"swagger"`
	Info              Info                          `json:"info"`
	Consumes          []string                      `json:"consumes,omitempty"`
	Produces          []string                      `json:"produces,omitempty"`
	Tags              []Tag                         `json:"tags,omitempty"`
	Paths             *OrderedMap[*PathItem]        `json:"paths"`
	Definitions       *Definitions                  `json:"definitions"`
	RequestValidators *OrderedMap[RequestValidator] `json:"x-amazon-apigateway-request-validators,omitempty"`
	RequestValidator  string                        `json:"x-amazon-apigateway-request-validator,omitempty"`
}

type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type RequestValidator struct {
	ValidateRequestBody       bool `json:"validateRequestBody"`
	ValidateRequestParameters bool `json:"validateRequestParameters"`
}

// NewDocument returns an empty Swagger 2.0 envelope.
func NewDocument(title, version string) *Document {
	if version == "" {
		version = DefaultVersion
	}
	return &Document{
		Swagger:     SwaggerVersion,
		Info:        Info{Title: title, Version: version},
		Consumes:    []string{ContentTypeJSON},
		Produces:    []string{ContentTypeJSON},
		Paths:       NewOrderedMap[*PathItem](),
		Definitions: NewDefinitions(),
	}
}

type PathItem struct {
	Get     *Operation `json:"get,omitempty"`
	Post    *Operation `json:"post,omitempty"`
	Put     *Operation `json:"put,omitempty"`
	Patch   *Operation `json:"patch,omitempty"`
	Delete  *Operation `json:"delete,omitempty"`
	Options *Operation `json:"options,omitempty"`
	Head    *Operation `json:"head,omitempty"`
}

func (p *PathItem) slot(m HttpMethod) **Operation {
	switch m {
	case GET:
		return &p.Get
	case POST:
		return &p.Post
	case PUT:
		return &p.Put
	case PATCH:
		return &p.Patch
	case DELETE:
		return &p.Delete
	case OPTIONS:
		return &p.Options
	case HEAD:
		return &p.Head
	}
	return nil
}

// Operation returns the operation bound to m, or nil.
func (p *PathItem) Operation(m HttpMethod) *Operation {
	if s := p.slot(m); s != nil {
		return *s
	}
	return nil
}

func (p *PathItem) SetOperation(m HttpMethod, op *Operation) {
	if s := p.slot(m); s != nil {
		*s = op
	}
}

// Methods returns the methods that have an operation, in serialization order.
func (p *PathItem) Methods() []HttpMethod {
	var out []HttpMethod
	for _, m := range Methods {
		if p.Operation(m) != nil {
			out = append(out, m)
		}
	}
	return out
}

type Operation struct {
	Tags        []string               `json:"tags,omitempty"`
	Summary     string                 `json:"summary,omitempty"`
	OperationID string                 `json:"operationId"`
	Parameters  []Parameter            `json:"parameters,omitempty"`
	Responses   *OrderedMap[*Response] `json:"responses"`
	Integration *Integration           `json:"x-amazon-apigateway-integration,omitempty"`
}

type ParameterKind string

const (
	InPath  ParameterKind = "path"
	InQuery ParameterKind = "query"
	InBody  ParameterKind = "body"
)

// Parameter is one of the path, query or body variants. Simple variants carry
// Type/Format, the body variant carries Schema.
type Parameter struct {
	Name        string        `json:"name"`
	In          ParameterKind `json:"in"`
	Description string        `json:"description,omitempty"`
	Required    bool          `json:"required,omitempty"`
	Type        string        `json:"type,omitempty"`
	Format      string        `json:"format,omitempty"`
	Schema      Schema        `json:"schema,omitempty"`
}

func PathParameter(name, typ, format string) Parameter {
	return Parameter{Name: name, In: InPath, Required: true, Type: typ, Format: format}
}

func QueryParameter(name, typ string, required bool) Parameter {
	return Parameter{Name: name, In: InQuery, Required: required, Type: typ}
}

func BodyParameter(name string, schema Schema) Parameter {
	return Parameter{Name: name, In: InBody, Required: true, Schema: schema}
}

func (p *Parameter) UnmarshalJSON(data []byte) error {
	type parameter Parameter
	var raw parameter
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.In {
	case InPath, InQuery, InBody:
	default:
		return fmt.Errorf("parameter %q: unsupported location %q", raw.Name, raw.In)
	}
	*p = Parameter(raw)
	return nil
}

type Response struct {
	Description string              `json:"description"`
	Schema      Schema              `json:"schema,omitempty"`
	Headers     *OrderedMap[Header] `json:"headers,omitempty"`
}

type Header struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Integration is the x-amazon-apigateway-integration extension. When Ref is
// set it stands for an externally supplied integration and serializes as that
// bare string.
type Integration struct {
	Type                string                           `json:"type"`
	RequestTemplates    *OrderedMap[string]              `json:"requestTemplates,omitempty"`
	Responses           *OrderedMap[IntegrationResponse] `json:"responses,omitempty"`
	PassthroughBehavior string                           `json:"passthroughBehavior"`

	Ref string `json:"-"`
}

const (
	IntegrationTypeMock        = "mock"
	PassthroughWhenNoMatch     = "when_no_match"
	DefaultIntegrationResponse = "default"
)

type IntegrationResponse struct {
	StatusCode         string              `json:"statusCode"`
	ResponseParameters *OrderedMap[string] `json:"responseParameters,omitempty"`
	ResponseTemplates  *OrderedMap[string] `json:"responseTemplates,omitempty"`
}

func (i Integration) MarshalJSON() ([]byte, error) {
	if i.Ref != "" {
		return json.Marshal(i.Ref)
	}
	type integration Integration
	return json.Marshal(integration(i))
}

func (i *Integration) UnmarshalJSON(data []byte) error {
	var ref string
	if err := json.Unmarshal(data, &ref); err == nil {
		*i = Integration{Ref: ref}
		return nil
	}
	type integration Integration
	var raw integration
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Integration(raw)
	return nil
}

// OperationRef locates an operation inside a document.
type OperationRef struct {
	Path      string
	Method    HttpMethod
	Operation *Operation
}

// Operations lists every operation in path order, then method order.
func (d *Document) Operations() []OperationRef {
	var out []OperationRef
	for path, item := range d.Paths.All() {
		if item == nil {
			continue
		}
		for _, m := range item.Methods() {
			out = append(out, OperationRef{Path: path, Method: m, Operation: item.Operation(m)})
		}
	}
	return out
}

// Mocked reports whether the request validator is set and every operation
// carries a concrete integration.
func (d *Document) Mocked() bool {
	if d.RequestValidator == "" {
		return false
	}
	for _, ref := range d.Operations() {
		in := ref.Operation.Integration
		if in == nil || in.Ref != "" {
			return false
		}
	}
	return true
}

// Clone returns a deep copy made through an order-preserving JSON round trip.
func (d *Document) Clone() (*Document, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	out.ensure()
	return &out, nil
}

// ensure replaces nil maps left behind by decoding "null" or missing fields.
func (d *Document) ensure() {
	if d.Paths == nil {
		d.Paths = NewOrderedMap[*PathItem]()
	}
	if d.Definitions == nil {
		d.Definitions = NewDefinitions()
	}
}
