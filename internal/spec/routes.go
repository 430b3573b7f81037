package spec

import (
	"context"
	"fmt"
	"log/slog"
)

// Settings configures document synthesis.
type Settings struct {
	// Version is written to info.version.
	Version string
	// CORS adds an OPTIONS preflight operation to every path.
	CORS      bool
	Namer     Namer
	Validator Validator
	Logger    *slog.Logger
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		Version:   DefaultVersion,
		CORS:      true,
		Namer:     DefaultNamer(),
		Validator: KinValidator{},
		Logger:    slog.New(slog.DiscardHandler),
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithVersion(v string) Option      { return func(s *Settings) { s.Version = v } }
func WithCORS(enabled bool) Option     { return func(s *Settings) { s.CORS = enabled } }
func WithNamer(n Namer) Option         { return func(s *Settings) { s.Namer = n } }
func WithValidator(v Validator) Option { return func(s *Settings) { s.Validator = v } }
func WithLogger(l *slog.Logger) Option { return func(s *Settings) { s.Logger = l } }

// CORS header values announced by preflight operations.
const (
	CORSAllowHeaders = "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token"
	CORSAllowOrigin  = "*"
)

// CORSHeaders lists the response headers a preflight operation declares.
var CORSHeaders = []string{
	"Access-Control-Allow-Headers",
	"Access-Control-Allow-Methods",
	"Access-Control-Allow-Origin",
}

// Build synthesizes a Swagger 2.0 document with a collection and an item path
// per definition. The raw definitions are validated before any route is added
// and the complete document is validated and bundled afterwards. On failure no
// document is returned.
func Build(ctx context.Context, defs *Definitions, title string, opts ...Option) (*Document, error) {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.Logger == nil {
		settings.Logger = slog.New(slog.DiscardHandler)
	}

	doc := NewDocument(title, settings.Version)
	if defs != nil {
		for name, schema := range defs.All() {
			doc.Definitions.Set(name, schema)
		}
	}

	if err := settings.validate(ctx, "definitions", doc); err != nil {
		return nil, err
	}

	for _, name := range doc.Definitions.Keys() {
		addResource(doc, name, settings)
	}
	settings.Logger.Debug("routes synthesized", "title", title, "types", doc.Definitions.Len(), "paths", doc.Paths.Len())

	if err := settings.validate(ctx, "routes", doc); err != nil {
		return nil, err
	}
	bundled, err := Bundle(doc)
	if err != nil {
		return nil, NewError(InvalidSpecificationError, "bundle", err)
	}
	return bundled, nil
}

func addResource(doc *Document, name string, s Settings) {
	collection := s.Namer.Plural(name)
	ref := NewSchema()
	ref.Set("$ref", DefinitionRef(name))
	array := NewSchema()
	array.Set("type", "array")
	array.Set("items", ref)
	idParam := PathParameter(name+"Id", "integer", "int64")
	tags := []string{collection}

	doc.Tags = append(doc.Tags, Tag{Name: collection})

	list := &PathItem{
		Get: &Operation{
			Tags:        tags,
			OperationID: s.Namer.CamelCase(string(GET), collection),
			Responses:   responses("200", array),
		},
		Post: &Operation{
			Tags:        tags,
			OperationID: s.Namer.CamelCase(string(POST), collection),
			Parameters:  []Parameter{BodyParameter("body", ref)},
			Responses:   responses("201", ref),
		},
	}
	item := &PathItem{
		Get: &Operation{
			Tags:        tags,
			OperationID: s.Namer.CamelCase(string(GET), name),
			Parameters:  []Parameter{idParam},
			Responses:   responses("200", ref),
		},
		Put: &Operation{
			Tags:        tags,
			OperationID: s.Namer.CamelCase(string(PUT), name),
			Parameters:  []Parameter{idParam, BodyParameter("body", ref)},
			Responses:   responses("204", nil),
		},
		Delete: &Operation{
			Tags:        tags,
			OperationID: s.Namer.CamelCase(string(DELETE), name),
			Parameters:  []Parameter{idParam},
			Responses:   responses("204", nil),
		},
	}
	if s.CORS {
		list.Options = preflight(s.Namer.CamelCase(string(OPTIONS), collection))
		item.Options = preflight(s.Namer.CamelCase(string(OPTIONS), name), idParam)
	}

	doc.Paths.Set("/"+collection, list)
	doc.Paths.Set(fmt.Sprintf("/%s/{%sId}", collection, name), item)
}

func responses(status string, schema Schema) *OrderedMap[*Response] {
	out := NewOrderedMap[*Response]()
	out.Set(status, &Response{Description: statusDescription(status), Schema: schema})
	return out
}

func preflight(id string, params ...Parameter) *Operation {
	headers := NewOrderedMap[Header]()
	for _, h := range CORSHeaders {
		headers.Set(h, Header{Type: "string"})
	}
	out := NewOrderedMap[*Response]()
	out.Set("200", &Response{Description: "CORS preflight", Headers: headers})
	return &Operation{
		Tags:        []string{CORSTag},
		OperationID: id,
		Parameters:  params,
		Responses:   out,
	}
}

func statusDescription(status string) string {
	switch status {
	case "200":
		return "OK"
	case "201":
		return "Created"
	case "204":
		return "No Content"
	}
	return ""
}

// DefinitionRef returns the local reference to a named definition.
func DefinitionRef(name string) string {
	return "#/definitions/" + name
}
