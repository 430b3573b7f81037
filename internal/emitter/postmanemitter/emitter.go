// Package postmanemitter renders a Swagger document as a Postman v2.1
// collection so the generated API can be exercised by hand.
package postmanemitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mark3labs/resource-x/internal/mock"
	genspec "github.com/mark3labs/resource-x/internal/spec"
)

const (
	// FileName is the conventional name of the emitted collection.
	FileName = "postman.json"

	SchemaURL      = "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"
	DefaultBaseURL = "http://localhost:3000"
	baseURLVar     = "baseUrl"
	untagged       = "default"
)

// Options controls the rendered collection.
type Options struct {
	BaseURL  string                // value of the {{baseUrl}} variable
	Examples mock.ExampleGenerator // request body generator; defaults to mock.SchemaExamples
	Logger   *slog.Logger
}

type collection struct {
	Info     info       `json:"info"`
	Item     []folder   `json:"item"`
	Variable []variable `json:"variable"`
}

type info struct {
	PostmanID string `json:"_postman_id"`
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
	Schema    string `json:"schema"`
}

type folder struct {
	Name string `json:"name"`
	Item []item `json:"item"`
}

type item struct {
	Name     string  `json:"name"`
	Request  request `json:"request"`
	Response []any   `json:"response"`
}

type request struct {
	Method string     `json:"method"`
	Header []variable `json:"header"`
	Body   *body      `json:"body,omitempty"`
	URL    url        `json:"url"`
}

type body struct {
	Mode    string      `json:"mode"`
	Raw     string      `json:"raw"`
	Options bodyOptions `json:"options"`
}

type bodyOptions struct {
	Raw struct {
		Language string `json:"language"`
	} `json:"raw"`
}

type url struct {
	Raw      string     `json:"raw"`
	Host     []string   `json:"host"`
	Path     []string   `json:"path"`
	Variable []variable `json:"variable,omitempty"`
}

type variable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Emit returns the collection JSON for doc. Preflight operations are skipped.
func Emit(ctx context.Context, doc *genspec.Document, opts Options) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("postmanemitter: nil document")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Examples == nil {
		opts.Examples = mock.SchemaExamples{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	c := collection{
		Info: info{
			PostmanID: uuid.NewSHA1(uuid.NameSpaceURL, []byte("resource-x:"+doc.Info.Title)).String(),
			Name:      doc.Info.Title,
			Version:   doc.Info.Version,
			Schema:    SchemaURL,
		},
		Item:     []folder{},
		Variable: []variable{{Key: baseURLVar, Value: opts.BaseURL}},
	}

	index := map[string]int{}
	for _, ref := range doc.Operations() {
		if ref.Method == genspec.OPTIONS {
			continue
		}
		it, err := opts.request(ctx, doc, ref)
		if err != nil {
			return nil, err
		}
		tag := untagged
		if len(ref.Operation.Tags) > 0 {
			tag = ref.Operation.Tags[0]
		}
		i, ok := index[tag]
		if !ok {
			i = len(c.Item)
			index[tag] = i
			c.Item = append(c.Item, folder{Name: tag})
		}
		c.Item[i].Item = append(c.Item[i].Item, it)
	}

	out, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("postmanemitter: %w", err)
	}
	return append(out, '\n'), nil
}

func (o Options) request(ctx context.Context, doc *genspec.Document, ref genspec.OperationRef) (item, error) {
	method := strings.ToUpper(string(ref.Method))
	name := ref.Operation.Summary
	if name == "" {
		name = ref.Operation.OperationID
	}
	if name == "" {
		name = method + " " + ref.Path
	}

	req := request{
		Method: method,
		Header: []variable{{Key: "Accept", Value: genspec.ContentTypeJSON}},
		URL:    toURL(ref.Path),
	}
	for _, p := range ref.Operation.Parameters {
		switch p.In {
		case genspec.InPath:
			for i := range req.URL.Variable {
				if req.URL.Variable[i].Key == p.Name {
					req.URL.Variable[i].Value = o.scalar(ctx, doc, p)
				}
			}
		case genspec.InBody:
			raw, err := o.body(ctx, doc, p.Schema)
			if err != nil {
				o.Logger.Warn("request body example unavailable", "operation", ref.Operation.OperationID, "error", err)
				raw = "{}"
			}
			req.Header = append(req.Header, variable{Key: "Content-Type", Value: genspec.ContentTypeJSON})
			b := &body{Mode: "raw", Raw: raw}
			b.Options.Raw.Language = "json"
			req.Body = b
		}
	}
	return item{Name: name, Request: req, Response: []any{}}, nil
}

func (o Options) body(ctx context.Context, doc *genspec.Document, schema genspec.Schema) (string, error) {
	v, err := o.Examples.Example(ctx, schema, doc.Definitions)
	if err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (o Options) scalar(ctx context.Context, doc *genspec.Document, p genspec.Parameter) string {
	s := genspec.NewSchema()
	s.Set("type", p.Type)
	if p.Format != "" {
		s.Set("format", p.Format)
	}
	v, err := o.Examples.Example(ctx, s, doc.Definitions)
	if err != nil {
		return ""
	}
	return fmt.Sprint(v)
}

// toURL rewrites {param} segments to Postman's :param form.
func toURL(path string) url {
	u := url{Host: []string{"{{" + baseURLVar + "}}"}, Path: []string{}}
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			key := seg[1 : len(seg)-1]
			u.Variable = append(u.Variable, variable{Key: key})
			seg = ":" + key
		}
		u.Path = append(u.Path, seg)
	}
	u.Raw = "{{" + baseURLVar + "}}/" + strings.Join(u.Path, "/")
	return u
}
