package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	sjson "github.com/speakeasy-api/openapi/json"
	"gopkg.in/yaml.v3"

	genspec "github.com/mark3labs/resource-x/internal/spec"
)

// Schemas concatenates the structured-data code blocks of the document into
// one YAML text. JSON blocks are converted to YAML first; YAML blocks are used
// verbatim. Every block is followed by a newline.
func Schemas(tokens []Token) (string, error) {
	var b strings.Builder
	for i, tok := range tokens {
		if tok.Kind != KindCode || tok.Text == "" {
			continue
		}
		switch tok.Lang {
		case "json":
			var parsed any
			if err := json.Unmarshal([]byte(tok.Text), &parsed); err != nil {
				return "", &genspec.SpecError{
					Code:    genspec.SchemaParseError,
					Stage:   "schemas",
					Message: fmt.Sprintf("block %d: invalid JSON: %v", i, err),
					Cause:   err,
				}
			}
			out, err := genspec.JSONToYAML([]byte(tok.Text))
			if err != nil {
				return "", &genspec.SpecError{Code: genspec.SchemaParseError, Stage: "schemas", Message: fmt.Sprintf("block %d: %v", i, err), Cause: err}
			}
			b.Write(out)
			b.WriteByte('\n')
		case "yaml", "yml":
			b.WriteString(tok.Text)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// Definitions parses the combined schema text into an ordered mapping of type
// name to schema. The text may hold several YAML documents, as a block that
// starts with "---" opens a new one; they are merged in order. When a name
// repeats the later definition wins and the name keeps its first position.
func Definitions(combined string) (*genspec.Definitions, error) {
	defs := genspec.NewDefinitions()

	dec := yaml.NewDecoder(strings.NewReader(combined))
	for n := 1; ; n++ {
		var root yaml.Node
		err := dec.Decode(&root)
		if errors.Is(err, io.EOF) {
			return defs, nil
		}
		if err != nil {
			return nil, parseError("invalid YAML: %v", err)
		}
		if err := mergeDocument(defs, &root, n); err != nil {
			return nil, err
		}
	}
}

func mergeDocument(defs *genspec.Definitions, root *yaml.Node, n int) error {
	if len(root.Content) == 0 {
		return nil
	}
	top := root.Content[0]
	if top.Kind == yaml.ScalarNode && top.Tag == "!!null" {
		return nil
	}
	if top.Kind != yaml.MappingNode {
		return parseError("type definitions must form a mapping, YAML document %d is %s", n, kindName(top.Kind))
	}

	for i := 0; i+1 < len(top.Content); i += 2 {
		key, value := top.Content[i], top.Content[i+1]
		if value.Kind == yaml.AliasNode && value.Alias != nil {
			value = value.Alias
		}
		if value.Kind != yaml.MappingNode {
			return parseError("definition %q (line %d) must be a mapping", key.Value, key.Line)
		}
		var buf bytes.Buffer
		if err := sjson.YAMLToJSON(value, 0, &buf); err != nil {
			return parseError("definition %q: %v", key.Value, err)
		}
		schema, err := genspec.ParseSchema(buf.Bytes())
		if err != nil {
			return parseError("definition %q: %v", key.Value, err)
		}
		defs.Set(key.Value, schema)
	}
	return nil
}

func parseError(format string, args ...any) error {
	return &genspec.SpecError{Code: genspec.ParseError, Stage: "schemas", Message: fmt.Sprintf(format, args...)}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "a sequence"
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.AliasNode:
		return "an alias"
	}
	return "an unknown node"
}
