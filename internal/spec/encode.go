package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	sjson "github.com/speakeasy-api/openapi/json"
	"gopkg.in/yaml.v3"
)

// Format selects the serialization of a persisted document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts yaml, yml or json, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported format %q (allowed: yaml, json)", s)
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string { return string(f) }

// Marshal serializes doc in insertion order. JSON output is indented with two
// spaces and ends in a newline.
func Marshal(doc *Document, format Format) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	if format == FormatJSON {
		return append(data, '\n'), nil
	}
	return JSONToYAML(data)
}

// JSONToYAML re-serializes JSON as block-style YAML, keeping key order.
func JSONToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	clearStyle(&node)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// clearStyle drops the flow and quoting styles inherited from JSON so the
// encoder picks YAML defaults.
func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}

// Unmarshal decodes a YAML or JSON document, keeping key order.
func Unmarshal(data []byte) (*Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("parse document: empty input")
	}
	var buf bytes.Buffer
	if err := sjson.YAMLToJSON(&node, 0, &buf); err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc.ensure()
	return &doc, nil
}
