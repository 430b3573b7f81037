package mock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mohae/deepcopy"

	genspec "github.com/mark3labs/resource-x/internal/spec"
)

// ExampleGenerator produces one value satisfying a schema. Remaining $refs
// resolve against defs.
type ExampleGenerator interface {
	Example(ctx context.Context, schema genspec.Schema, defs *genspec.Definitions) (any, error)
}

var (
	ErrUnsupportedSchema = errors.New("unsupported schema")
	ErrUnsatisfiable     = errors.New("unsatisfiable schema")
)

const defaultMaxExampleDepth = 8

// SchemaExamples is a deterministic generator. It prefers example, default
// and enum values and otherwise builds the smallest value the schema allows.
// Optional properties that cannot be generated are left out.
type SchemaExamples struct {
	// MaxDepth bounds nesting, which also cuts recursive definitions short.
	MaxDepth int
}

func (g SchemaExamples) Example(ctx context.Context, schema genspec.Schema, defs *genspec.Definitions) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	depth := g.MaxDepth
	if depth <= 0 {
		depth = defaultMaxExampleDepth
	}
	w := &exampleWalker{defs: defs, maxDepth: depth}
	return w.generate(schema, "#", 0)
}

type exampleWalker struct {
	defs     *genspec.Definitions
	maxDepth int
}

func (w *exampleWalker) generate(s genspec.Schema, ptr string, depth int) (any, error) {
	if depth > w.maxDepth {
		return nil, fmt.Errorf("%w: %s nests deeper than %d levels", ErrUnsupportedSchema, ptr, w.maxDepth)
	}
	if ref, ok := get(s, "$ref").(string); ok {
		name := strings.TrimPrefix(ref, "#/definitions/")
		target, found := w.defs.Get(name)
		if !found {
			return nil, fmt.Errorf("%w: %s: unresolved $ref %q", ErrUnsupportedSchema, ptr, ref)
		}
		return w.generate(target, ptr, depth+1)
	}
	if v, ok := s.Get("example"); ok {
		return genspec.Plain(v), nil
	}
	if v, ok := s.Get("default"); ok {
		return genspec.Plain(v), nil
	}
	if raw, ok := s.Get("enum"); ok {
		values, _ := raw.([]any)
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: %s: empty enum", ErrUnsatisfiable, ptr)
		}
		return genspec.Plain(values[0]), nil
	}
	if all, ok := get(s, "allOf").([]any); ok && len(all) > 0 {
		return w.allOf(s, all, ptr, depth)
	}
	for _, key := range []string{"oneOf", "anyOf"} {
		if alts, ok := get(s, key).([]any); ok && len(alts) > 0 {
			return w.generate(subschema(alts[0]), ptr+"/"+key+"/0", depth+1)
		}
	}

	switch typ := schemaType(s); typ {
	case "object":
		return w.object(s, ptr, depth)
	case "array":
		return w.array(s, ptr, depth)
	case "string":
		return stringExample(s, ptr)
	case "integer":
		v, err := numberExample(s, ptr, true)
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case "number":
		return numberExample(s, ptr, false)
	case "boolean":
		return true, nil
	case "null":
		return nil, nil
	case "":
		if s.Has("properties") {
			return w.object(s, ptr, depth)
		}
		if s.Has("items") {
			return w.array(s, ptr, depth)
		}
		return map[string]any{}, nil
	default:
		return nil, fmt.Errorf("%w: %s: type %q", ErrUnsupportedSchema, ptr, typ)
	}
}

func (w *exampleWalker) allOf(s genspec.Schema, all []any, ptr string, depth int) (any, error) {
	merged := map[string]any{}
	var scalar any
	for i, part := range all {
		v, err := w.generate(subschema(part), fmt.Sprintf("%s/allOf/%d", ptr, i), depth+1)
		if err != nil {
			return nil, err
		}
		if obj, ok := v.(map[string]any); ok {
			for k, val := range obj {
				merged[k] = val
			}
			continue
		}
		scalar = v
	}
	if s.Has("properties") {
		rest := genspec.NewSchema()
		for k, v := range s.All() {
			if k != "allOf" {
				rest.Set(k, v)
			}
		}
		v, err := w.object(rest, ptr, depth)
		if err != nil {
			return nil, err
		}
		for k, val := range v.(map[string]any) {
			merged[k] = val
		}
	}
	if len(merged) == 0 && scalar != nil {
		return scalar, nil
	}
	return merged, nil
}

func (w *exampleWalker) object(s genspec.Schema, ptr string, depth int) (any, error) {
	out := map[string]any{}
	props, _ := get(s, "properties").(genspec.Schema)
	required := map[string]bool{}
	if list, ok := get(s, "required").([]any); ok {
		for _, r := range list {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}
	for name, prop := range props.All() {
		v, err := w.generate(subschema(prop), ptr+"/properties/"+name, depth+1)
		if err != nil {
			if required[name] {
				return nil, err
			}
			continue
		}
		out[name] = v
	}
	for name := range required {
		if _, ok := out[name]; !ok {
			if !props.Has(name) {
				out[name] = "string"
			}
		}
	}
	return out, nil
}

func (w *exampleWalker) array(s genspec.Schema, ptr string, depth int) (any, error) {
	minItems, hasMin := number(get(s, "minItems"))
	maxItems, hasMax := number(get(s, "maxItems"))
	if hasMin && hasMax && minItems > maxItems {
		return nil, fmt.Errorf("%w: %s: minItems %v > maxItems %v", ErrUnsatisfiable, ptr, minItems, maxItems)
	}
	n := 1
	if hasMin && int(minItems) > n {
		n = int(minItems)
	}
	if hasMax && int(maxItems) < n {
		n = int(maxItems)
	}
	items, _ := get(s, "items").(genspec.Schema)
	if n == 0 || items == nil {
		return []any{}, nil
	}
	if unique, _ := get(s, "uniqueItems").(bool); unique && n > 1 {
		return nil, fmt.Errorf("%w: %s: %d unique items", ErrUnsupportedSchema, ptr, n)
	}
	v, err := w.generate(items, ptr+"/items", depth+1)
	if err != nil {
		return nil, err
	}
	out := make([]any, n)
	out[0] = v
	for i := 1; i < n; i++ {
		out[i] = deepcopy.Copy(v)
	}
	return out, nil
}

var formatExamples = map[string]string{
	"date-time": "2024-01-01T00:00:00Z",
	"date":      "2024-01-01",
	"time":      "00:00:00Z",
	"email":     "user@example.com",
	"hostname":  "example.com",
	"ipv4":      "192.0.2.1",
	"ipv6":      "2001:db8::1",
	"uri":       "https://example.com",
	"url":       "https://example.com",
	"byte":      "ZXhhbXBsZQ==",
	"binary":    "example",
	"password":  "secret",
}

func stringExample(s genspec.Schema, ptr string) (any, error) {
	format, _ := get(s, "format").(string)
	value, formatted := formatExamples[format]
	if format == "uuid" {
		value, formatted = uuid.NewSHA1(uuid.NameSpaceURL, []byte(ptr)).String(), true
	}
	if !formatted {
		value = "string"
	}

	minLen, hasMin := number(get(s, "minLength"))
	maxLen, hasMax := number(get(s, "maxLength"))
	if hasMin && hasMax && minLen > maxLen {
		return nil, fmt.Errorf("%w: %s: minLength %v > maxLength %v", ErrUnsatisfiable, ptr, minLen, maxLen)
	}
	length := len([]rune(value))
	switch {
	case hasMin && length < int(minLen):
		if formatted {
			return nil, fmt.Errorf("%w: %s: format %q shorter than minLength", ErrUnsupportedSchema, ptr, format)
		}
		value += strings.Repeat("x", int(minLen)-length)
	case hasMax && length > int(maxLen):
		if formatted {
			return nil, fmt.Errorf("%w: %s: format %q longer than maxLength", ErrUnsupportedSchema, ptr, format)
		}
		value = string([]rune(value)[:int(maxLen)])
	}

	if pattern, ok := get(s, "pattern").(string); ok {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: pattern %q: %v", ErrUnsupportedSchema, ptr, pattern, err)
		}
		if !re.MatchString(value) {
			return nil, fmt.Errorf("%w: %s: cannot synthesize a value for pattern %q", ErrUnsupportedSchema, ptr, pattern)
		}
	}
	return value, nil
}

func numberExample(s genspec.Schema, ptr string, integer bool) (float64, error) {
	lo, hasLo := number(get(s, "minimum"))
	hi, hasHi := number(get(s, "maximum"))
	exLo, _ := get(s, "exclusiveMinimum").(bool)
	exHi, _ := get(s, "exclusiveMaximum").(bool)
	step, hasStep := number(get(s, "multipleOf"))
	if hasStep && step <= 0 {
		return 0, fmt.Errorf("%w: %s: multipleOf must be positive", ErrUnsatisfiable, ptr)
	}

	v := 0.0
	switch {
	case hasLo && exLo && hasHi:
		v = (lo + hi) / 2
	case hasLo && exLo:
		v = lo + 1
	case hasLo:
		v = lo
	case hasHi && (hi < 0 || (hi == 0 && exHi)):
		v = hi - 1
	}
	if integer {
		v = math.Ceil(v)
	}
	if hasStep {
		v = math.Ceil(v/step) * step
	}

	if hasLo && (v < lo || (exLo && v == lo)) || hasHi && (v > hi || (exHi && v == hi)) {
		return 0, fmt.Errorf("%w: %s: no value within bounds", ErrUnsatisfiable, ptr)
	}
	return v, nil
}

// schemaType returns the declared type, picking the first non-null entry of a
// type list.
func schemaType(s genspec.Schema) string {
	switch t := get(s, "type").(type) {
	case string:
		return t
	case []any:
		for _, e := range t {
			if name, ok := e.(string); ok && name != "null" {
				return name
			}
		}
		if len(t) > 0 {
			return "null"
		}
	}
	return ""
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func get(s genspec.Schema, key string) any {
	v, _ := s.Get(key)
	return v
}

// subschema returns v as a schema; anything else reads as the empty schema.
func subschema(v any) genspec.Schema {
	if s, ok := v.(genspec.Schema); ok && s != nil {
		return s
	}
	return genspec.NewSchema()
}
