package spec

import (
	"fmt"
	"strings"
)

const definitionsPrefix = "#/definitions/"

// Bundle returns a copy of doc after checking that every $ref is a local
// definitions reference that resolves.
func Bundle(doc *Document) (*Document, error) {
	out, err := doc.Clone()
	if err != nil {
		return nil, err
	}
	var walkErr error
	visit := func(v any) {
		walkRefs(v, func(ref string) {
			if walkErr != nil {
				return
			}
			if _, err := lookupRef(out.Definitions, ref); err != nil {
				walkErr = err
			}
		})
	}
	for _, schema := range out.Definitions.All() {
		visit(schema)
	}
	for _, op := range out.Operations() {
		for _, s := range operationSchemas(op.Operation) {
			visit(s)
		}
	}
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

// Dereference returns a copy of doc with every $ref inlined. A reference that
// would recurse into a definition already being expanded is left in place, so
// definitions stay in the output for those cycles to resolve against.
func Dereference(doc *Document) (*Document, error) {
	out, err := doc.Clone()
	if err != nil {
		return nil, err
	}
	defs := out.Definitions
	inlined := NewDefinitions()
	for name, schema := range defs.All() {
		v, err := inline(defs, schema, []string{name})
		if err != nil {
			return nil, fmt.Errorf("definition %q: %w", name, err)
		}
		inlined.Set(name, asSchema(v))
	}
	for _, op := range out.Operations() {
		for i := range op.Operation.Parameters {
			p := &op.Operation.Parameters[i]
			if p.Schema == nil {
				continue
			}
			v, err := inline(defs, p.Schema, nil)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", op.Method, op.Path, err)
			}
			p.Schema = asSchema(v)
		}
		for _, resp := range op.Operation.Responses.All() {
			if resp == nil || resp.Schema == nil {
				continue
			}
			v, err := inline(defs, resp.Schema, nil)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", op.Method, op.Path, err)
			}
			resp.Schema = asSchema(v)
		}
	}
	out.Definitions = inlined
	return out, nil
}

// inline returns a copy of v with references expanded. Objects and arrays
// are always rebuilt, so the result shares nothing with defs.
func inline(defs *Definitions, v any, stack []string) (any, error) {
	switch val := v.(type) {
	case *OrderedMap[any]:
		if val == nil {
			return val, nil
		}
		if ref, ok := refOf(val); ok {
			name := strings.TrimPrefix(ref, definitionsPrefix)
			for _, seen := range stack {
				if seen == name {
					return copyValue(val), nil
				}
			}
			target, err := lookupRef(defs, ref)
			if err != nil {
				return nil, err
			}
			return inline(defs, target, append(stack[:len(stack):len(stack)], name))
		}
		out := NewOrderedMap[any]()
		for k, child := range val.All() {
			res, err := inline(defs, child, stack)
			if err != nil {
				return nil, err
			}
			out.Set(k, res)
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			res, err := inline(defs, child, stack)
			if err != nil {
				return nil, err
			}
			out[i] = res
		}
		return out, nil
	}
	return v, nil
}

func copyValue(v any) any {
	switch val := v.(type) {
	case *OrderedMap[any]:
		out := NewOrderedMap[any]()
		for k, child := range val.All() {
			out.Set(k, copyValue(child))
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = copyValue(child)
		}
		return out
	}
	return v
}

func refOf(s Schema) (string, bool) {
	v, ok := s.Get("$ref")
	if !ok {
		return "", false
	}
	ref, ok := v.(string)
	return ref, ok
}

func lookupRef(defs *Definitions, ref string) (Schema, error) {
	if !strings.HasPrefix(ref, definitionsPrefix) {
		return nil, fmt.Errorf("unsupported $ref %q: only local definitions are allowed", ref)
	}
	name := strings.TrimPrefix(ref, definitionsPrefix)
	s, ok := defs.Get(name)
	if !ok {
		return nil, fmt.Errorf("unresolved $ref %q", ref)
	}
	return s, nil
}

func walkRefs(v any, fn func(string)) {
	switch val := v.(type) {
	case *OrderedMap[any]:
		if ref, ok := refOf(val); ok {
			fn(ref)
		}
		for _, child := range val.All() {
			walkRefs(child, fn)
		}
	case []any:
		for _, child := range val {
			walkRefs(child, fn)
		}
	}
}

func operationSchemas(op *Operation) []Schema {
	var out []Schema
	for _, p := range op.Parameters {
		if p.Schema != nil {
			out = append(out, p.Schema)
		}
	}
	for _, r := range op.Responses.All() {
		if r != nil && r.Schema != nil {
			out = append(out, r.Schema)
		}
	}
	return out
}

func asSchema(v any) Schema {
	s, _ := v.(Schema)
	return s
}
