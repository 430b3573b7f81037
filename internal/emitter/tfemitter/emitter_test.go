package tfemitter

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/mark3labs/resource-x/internal/mock"
	genspec "github.com/mark3labs/resource-x/internal/spec"
)

func petsDocument(t *testing.T) *genspec.Document {
	t.Helper()
	defs := genspec.NewDefinitions()
	defs.Set("pet", genspec.MustParseSchema(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "example": "Rex ${not.a.var} %{if}"},
			"owner": {"$ref": "#/definitions/owner"}
		}
	}`))
	defs.Set("owner", genspec.MustParseSchema(`{"type": "object", "properties": {"email": {"type": "string", "format": "email"}}}`))
	doc, err := genspec.Build(context.Background(), defs, "pets-api")
	require.NoError(t, err)
	return doc
}

// evaluate parses the configuration and evaluates the specification local
// with every variable set to its default.
func evaluate(t *testing.T, src []byte) (map[string]cty.Value, string) {
	t.Helper()
	file, diags := hclsyntax.ParseConfig(src, FileName, hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())
	body := file.Body.(*hclsyntax.Body)

	vars := map[string]cty.Value{}
	var spec hcl.Expression
	for _, block := range body.Blocks {
		switch block.Type {
		case "variable":
			def, ok := block.Body.Attributes["default"]
			require.True(t, ok, "variable %s has a default", block.Labels[0])
			v, diags := def.Expr.Value(nil)
			require.False(t, diags.HasErrors(), diags.Error())
			vars[block.Labels[0]] = v
		case "locals":
			spec = block.Body.Attributes[localName].Expr
		}
	}
	require.NotNil(t, spec)

	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.ObjectVal(vars)},
		Functions: map[string]function.Function{"jsonencode": stdlib.JSONEncodeFunc},
	}
	out, diags := spec.Value(ctx)
	require.False(t, diags.HasErrors(), diags.Error())
	return vars, out.AsString()
}

func TestEmit_RoundTrip(t *testing.T) {
	t.Parallel()

	doc := petsDocument(t)
	mocked, err := mock.Synthesize(t.Context(), doc)
	require.NoError(t, err)

	src, err := Emit(t.Context(), doc, Options{})
	require.NoError(t, err)

	vars, rendered := evaluate(t, src)
	assert.Equal(t, "pets-api", vars["title"].AsString())
	assert.Equal(t, genspec.DefaultVersion, vars["version"].AsString())

	want, err := json.Marshal(mocked)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), rendered)
}

func TestEmit_AcceptsMockedInput(t *testing.T) {
	t.Parallel()

	mocked, err := mock.Synthesize(t.Context(), petsDocument(t))
	require.NoError(t, err)
	before, err := json.Marshal(mocked)
	require.NoError(t, err)

	src, err := Emit(t.Context(), mocked, Options{})
	require.NoError(t, err)

	after, err := json.Marshal(mocked)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "input must not be mutated")

	_, rendered := evaluate(t, src)
	assert.JSONEq(t, string(before), rendered)
}

func TestEmit_Layout(t *testing.T) {
	t.Parallel()

	src, err := Emit(t.Context(), petsDocument(t), Options{})
	require.NoError(t, err)
	text := string(src)

	assert.True(t, strings.HasPrefix(text, "variable \"title\" {\n"))
	assert.Contains(t, text, "variable \"version\" {\n")
	assert.Contains(t, text, "variable \"get_pets_integration\" {\n")
	assert.Contains(t, text, "variable \"options_pet_integration\" {\n")
	assert.Contains(t, text, "output \"specification\" {\n  value = local.specification\n}\n")
	assert.Contains(t, text, `"title": ${jsonencode(var.title)},`)
	assert.Contains(t, text, `"x-amazon-apigateway-integration": ${var.post_pets_integration}`)
	assert.Contains(t, text, "$${not.a.var}")
	assert.Contains(t, text, "%%{if}")

	locals := strings.Index(text, "locals {")
	output := strings.Index(text, "output \"specification\"")
	firstOp := strings.Index(text, "_integration\" {")
	assert.True(t, firstOp < output && output < locals, "variables, then output, then locals")

	for _, r := range text {
		require.Less(t, r, rune(0x80), "output must be ASCII")
	}
}

func TestEmit_Deterministic(t *testing.T) {
	t.Parallel()

	a, err := Emit(t.Context(), petsDocument(t), Options{})
	require.NoError(t, err)
	b, err := Emit(t.Context(), petsDocument(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestEmit_Nil(t *testing.T) {
	t.Parallel()

	_, err := Emit(t.Context(), nil, Options{})
	assert.Error(t, err)
}

func TestVariableName(t *testing.T) {
	t.Parallel()

	used := map[string]bool{}
	ref := genspec.OperationRef{Path: "/pets", Method: genspec.GET, Operation: &genspec.Operation{OperationID: "getPets"}}
	assert.Equal(t, "get_pets_integration", variableName(ref, used))
	assert.Equal(t, "get_pets_2_integration", variableName(ref, used))

	anon := genspec.OperationRef{Path: "/9lives", Method: genspec.GET, Operation: &genspec.Operation{}}
	name := variableName(anon, used)
	assert.True(t, strings.HasSuffix(name, "_integration"))
	assert.Regexp(t, `^[A-Za-z_][A-Za-z0-9_]*$`, name)
}
