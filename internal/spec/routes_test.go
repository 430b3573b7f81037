package spec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func petDefinitions() *Definitions {
	defs := NewDefinitions()
	defs.Set("pet", MustParseSchema(`{"type": "object", "properties": {"name": {"type": "string"}}}`))
	return defs
}

func TestBuild_PetScenario(t *testing.T) {
	t.Parallel()

	doc, err := Build(t.Context(), petDefinitions(), "pets-api")
	require.NoError(t, err)

	assert.Equal(t, "2.0", doc.Swagger)
	assert.Equal(t, "pets-api", doc.Info.Title)
	assert.Equal(t, DefaultVersion, doc.Info.Version)
	assert.Equal(t, []string{"application/json"}, doc.Consumes)
	assert.Equal(t, []string{"application/json"}, doc.Produces)
	assert.Equal(t, []Tag{{Name: "pets"}}, doc.Tags)
	assert.Equal(t, []string{"/pets", "/pets/{petId}"}, doc.Paths.Keys())

	_, ok := doc.Definitions.Get("pet")
	assert.True(t, ok, "definitions.pet present")

	list, _ := doc.Paths.Get("/pets")
	require.NotNil(t, list.Get)
	resp, ok := list.Get.Responses.Get("200")
	require.True(t, ok)
	typ, _ := resp.Schema.Get("type")
	assert.Equal(t, "array", typ)
	assert.Equal(t, "getPets", list.Get.OperationID)
	assert.Equal(t, "postPets", list.Post.OperationID)
	require.Len(t, list.Post.Parameters, 1)
	assert.Equal(t, InBody, list.Post.Parameters[0].In)
	created, ok := list.Post.Responses.Get("201")
	require.True(t, ok)
	ref, _ := created.Schema.Get("$ref")
	assert.Equal(t, "#/definitions/pet", ref)

	item, _ := doc.Paths.Get("/pets/{petId}")
	require.NotNil(t, item.Put)
	_, ok = item.Put.Responses.Get("204")
	assert.True(t, ok, "put declares 204")
	_, ok = item.Delete.Responses.Get("204")
	assert.True(t, ok, "delete declares 204")
	assert.Equal(t, PathParameter("petId", "integer", "int64"), item.Get.Parameters[0])
	assert.Equal(t, []HttpMethod{GET, PUT, DELETE, OPTIONS}, item.Methods())
	assert.Equal(t, []string{CORSTag}, item.Options.Tags)
	assert.Equal(t, "optionsPet", item.Options.OperationID)

	preflight, _ := list.Options.Responses.Get("200")
	assert.Equal(t, CORSHeaders, preflight.Headers.Keys())
}

func TestBuild_OperationIDsUnique(t *testing.T) {
	t.Parallel()

	defs := petDefinitions()
	defs.Set("person", MustParseSchema(`{"type": "object"}`))
	defs.Set("orderItem", MustParseSchema(`{"type": "object", "properties": {"pet": {"$ref": "#/definitions/pet"}}}`))

	doc, err := Build(t.Context(), defs, "shop")
	require.NoError(t, err)

	// Two paths per type and CORS adds no paths.
	assert.Equal(t, 2*defs.Len(), doc.Paths.Len())

	seen := map[string]bool{}
	for _, ref := range doc.Operations() {
		id := ref.Operation.OperationID
		assert.Regexp(t, `^[a-z][A-Za-z0-9]*$`, id)
		assert.False(t, seen[id], "duplicate operationId %s", id)
		seen[id] = true
	}
	assert.Contains(t, doc.Paths.Keys(), "/people/{personId}")
	assert.Contains(t, doc.Paths.Keys(), "/orderItems")
}

func TestBuild_WithoutCORS(t *testing.T) {
	t.Parallel()

	doc, err := Build(t.Context(), petDefinitions(), "pets", WithCORS(false), WithVersion("2.1.0"))
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", doc.Info.Version)
	for _, ref := range doc.Operations() {
		assert.NotEqual(t, OPTIONS, ref.Method)
	}
	assert.Len(t, doc.Operations(), 5)
}

func TestBuild_EmptyDefinitions(t *testing.T) {
	t.Parallel()

	doc, err := Build(t.Context(), NewDefinitions(), "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Paths.Len())
	assert.Equal(t, 0, doc.Definitions.Len())
	assert.Empty(t, doc.Tags)

	doc, err = Build(t.Context(), nil, "nil-defs")
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Paths.Len())
}

func TestBuild_UnresolvedRef(t *testing.T) {
	t.Parallel()

	defs := NewDefinitions()
	defs.Set("pet", MustParseSchema(`{"type": "object", "properties": {"owner": {"$ref": "#/definitions/owner"}}}`))

	doc, err := Build(t.Context(), defs, "pets")
	require.Error(t, err)
	assert.Nil(t, doc)
	assert.True(t, errors.Is(err, ErrInvalidSpecification))

	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, InvalidSpecificationError, se.Code)
	assert.Equal(t, "definitions", se.Stage)
}

func TestBuild_ValidatorRunsTwice(t *testing.T) {
	t.Parallel()

	var pathsSeen []int
	v := ValidatorFunc(func(ctx context.Context, doc *Document) error {
		pathsSeen = append(pathsSeen, doc.Paths.Len())
		return nil
	})
	_, err := Build(t.Context(), petDefinitions(), "pets", WithValidator(v))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, pathsSeen)
}

func TestBuild_SecondCheckpointFailure(t *testing.T) {
	t.Parallel()

	calls := 0
	v := ValidatorFunc(func(ctx context.Context, doc *Document) error {
		calls++
		if calls == 2 {
			return errors.New("boom")
		}
		return nil
	})
	doc, err := Build(t.Context(), petDefinitions(), "pets", WithValidator(v))
	require.Error(t, err)
	assert.Nil(t, doc)
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "routes", se.Stage)
	assert.Contains(t, se.Error(), "boom")
}

type upperNamer struct{}

func (upperNamer) Plural(word string) string { return word + "List" }
func (upperNamer) CamelCase(words ...string) string {
	out := ""
	for _, w := range words {
		out += w + "_"
	}
	return out + "op"
}

func TestBuild_CustomNamer(t *testing.T) {
	t.Parallel()

	doc, err := Build(t.Context(), petDefinitions(), "pets", WithNamer(upperNamer{}), WithCORS(false))
	require.NoError(t, err)
	assert.Equal(t, []string{"/petList", "/petList/{petId}"}, doc.Paths.Keys())
	list, _ := doc.Paths.Get("/petList")
	assert.Equal(t, "get_petList_op", list.Get.OperationID)
}

func TestDefaultNamer(t *testing.T) {
	t.Parallel()

	n := DefaultNamer()
	assert.Equal(t, "pets", n.Plural("pet"))
	assert.Equal(t, "people", n.Plural("person"))
	assert.Equal(t, "categories", n.Plural("category"))
	assert.Equal(t, "getPets", n.CamelCase("get", "pets"))
	assert.Equal(t, "deleteOrderItem", n.CamelCase("delete", "orderItem"))
}
