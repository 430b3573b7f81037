package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	genspec "github.com/mark3labs/resource-x/internal/spec"
)

const petsMarkdown = "# Pets API\n\nA tiny API.\n\n```json\n" +
	`{"pet": {"type": "object", "properties": {"name": {"type": "string"}}}}` +
	"\n```\n"

const shopMarkdown = "# Shop\n\n```json\n" +
	`{"order": {"type": "object", "required": ["total"], "properties": {"total": {"type": "number", "minimum": 1}}}}` +
	"\n```\n\n```yaml\nperson:\n  type: object\n  properties:\n    email:\n      type: string\n      format: email\n```\n"

func TestRun_PetsScenario(t *testing.T) {
	t.Parallel()

	a, err := Run(t.Context(), Source{Name: "pets.md", Data: []byte(petsMarkdown)})
	require.NoError(t, err)

	assert.Equal(t, "pets-api", a.Title)
	doc := a.Specification
	assert.Equal(t, "pets-api", doc.Info.Title)
	_, ok := doc.Definitions.Get("pet")
	assert.True(t, ok)

	list, ok := doc.Paths.Get("/pets")
	require.True(t, ok)
	resp, ok := list.Get.Responses.Get("200")
	require.True(t, ok)
	typ, _ := resp.Schema.Get("type")
	assert.Equal(t, "array", typ)

	item, ok := doc.Paths.Get("/pets/{petId}")
	require.True(t, ok)
	_, ok = item.Put.Responses.Get("204")
	assert.True(t, ok)

	assert.True(t, a.Mocked.Mocked())
	assert.False(t, a.Specification.Mocked())
	assert.NotEmpty(t, a.Terraform)
	assert.NotEmpty(t, a.Postman)
}

func TestRun_PathCountAndOperationIDs(t *testing.T) {
	t.Parallel()

	idRe := regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	for _, cors := range []bool{true, false} {
		a, err := Run(t.Context(), Source{Name: "shop.md", Data: []byte(shopMarkdown)}, WithCORS(cors))
		require.NoError(t, err)
		doc := a.Specification
		assert.Equal(t, 2*doc.Definitions.Len(), doc.Paths.Len())

		seen := map[string]bool{}
		ops := doc.Operations()
		for _, ref := range ops {
			id := ref.Operation.OperationID
			assert.Regexp(t, idRe, id)
			assert.False(t, seen[id], "duplicate operationId %s", id)
			seen[id] = true
		}
		if cors {
			assert.Len(t, ops, 14)
		} else {
			assert.Len(t, ops, 10)
		}
	}
}

func TestRun_CreatedExample(t *testing.T) {
	t.Parallel()

	a, err := Run(t.Context(), Source{Name: "shop.md", Data: []byte(shopMarkdown)})
	require.NoError(t, err)

	orders, ok := a.Mocked.Paths.Get("/orders")
	require.True(t, ok)
	resp, ok := orders.Post.Integration.Responses.Get("201")
	require.True(t, ok)
	body, ok := resp.ResponseTemplates.Get(genspec.ContentTypeJSON)
	require.True(t, ok)
	assert.JSONEq(t, `{"total": 1}`, body)
}

func TestRun_ZeroDefinitions(t *testing.T) {
	t.Parallel()

	a, err := Run(t.Context(), Source{Name: "empty.md", Data: []byte("# Empty\n\nNothing here.\n")})
	require.NoError(t, err)
	assert.Equal(t, 0, a.Specification.Paths.Len())
	assert.Equal(t, 0, a.Specification.Definitions.Len())
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		source string
		want   error
		stage  string
	}{
		{"missing title", "## Not a title\n\n```json\n{}\n```\n", genspec.ErrMissingTitle, "title"},
		{"bad json", "# T\n\n```json\n{nope\n```\n", genspec.ErrSchemaParse, "schemas"},
		{"bad yaml", "# T\n\n```yaml\n- a\n- b\n```\n", genspec.ErrParse, "schemas"},
		{"unresolved ref", "# T\n\n```json\n" + `{"pet": {"$ref": "#/definitions/ghost"}}` + "\n```\n", genspec.ErrInvalidSpecification, "definitions"},
		{"invalid utf8", "# T\n\xff\xfe\n", genspec.ErrParse, "tokenize"},
	}
	for _, tc := range cases {
		a, err := Run(t.Context(), Source{Name: "doc.md", Data: []byte(tc.source)})
		require.Error(t, err, tc.name)
		assert.Nil(t, a, tc.name)
		assert.True(t, errors.Is(err, tc.want), "%s: %v", tc.name, err)
		var se *genspec.SpecError
		require.ErrorAs(t, err, &se, tc.name)
		assert.Equal(t, tc.stage, se.Stage, tc.name)
		assert.Equal(t, "doc.md", se.Location, tc.name)
	}
}

func TestRun_DisabledEmitters(t *testing.T) {
	t.Parallel()

	a, err := Run(t.Context(), Source{Name: "pets.md", Data: []byte(petsMarkdown)}, WithTerraform(false), WithPostman(false))
	require.NoError(t, err)
	assert.Nil(t, a.Terraform)
	assert.Nil(t, a.Postman)

	files, err := a.Encode(genspec.FormatJSON)
	require.NoError(t, err)
	assert.Nil(t, files.Terraform)
	assert.True(t, json.Valid(files.Specification))
}

func TestRun_Deterministic(t *testing.T) {
	t.Parallel()

	encode := func() []byte {
		a, err := Run(t.Context(), Source{Name: "shop.md", Data: []byte(shopMarkdown)})
		require.NoError(t, err)
		files, err := a.Encode(genspec.FormatYAML)
		require.NoError(t, err)
		return bytes.Join([][]byte{files.Specification, files.Mocked, files.Terraform, files.Postman}, []byte("\x00"))
	}
	assert.Equal(t, string(encode()), string(encode()))
}

func TestRun_YAMLReReads(t *testing.T) {
	t.Parallel()

	a, err := Run(t.Context(), Source{Name: "shop.md", Data: []byte(shopMarkdown)})
	require.NoError(t, err)
	files, err := a.Encode(genspec.FormatYAML)
	require.NoError(t, err)

	back, err := genspec.Unmarshal(files.Mocked)
	require.NoError(t, err)
	want, err := json.Marshal(a.Mocked)
	require.NoError(t, err)
	got, err := json.Marshal(back)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
	require.NoError(t, genspec.KinValidator{}.Validate(t.Context(), back))
}

func TestRun_KeepsAuthorKeyOrder(t *testing.T) {
	t.Parallel()

	src := "# Pets\n\n```json\n" +
		`{"pet": {"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}, "age": {"type": "integer"}}}}` +
		"\n```\n"
	a, err := Run(t.Context(), Source{Name: "pets.md", Data: []byte(src)})
	require.NoError(t, err)
	files, err := a.Encode(genspec.FormatYAML)
	require.NoError(t, err)

	for _, out := range [][]byte{files.Specification, files.Mocked} {
		text := string(out)
		def := text[strings.Index(text, "\ndefinitions:"):]
		var last int
		for _, line := range []string{"\n  pet:\n", "\n    type: object\n", "\n    required:\n", "\n    properties:\n", "\n      name:\n", "\n      age:\n"} {
			i := strings.Index(def, line)
			require.GreaterOrEqual(t, i, 0, line)
			assert.Greater(t, i, last, line)
			last = i
		}
	}
}

func TestRun_YAMLBlockWithDocumentMarker(t *testing.T) {
	t.Parallel()

	src := "# Pets\n\n```json\n{\"pet\": {\"type\": \"object\"}}\n```\n\n```yaml\n---\nowner:\n  type: object\n```\n"
	a, err := Run(t.Context(), Source{Name: "pets.md", Data: []byte(src)})
	require.NoError(t, err)
	assert.Equal(t, []string{"pet", "owner"}, a.Definitions.Keys())
	_, ok := a.Specification.Paths.Get("/owners/{ownerId}")
	assert.True(t, ok)
}

func TestRunAll(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	counting := genspec.ValidatorFunc(func(ctx context.Context, doc *genspec.Document) error {
		calls.Add(1)
		return genspec.KinValidator{}.Validate(ctx, doc)
	})

	sources := []Source{
		{Name: "pets.md", Data: []byte(petsMarkdown)},
		{Name: "shop.md", Data: []byte(shopMarkdown)},
		{Name: "pets-again.md", Data: []byte(petsMarkdown)},
	}
	out, err := RunAll(t.Context(), sources, WithValidator(counting), WithConcurrency(2))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "pets-api", out[0].Title)
	assert.Equal(t, "shop", out[1].Title)
	assert.Equal(t, "pets.md", out[0].Source)
	assert.Positive(t, calls.Load())

	// Independent runs never share documents.
	out[0].Specification.Info.Title = "changed"
	assert.Equal(t, "pets-api", out[2].Specification.Info.Title)

	sources = append(sources, Source{Name: "broken.md", Data: []byte("no heading")})
	_, err = RunAll(t.Context(), sources)
	require.Error(t, err)
	assert.True(t, errors.Is(err, genspec.ErrMissingTitle))
	assert.True(t, strings.Contains(err.Error(), "title"))
}
