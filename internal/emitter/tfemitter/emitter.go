// Package tfemitter renders a mocked Swagger document as a Terraform
// configuration. Each operation's integration becomes an overridable variable
// and a local value reassembles the full document from them.
package tfemitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/iancoleman/strcase"
	"github.com/zclconf/go-cty/cty"

	"github.com/mark3labs/resource-x/internal/mock"
	genspec "github.com/mark3labs/resource-x/internal/spec"
)

const (
	// FileName is the conventional name of the emitted configuration.
	FileName = "main.tf"

	heredocMarker = "EOF"
	localName     = "specification"
)

// Options controls how the document is mocked when it arrives unmocked.
type Options struct {
	MockOptions []mock.Option
	Logger      *slog.Logger
}

// Emit returns the Terraform text for doc. doc itself is never modified.
func Emit(ctx context.Context, doc *genspec.Document, opts Options) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("tfemitter: nil document")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cp, err := doc.Clone()
	if err != nil {
		return nil, fmt.Errorf("tfemitter: %w", err)
	}
	if !cp.Mocked() {
		logger.Debug("document is not mocked, running mock synthesis")
		cp, err = mock.Synthesize(ctx, cp, opts.MockOptions...)
		if err != nil {
			return nil, err
		}
	}

	f := hclwrite.NewEmptyFile()
	body := f.Body()

	writeVariable(body, "title", "Title of the API", cty.StringVal(cp.Info.Title))
	body.AppendNewline()
	writeVariable(body, "version", "Version of the API", cty.StringVal(cp.Info.Version))
	cp.Info.Title = placeholder("jsonencode(var.title)")
	cp.Info.Version = placeholder("jsonencode(var.version)")

	used := map[string]bool{"title": true, "version": true}
	for _, ref := range cp.Operations() {
		name := variableName(ref, used)
		pretty, err := json.MarshalIndent(ref.Operation.Integration, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("tfemitter: %s %s: %w", ref.Method, ref.Path, err)
		}
		body.AppendNewline()
		block := body.AppendNewBlock("variable", []string{name})
		vb := block.Body()
		vb.SetAttributeValue("description", cty.StringVal(fmt.Sprintf("Mock integration for %s %s", strings.ToUpper(string(ref.Method)), ref.Path)))
		vb.SetAttributeRaw("type", hclwrite.TokensForIdentifier("string"))
		vb.SetAttributeRaw("default", heredoc(escapeTemplate(string(pretty))))
		ref.Operation.Integration = &genspec.Integration{Ref: placeholder("var." + name)}
	}

	body.AppendNewline()
	out := body.AppendNewBlock("output", []string{localName})
	out.Body().SetAttributeTraversal("value", hcl.Traversal{
		hcl.TraverseRoot{Name: "local"},
		hcl.TraverseAttr{Name: localName},
	})

	body.AppendNewline()
	spec, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("tfemitter: %w", err)
	}
	locals := body.AppendNewBlock("locals", nil)
	locals.Body().SetAttributeRaw(localName, heredoc(interpolate(escapeTemplate(string(spec)))))

	logger.Debug("terraform rendered", "variables", len(used))
	return f.Bytes(), nil
}

func writeVariable(body *hclwrite.Body, name, description string, def cty.Value) {
	b := body.AppendNewBlock("variable", []string{name}).Body()
	b.SetAttributeValue("description", cty.StringVal(description))
	b.SetAttributeRaw("type", hclwrite.TokensForIdentifier("string"))
	b.SetAttributeValue("default", def)
}

// variableName derives a unique snake_case identifier for the operation's
// integration variable.
func variableName(ref genspec.OperationRef, used map[string]bool) string {
	base := strcase.ToSnake(ref.Operation.OperationID)
	if base == "" {
		base = strcase.ToSnake(string(ref.Method) + " " + ref.Path)
	}
	base = identifierRe.ReplaceAllString(base, "_")
	if base == "" || (base[0] >= '0' && base[0] <= '9') {
		base = "op_" + base
	}
	name := base + "_integration"
	for i := 2; used[name]; i++ {
		name = fmt.Sprintf("%s_%d_integration", base, i)
	}
	used[name] = true
	return name
}

var identifierRe = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// Placeholders travel through JSON encoding as NUL-delimited strings and are
// swapped for interpolation sequences once the text has been escaped.
const sentinel = "\x00"

func placeholder(expr string) string { return sentinel + expr + sentinel }

var placeholderRe = regexp.MustCompile(`"\\u0000([^"\\]+)\\u0000"`)

func interpolate(text string) string {
	return placeholderRe.ReplaceAllString(text, "$${${1}}")
}

// escapeTemplate keeps literal ${ and %{ sequences from being read as
// template directives.
func escapeTemplate(s string) string {
	s = strings.ReplaceAll(s, "${", "$${")
	return strings.ReplaceAll(s, "%{", "%%{")
}

func heredoc(content string) hclwrite.Tokens {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	toks := hclwrite.Tokens{{Type: hclsyntax.TokenOHeredoc, Bytes: []byte("<<" + heredocMarker + "\n")}}
	for _, line := range strings.SplitAfter(content, "\n") {
		if line == "" {
			continue
		}
		toks = append(toks, &hclwrite.Token{Type: hclsyntax.TokenStringLit, Bytes: []byte(line)})
	}
	return append(toks, &hclwrite.Token{Type: hclsyntax.TokenCHeredoc, Bytes: []byte(heredocMarker)})
}
