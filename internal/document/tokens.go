// Package document turns a Markdown source into the title and type
// definitions the route synthesizer consumes.
package document

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	genspec "github.com/mark3labs/resource-x/internal/spec"
)

type Kind string

const (
	KindHeading       Kind = "heading"
	KindCode          Kind = "code"
	KindParagraph     Kind = "paragraph"
	KindList          Kind = "list"
	KindBlockquote    Kind = "blockquote"
	KindThematicBreak Kind = "thematic_break"
	KindHTML          Kind = "html"
)

// Token is one top-level block of the source document.
type Token struct {
	Kind  Kind
	Depth int    // heading level
	Lang  string // code block language tag, lower-cased
	Text  string
}

var parser = goldmark.New().Parser()

// Tokenize splits source into top-level blocks in document order.
func Tokenize(source []byte) ([]Token, error) {
	if !utf8.Valid(source) {
		return nil, &genspec.SpecError{Code: genspec.ParseError, Stage: "tokenize", Message: "document is not valid UTF-8"}
	}
	root := parser.Parse(text.NewReader(source))

	var tokens []Token
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			tokens = append(tokens, Token{Kind: KindHeading, Depth: node.Level, Text: inlineText(node, source)})
		case *ast.FencedCodeBlock:
			lang := ""
			if node.Info != nil {
				lang = strings.ToLower(string(node.Language(source)))
			}
			tokens = append(tokens, Token{Kind: KindCode, Lang: lang, Text: blockText(node, source)})
		case *ast.CodeBlock:
			tokens = append(tokens, Token{Kind: KindCode, Text: blockText(node, source)})
		case *ast.Paragraph, *ast.TextBlock:
			tokens = append(tokens, Token{Kind: KindParagraph, Text: inlineText(node, source)})
		case *ast.List:
			tokens = append(tokens, Token{Kind: KindList, Text: inlineText(node, source)})
		case *ast.Blockquote:
			tokens = append(tokens, Token{Kind: KindBlockquote, Text: inlineText(node, source)})
		case *ast.ThematicBreak:
			tokens = append(tokens, Token{Kind: KindThematicBreak})
		case *ast.HTMLBlock:
			tokens = append(tokens, Token{Kind: KindHTML, Text: blockText(node, source)})
		default:
			return nil, &genspec.SpecError{Code: genspec.ParseError, Stage: "tokenize", Message: fmt.Sprintf("unsupported block %s", n.Kind())}
		}
	}
	return tokens, nil
}

// blockText joins the raw lines of a leaf block without the final newline.
func blockText(n ast.Node, source []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	if h, ok := n.(*ast.HTMLBlock); ok && h.HasClosure() {
		b.Write(h.ClosureLine.Value(source))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// inlineText collects the plain text below n. Block boundaries become a
// single space.
func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := child.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(source))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.CodeSpan:
			for gc := c.FirstChild(); gc != nil; gc = gc.NextSibling() {
				if t, ok := gc.(*ast.Text); ok {
					b.Write(t.Segment.Value(source))
				}
			}
			return ast.WalkSkipChildren, nil
		default:
			if child != n && child.Type() == ast.TypeBlock && b.Len() > 0 {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
