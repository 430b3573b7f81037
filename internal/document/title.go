package document

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	genspec "github.com/mark3labs/resource-x/internal/spec"
)

// Title returns the slug of the first depth-1 heading: lower-cased with
// whitespace runs joined by a single hyphen.
func Title(tokens []Token) (string, error) {
	for _, tok := range tokens {
		if tok.Kind != KindHeading || tok.Depth != 1 {
			continue
		}
		words := strings.Fields(cases.Lower(language.Und).String(tok.Text))
		if len(words) == 0 {
			return "", &genspec.SpecError{Code: genspec.MissingTitleError, Stage: "title", Message: "the first top-level heading is empty"}
		}
		return strings.Join(words, "-"), nil
	}
	return "", &genspec.SpecError{Code: genspec.MissingTitleError, Stage: "title", Message: "document has no top-level heading"}
}
