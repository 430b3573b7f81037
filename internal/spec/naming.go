package spec

import (
	"strings"

	"github.com/gertd/go-pluralize"
	"github.com/iancoleman/strcase"
)

// Namer derives collection names and operation identifiers. Implementations
// must be deterministic and total over valid identifiers.
type Namer interface {
	Plural(word string) string
	CamelCase(words ...string) string
}

type defaultNamer struct {
	client *pluralize.Client
}

// DefaultNamer pluralizes with go-pluralize's rule engine and camel-cases with
// strcase.
func DefaultNamer() Namer {
	return defaultNamer{client: pluralize.NewClient()}
}

func (n defaultNamer) Plural(word string) string {
	return n.client.Plural(word)
}

func (defaultNamer) CamelCase(words ...string) string {
	return strcase.ToLowerCamel(strings.Join(words, " "))
}
