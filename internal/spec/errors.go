package spec

import (
	"errors"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// ErrorCode categorizes generation errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError                ErrorCode = "InputError"
	ParseError                ErrorCode = "ParseError"
	MissingTitleError         ErrorCode = "MissingTitleError"
	SchemaParseError          ErrorCode = "SchemaParseError"
	InvalidSpecificationError ErrorCode = "InvalidSpecificationError"
	MockDataGenerationError   ErrorCode = "MockDataGenerationError"
)

// Sentinels matched by errors.Is against a *SpecError of the same code.
var (
	ErrInput                = errors.New("input error")
	ErrParse                = errors.New("parse error")
	ErrMissingTitle         = errors.New("missing title")
	ErrSchemaParse          = errors.New("schema parse error")
	ErrInvalidSpecification = errors.New("invalid specification")
	ErrMockDataGeneration   = errors.New("mock data generation error")
)

var sentinels = map[ErrorCode]error{
	InputError:                ErrInput,
	ParseError:                ErrParse,
	MissingTitleError:         ErrMissingTitle,
	SchemaParseError:          ErrSchemaParse,
	InvalidSpecificationError: ErrInvalidSpecification,
	MockDataGenerationError:   ErrMockDataGeneration,
}

// SpecError is a structured error with the failing stage and an optional
// location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Stage       string // tokenize, title, schemas, routes, mock, terraform, ...
	Message     string
	Location    string // file path
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SpecError) Error() string {
	if e.Stage == "" {
		return e.Message
	}
	return e.Stage + ": " + e.Message
}

func (e *SpecError) Unwrap() error { return e.Cause }

func (e *SpecError) Is(target error) bool {
	return sentinels[e.Code] == target
}

// NewError builds a SpecError whose message is the cause's text.
func NewError(code ErrorCode, stage string, cause error) *SpecError {
	return &SpecError{Code: code, Stage: stage, Message: cause.Error(), JSONPointer: extractJSONPointer(cause), Cause: cause}
}

// IsCode reports whether err carries a SpecError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *SpecError
	return errors.As(err, &se) && se.Code == code
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	// Take the first entry of a MultiError for brevity.
	if me, ok := err.(openapi3.MultiError); ok {
		if len(me) > 0 {
			return extractJSONPointer(me[0])
		}
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}
