// Package pipeline runs the markdown to Swagger stages for one or more
// documents.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/resource-x/internal/document"
	"github.com/mark3labs/resource-x/internal/emitter/postmanemitter"
	"github.com/mark3labs/resource-x/internal/emitter/tfemitter"
	"github.com/mark3labs/resource-x/internal/mock"
	genspec "github.com/mark3labs/resource-x/internal/spec"
	"github.com/mark3labs/resource-x/internal/workspace"
)

// Settings configures a run. The zero value is not usable; start from
// DefaultSettings.
type Settings struct {
	Version   string
	CORS      bool
	Strict    bool // example failures abort the run
	Terraform bool
	Postman   bool
	BaseURL   string

	Namer     genspec.Namer
	Validator genspec.Validator
	Examples  mock.ExampleGenerator
	Logger    *slog.Logger

	// Concurrency bounds RunAll. Zero or less means unbounded.
	Concurrency int
}

func DefaultSettings() Settings {
	return Settings{
		Version:   genspec.DefaultVersion,
		CORS:      true,
		Terraform: true,
		Postman:   true,
		Namer:     genspec.DefaultNamer(),
		Validator: genspec.KinValidator{},
		Examples:  mock.SchemaExamples{},
		Logger:    slog.New(slog.DiscardHandler),
	}
}

type Option func(*Settings)

func WithVersion(v string) Option                         { return func(s *Settings) { s.Version = v } }
func WithCORS(enabled bool) Option                        { return func(s *Settings) { s.CORS = enabled } }
func WithStrictMocks(strict bool) Option                  { return func(s *Settings) { s.Strict = strict } }
func WithTerraform(enabled bool) Option                   { return func(s *Settings) { s.Terraform = enabled } }
func WithPostman(enabled bool) Option                     { return func(s *Settings) { s.Postman = enabled } }
func WithBaseURL(u string) Option                         { return func(s *Settings) { s.BaseURL = u } }
func WithNamer(n genspec.Namer) Option                    { return func(s *Settings) { s.Namer = n } }
func WithValidator(v genspec.Validator) Option            { return func(s *Settings) { s.Validator = v } }
func WithExampleGenerator(g mock.ExampleGenerator) Option { return func(s *Settings) { s.Examples = g } }
func WithLogger(l *slog.Logger) Option                    { return func(s *Settings) { s.Logger = l } }
func WithConcurrency(n int) Option                        { return func(s *Settings) { s.Concurrency = n } }

// Source is one markdown document.
type Source struct {
	Name string // used for logging and error locations
	Data []byte
}

// Artifacts holds everything produced for one document. Terraform and
// Postman are nil when disabled.
type Artifacts struct {
	Source        string
	Title         string
	Definitions   *genspec.Definitions
	Specification *genspec.Document
	Mocked        *genspec.Document
	Terraform     []byte
	Postman       []byte
}

// Encode serializes the documents for persistence.
func (a *Artifacts) Encode(format genspec.Format) (workspace.Artifacts, error) {
	spec, err := genspec.Marshal(a.Specification, format)
	if err != nil {
		return workspace.Artifacts{}, fmt.Errorf("encode specification: %w", err)
	}
	mocked, err := genspec.Marshal(a.Mocked, format)
	if err != nil {
		return workspace.Artifacts{}, fmt.Errorf("encode mocked specification: %w", err)
	}
	return workspace.Artifacts{
		Specification: spec,
		Mocked:        mocked,
		Terraform:     a.Terraform,
		Postman:       a.Postman,
	}, nil
}

// Run executes every stage for src in order. Any failure aborts the run and
// no artifacts are returned.
func Run(ctx context.Context, src Source, opts ...Option) (*Artifacts, error) {
	s := DefaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s.run(ctx, src)
}

func (s Settings) run(ctx context.Context, src Source) (*Artifacts, error) {
	logger := s.Logger.With("document", src.Name)

	tokens, err := document.Tokenize(src.Data)
	if err != nil {
		return nil, locate(err, src.Name, "tokenize")
	}
	title, err := document.Title(tokens)
	if err != nil {
		return nil, locate(err, src.Name, "title")
	}
	combined, err := document.Schemas(tokens)
	if err != nil {
		return nil, locate(err, src.Name, "schemas")
	}
	defs, err := document.Definitions(combined)
	if err != nil {
		return nil, locate(err, src.Name, "schemas")
	}
	logger.Debug("definitions collected", "title", title, "count", defs.Len())

	spec, err := genspec.Build(ctx, defs, title,
		genspec.WithVersion(s.Version),
		genspec.WithCORS(s.CORS),
		genspec.WithNamer(s.Namer),
		genspec.WithValidator(s.Validator),
		genspec.WithLogger(logger),
	)
	if err != nil {
		return nil, locate(err, src.Name, "routes")
	}

	mocked, err := mock.Synthesize(ctx, spec, s.mockOptions(logger)...)
	if err != nil {
		return nil, locate(err, src.Name, "mock")
	}

	out := &Artifacts{Source: src.Name, Title: title, Definitions: defs, Specification: spec, Mocked: mocked}
	if s.Terraform {
		out.Terraform, err = tfemitter.Emit(ctx, mocked, tfemitter.Options{MockOptions: s.mockOptions(logger), Logger: logger})
		if err != nil {
			return nil, locate(err, src.Name, "terraform")
		}
	}
	if s.Postman {
		out.Postman, err = postmanemitter.Emit(ctx, spec, postmanemitter.Options{BaseURL: s.BaseURL, Examples: s.Examples, Logger: logger})
		if err != nil {
			return nil, locate(err, src.Name, "postman")
		}
	}
	logger.Debug("pipeline finished", "paths", spec.Paths.Len())
	return out, nil
}

func (s Settings) mockOptions(logger *slog.Logger) []mock.Option {
	return []mock.Option{
		mock.WithValidator(s.Validator),
		mock.WithExampleGenerator(s.Examples),
		mock.WithStrict(s.Strict),
		mock.WithLogger(logger),
	}
}

// RunAll runs each source through its own pipeline concurrently. Results are
// in source order. The first failure cancels the remaining runs' context.
func RunAll(ctx context.Context, sources []Source, opts ...Option) ([]*Artifacts, error) {
	s := DefaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	out := make([]*Artifacts, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	for i, src := range sources {
		g.Go(func() error {
			a, err := s.run(gctx, src)
			if err != nil {
				return err
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// locate records the source on structured errors and adds the stage to
// anything else.
func locate(err error, name, stage string) error {
	var se *genspec.SpecError
	if errors.As(err, &se) {
		if se.Location == "" {
			se.Location = name
		}
		if se.Stage == "" {
			se.Stage = stage
		}
		return err
	}
	return fmt.Errorf("%s: %w", stage, err)
}
