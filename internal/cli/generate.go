package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/resource-x/internal/pipeline"
	genspec "github.com/mark3labs/resource-x/internal/spec"
	"github.com/mark3labs/resource-x/internal/workspace"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Inputs      []string
	Out         string
	Format      string
	APIVersion  string
	BaseURL     string
	CORS        bool
	StrictMocks bool
	Postman     bool
	Terraform   bool
	ConfigPath  string
	DryRun      bool
	Force       bool
	Verbose     bool

	stdout io.Writer
	stderr io.Writer
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Format:     string(genspec.FormatYAML),
		APIVersion: genspec.DefaultVersion,
		CORS:       true,
		Postman:    true,
		Terraform:  true,
	}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <file>...",
		Short: "Generate the Swagger API files for markdown documents",
		Long: "Generate a Swagger 2.0 specification, its mocked variant, a Terraform configuration " +
			"and a Postman collection for each markdown document. Files are written to .rx/<name>/ " +
			"next to the document unless --out is set. Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  rx generate api.md
  rx generate --format json --api-version 2.0.0 users.md orders.md
  rx --config rx.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd, args)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("out", "", "Directory that receives .rx/ (defaults to each document's directory)")
	flags.String("format", "", "Serialization of the Swagger files (yaml|json); defaults to yaml")
	flags.String("api-version", "", "Value of info.version; defaults to 1.0.0")
	flags.String("base-url", "", "Value of the Postman {{baseUrl}} variable")
	flags.Bool("cors", true, "Add OPTIONS preflight operations")
	flags.Bool("strict-mocks", false, "Fail when a response example cannot be generated")
	flags.Bool("postman", true, "Write the Postman collection")
	flags.Bool("terraform", true, "Write the Terraform configuration")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing generated files when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command, args []string) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Inputs = args
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.stdout = cmd.OutOrStdout()
	cfg.stderr = cmd.ErrOrStderr()

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"out", &cfg.Out},
		{"format", &cfg.Format},
		{"api-version", &cfg.APIVersion},
		{"base-url", &cfg.BaseURL},
	}
	for _, s := range strs {
		if !flags.Changed(s.name) {
			continue
		}
		value, err := flags.GetString(s.name)
		if err != nil {
			return err
		}
		*s.dst = strings.TrimSpace(value)
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"cors", &cfg.CORS},
		{"strict-mocks", &cfg.StrictMocks},
		{"postman", &cfg.Postman},
		{"terraform", &cfg.Terraform},
		{"dry-run", &cfg.DryRun},
		{"force", &cfg.Force},
		{"verbose", &cfg.Verbose},
	}
	for _, b := range bools {
		if !flags.Changed(b.name) {
			continue
		}
		value, err := flags.GetBool(b.name)
		if err != nil {
			return err
		}
		*b.dst = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Inputs = sanitizeList(c.Inputs)
	c.Out = strings.TrimSpace(c.Out)
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.APIVersion = strings.TrimSpace(c.APIVersion)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.APIVersion == "" {
		c.APIVersion = genspec.DefaultVersion
	}
}

func (c *GenerateConfig) validate() error {
	if len(c.Inputs) == 0 {
		return newUsageError("generate: at least one markdown document is required (as an argument or inputs in the config file)")
	}
	format, err := genspec.ParseFormat(c.Format)
	if err != nil {
		return newUsageError("generate: " + err.Error())
	}
	c.Format = string(format)

	seen := map[string]string{}
	for _, in := range c.Inputs {
		layout, err := workspace.For(in, c.Out, format)
		if err != nil {
			return newUsageError("generate: " + err.Error())
		}
		if prev, ok := seen[layout.Dir()]; ok {
			return newUsageError(fmt.Sprintf("generate: %q and %q would both write to %s", prev, in, layout.Dir()))
		}
		seen[layout.Dir()] = in
	}
	return nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	out := console{w: writerOr(cfg.stdout, os.Stdout)}
	logger := newLogger(writerOr(cfg.stderr, os.Stderr), cfg.Verbose)

	// 1) Read every document up front so a missing file fails before any work.
	sources := make([]pipeline.Source, 0, len(cfg.Inputs))
	for _, in := range cfg.Inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return newUsageError(fmt.Sprintf("generate: read %s: %v", in, err))
		}
		sources = append(sources, pipeline.Source{Name: in, Data: data})
	}

	// 2) Run the pipelines. Nothing is written unless every document succeeds.
	results, err := pipeline.RunAll(ctx, sources,
		pipeline.WithVersion(cfg.APIVersion),
		pipeline.WithCORS(cfg.CORS),
		pipeline.WithStrictMocks(cfg.StrictMocks),
		pipeline.WithPostman(cfg.Postman),
		pipeline.WithTerraform(cfg.Terraform),
		pipeline.WithBaseURL(cfg.BaseURL),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		return specUsageError(err)
	}

	// 3) Encode and plan every write before touching the file system.
	format := genspec.Format(cfg.Format)
	type pending struct {
		layout workspace.Layout
		files  []workspace.File
	}
	plans := make([]pending, 0, len(results))
	for _, a := range results {
		layout, err := workspace.For(a.Source, cfg.Out, format)
		if err != nil {
			return err
		}
		encoded, err := a.Encode(format)
		if err != nil {
			return err
		}
		files := layout.Files(encoded)
		if _, err := workspace.Write(layout, files, workspace.Options{Force: cfg.Force, DryRun: true}); err != nil {
			return wrapOutputError(err, layout.Dir())
		}
		plans = append(plans, pending{layout: layout, files: files})
	}

	// 4) Write, or print the plan on a dry run.
	for _, p := range plans {
		res, err := workspace.Write(p.layout, p.files, workspace.Options{
			Force:   cfg.Force,
			DryRun:  cfg.DryRun,
			Verbose: cfg.Verbose,
			Logger:  logger,
		})
		if err != nil {
			return wrapOutputError(err, p.layout.Dir())
		}
		if cfg.DryRun {
			paths := make([]string, 0, len(res.Planned))
			for _, f := range res.Planned {
				paths = append(paths, f.RelPath)
			}
			out.printPlan(res.Dir, paths)
			out.reportStale(res, cfg.Force, true)
			continue
		}
		out.success("Generated %s", relativeToCwd(res.Dir))
		out.reportStale(res, cfg.Force, false)
	}
	return nil
}

// reportStale tells the user about artifacts of an earlier run that this run
// no longer produces.
func (c console) reportStale(res *workspace.Result, force, dryRun bool) {
	if len(res.Stale) == 0 {
		return
	}
	list := strings.Join(res.Stale, ", ")
	switch {
	case force && dryRun:
		c.message("Would remove stale files: %s", list)
	case force:
		c.message("Removed stale files: %s", strings.Join(res.Removed, ", "))
	default:
		c.message("Stale files from an earlier run left in %s: %s (use --force to remove)", relativeToCwd(res.Dir), list)
	}
}

// specUsageError maps structured pipeline errors into friendly messages.
func specUsageError(err error) error {
	var se *genspec.SpecError
	if !errors.As(err, &se) {
		return err
	}
	msg := fmt.Sprintf("%s: %s", se.Code, se.Error())
	if se.Location != "" {
		msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
	}
	if se.JSONPointer != "" {
		msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
	}
	return usageError{msg: msg, cause: err}
}

func wrapOutputError(err error, outDir string) error {
	if errors.Is(err, workspace.ErrExists) {
		return usageError{msg: fmt.Sprintf("output error for %s: %v", outDir, err), cause: err}
	}
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") {
		return usageError{msg: fmt.Sprintf("output error for %s: %s\nHint: choose a different --out.", outDir, msg), cause: err}
	}
	return err
}

func relativeToCwd(p string) string {
	wd, err := os.Getwd()
	if err != nil {
		return p
	}
	if rel, err := filepath.Rel(wd, p); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return p
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}

func sanitizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	strs := map[string]*string{
		"out":        &cfg.Out,
		"format":     &cfg.Format,
		"apiversion": &cfg.APIVersion,
		"baseurl":    &cfg.BaseURL,
	}
	bools := map[string]*bool{
		"cors":        &cfg.CORS,
		"strictmocks": &cfg.StrictMocks,
		"postman":     &cfg.Postman,
		"terraform":   &cfg.Terraform,
		"dryrun":      &cfg.DryRun,
		"force":       &cfg.Force,
		"verbose":     &cfg.Verbose,
	}

	for key, value := range raw {
		normalized := normalizeKey(key)
		if dst, ok := strs[normalized]; ok {
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*dst = str
			continue
		}
		if dst, ok := bools[normalized]; ok {
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*dst = val
			continue
		}
		switch normalized {
		case "inputs", "input":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Inputs = list
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
