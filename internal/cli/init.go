package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	WithConfig bool
	Force      bool
	Verbose    bool

	stdout io.Writer
}

const (
	defaultSamplePath = "sample.md"
	sampleConfigName  = "rx.yaml"
)

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample markdown document",
		Long:  "Write a sample markdown document describing a small API, ready for rx generate.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return newUsageError(fmt.Sprintf("init: unexpected arguments: %s\n\n%s", strings.Join(args, " "), cmd.UsageString()))
			}
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			withConfig, err := cmd.Flags().GetBool("with-config")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			cfg := &InitConfig{
				OutputPath: out,
				WithConfig: withConfig,
				Force:      force,
				Verbose:    verbose,
				stdout:     cmd.OutOrStdout(),
			}
			return initRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("out", defaultSamplePath, "Where to write the sample document")
	cmd.Flags().Bool("with-config", false, "Also write a commented rx.yaml next to the document")
	cmd.Flags().BoolP("force", "f", false, "Overwrite the target files if they already exist")

	return cmd
}

func runInit(_ context.Context, cfg *InitConfig) error {
	out := console{w: writerOr(cfg.stdout, os.Stdout)}

	target := strings.TrimSpace(cfg.OutputPath)
	if target == "" {
		target = defaultSamplePath
	}
	absPath, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	files := []struct {
		path    string
		content string
	}{{absPath, sampleDocument}}
	if cfg.WithConfig {
		files = append(files, struct {
			path    string
			content string
		}{filepath.Join(filepath.Dir(absPath), sampleConfigName), sampleConfigYAML})
	}

	for _, f := range files {
		if st, err := os.Stat(f.path); err == nil && !cfg.Force && st.Mode().IsRegular() {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", f.path))
		}
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err))
	}

	for _, f := range files {
		content := strings.TrimSpace(f.content) + "\n"
		// Atomic write via temp + rename
		tmp := f.path + ".tmp"
		if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
			return newUsageError(fmt.Sprintf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
		}
		if err := os.Rename(tmp, f.path); err != nil {
			_ = os.Remove(tmp)
			return newUsageError(fmt.Sprintf("init: cannot place file at %s: %v", f.path, err))
		}
		out.success("Created %s", f.path)
	}
	return nil
}

// sampleDocument is the markdown written by init. Every json or yaml block
// contributes definitions.
const sampleDocument = "# Pet Store\n\n" +
	"A small store that tracks pets and their owners. Each top-level key in a\n" +
	"`json` or `yaml` block below becomes a definition with its own CRUD routes.\n\n" +
	"## Pets\n\n" +
	"```json\n" +
	`{
  "pet": {
    "type": "object",
    "required": ["name"],
    "properties": {
      "id": { "type": "integer", "format": "int64", "minimum": 1 },
      "name": { "type": "string", "example": "Rex" },
      "tag": { "type": "string", "enum": ["dog", "cat", "bird"] },
      "owner": { "$ref": "#/definitions/owner" }
    }
  }
}` + "\n```\n\n" +
	"## Owners\n\n" +
	"Definitions may also be written in YAML.\n\n" +
	"```yaml\n" +
	`owner:
  type: object
  required:
    - email
  properties:
    name:
      type: string
    email:
      type: string
      format: email` + "\n```\n"

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# rx configuration (YAML)
# All fields are optional. Command-line flags override config values.

# Markdown documents to generate from (comma-separated or list).
# inputs: [sample.md]

# Directory that receives .rx/. Defaults to each document's directory.
# out: ./build

# Serialization of the Swagger files (yaml|json).
# format: yaml

# Value of info.version in the generated document.
# apiVersion: 1.0.0

# Value of the {{baseUrl}} variable in the Postman collection.
# baseUrl: http://localhost:3000

# Add OPTIONS preflight operations.
# cors: true

# Fail when a response example cannot be generated.
# strictMocks: false

# Write the Postman collection and the Terraform configuration.
# postman: true
# terraform: true

# Preview planned outputs without writing files.
# dryRun: false

# Overwrite generated files that changed.
# force: false

# Enable verbose logging.
# verbose: false
`
