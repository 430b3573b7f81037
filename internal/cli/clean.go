package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/resource-x/internal/workspace"
)

// CleanConfig captures the options for the clean command.
type CleanConfig struct {
	Dir   string
	Force bool

	stdout io.Writer
}

var cleanRunner = runClean

func newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the generated .rx/ directory",
		Long:  "Remove the generated .rx/ directory. Nothing is removed unless --force is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return newUsageError(fmt.Sprintf("clean: unexpected arguments: %s\n\n%s", strings.Join(args, " "), cmd.UsageString()))
			}
			dir, err := cmd.Flags().GetString("dir")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			return cleanRunner(cmd.Context(), &CleanConfig{Dir: dir, Force: force, stdout: cmd.OutOrStdout()})
		},
	}

	cmd.Flags().String("dir", ".", "Directory that holds .rx/")
	cmd.Flags().BoolP("force", "f", false, "Confirm the removal")

	return cmd
}

func runClean(_ context.Context, cfg *CleanConfig) error {
	out := console{w: writerOr(cfg.stdout, os.Stdout)}

	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		dir = "."
	}
	target := filepath.Join(dir, workspace.DirName)
	if !cfg.Force {
		out.message("Cleaning removes every generated file under %s.", target)
		return newUsageError("clean: refusing to remove " + target + " without --force")
	}
	removed, err := workspace.Clean(dir)
	if err != nil {
		return err
	}
	if !removed {
		out.message("No changes made, %s does not exist.", target)
		return nil
	}
	out.success("Directory %s removed.", target)
	return nil
}
