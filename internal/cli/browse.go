package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mark3labs/resource-x/internal/preview"
	genspec "github.com/mark3labs/resource-x/internal/spec"
	"github.com/mark3labs/resource-x/internal/workspace"
)

// BrowseConfig captures the options for the browse command.
type BrowseConfig struct {
	Input   string
	Out     string
	Host    string
	Port    int
	Verbose bool

	stdout io.Writer
	stderr io.Writer
}

var browseRunner = runBrowse

func newBrowseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse <file>",
		Short: "Serve the generated Swagger document in Swagger UI",
		Long:  "Serve the Swagger document generated for a markdown file in Swagger UI. Run generate first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return newUsageError(fmt.Sprintf("browse: expected exactly one markdown document\n\n%s", cmd.UsageString()))
			}
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			host, err := cmd.Flags().GetString("host")
			if err != nil {
				return err
			}
			port, err := cmd.Flags().GetInt("port")
			if err != nil {
				return err
			}
			if port < 0 || port > 65535 {
				return newUsageError(fmt.Sprintf("browse: invalid --port %d", port))
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			return browseRunner(cmd.Context(), &BrowseConfig{
				Input:   strings.TrimSpace(args[0]),
				Out:     strings.TrimSpace(out),
				Host:    strings.TrimSpace(host),
				Port:    port,
				Verbose: verbose,
				stdout:  cmd.OutOrStdout(),
				stderr:  cmd.ErrOrStderr(),
			})
		},
	}

	cmd.Flags().String("out", "", "Directory that holds .rx/ (defaults to the document's directory)")
	cmd.Flags().String("host", "localhost", "Interface to listen on")
	cmd.Flags().Int("port", 8080, "Port to listen on")

	return cmd
}

func runBrowse(ctx context.Context, cfg *BrowseConfig) error {
	out := console{w: writerOr(cfg.stdout, os.Stdout)}
	logger := newLogger(writerOr(cfg.stderr, os.Stderr), cfg.Verbose)

	layout, err := workspace.For(cfg.Input, cfg.Out, "")
	if err != nil {
		return newUsageError("browse: " + err.Error())
	}
	path, err := layout.FindSwagger()
	if err != nil {
		out.error("%v", err)
		return newUsageError("browse: " + err.Error())
	}
	doc, err := genspec.Load(ctx, path, genspec.WithLogger(logger))
	if err != nil {
		return specUsageError(err)
	}

	srv, err := preview.NewServer(doc, net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), preview.WithLogger(logger))
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Serve(ctx, func(url string) {
		out.message("swagger-ui listening on %s (press Ctrl+C to stop)", url)
	})
}
