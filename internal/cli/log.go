package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
)

// newLogger returns the structured logger handed to every stage. Verbose
// lowers the level to debug.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// console prints the user-facing status lines.
type console struct {
	w io.Writer
}

var (
	messageColor = color.New(color.FgYellow)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
)

func (c console) message(format string, args ...any) {
	messageColor.Fprintln(c.w, fmt.Sprintf(format, args...))
}

func (c console) success(format string, args ...any) {
	successColor.Fprintln(c.w, fmt.Sprintf(format, args...))
}

func (c console) error(format string, args ...any) {
	errorColor.Fprintln(c.w, fmt.Sprintf(format, args...))
}

// printPlan lists the files a dry run would write.
func (c console) printPlan(dir string, relPaths []string) {
	fmt.Fprintf(c.w, "Planned writes to %s (%d files):\n", dir, len(relPaths))
	for _, p := range relPaths {
		fmt.Fprintf(c.w, "- %s\n", p)
	}
}
