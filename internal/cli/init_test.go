package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/resource-x/internal/pipeline"
)

func TestInit_WritesSampleDocument(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.md")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("init execute: %v", err)
	}
	if !strings.Contains(out.String(), "Created "+path) {
		t.Fatalf("unexpected output: %s", out.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Pet Store\n") {
		t.Fatalf("unexpected sample contents: %s", data)
	}
	if _, err := os.Stat(filepath.Join(dir, sampleConfigName)); !os.IsNotExist(err) {
		t.Fatalf("config should only be written with --with-config")
	}

	// The sample must go through the whole pipeline.
	a, err := pipeline.Run(t.Context(), pipeline.Source{Name: path, Data: data})
	if err != nil {
		t.Fatalf("sample does not generate: %v", err)
	}
	if a.Title != "pet-store" || a.Definitions.Len() != 2 {
		t.Fatalf("unexpected sample result: title=%q definitions=%d", a.Title, a.Definitions.Len())
	}
}

func TestInit_WithConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", filepath.Join(dir, "api.md"), "--with-config"})

	if err := root.Execute(); err != nil {
		t.Fatalf("init execute: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, sampleConfigName))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "rx configuration") {
		t.Fatalf("unexpected config contents: %s", data)
	}
}

func TestInit_ExistingWithoutForce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.md")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("prewrite: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path})

	err := root.Execute()
	if err == nil {
		t.Fatalf("expected error for existing file without --force")
	}
	if _, ok := err.(usageError); !ok {
		t.Fatalf("expected usage error, got %T: %v", err, err)
	}

	root = NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path, "-f"})
	if err := root.Execute(); err != nil {
		t.Fatalf("forced init: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) == "x" {
		t.Fatalf("expected file to be overwritten with --force")
	}
}
