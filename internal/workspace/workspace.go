// Package workspace lays out generated artifacts under a .rx/<name>/
// directory next to the source document and writes them atomically.
package workspace

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/resource-x/internal/emitter/postmanemitter"
	"github.com/mark3labs/resource-x/internal/emitter/tfemitter"
	genspec "github.com/mark3labs/resource-x/internal/spec"
)

// DirName is the directory that holds every generated subdirectory.
const DirName = ".rx"

const (
	GitignoreFile    = ".gitignore"
	gitignoreContent = "# Ignoring this directory (generated by resource-x)\n*\n"
)

// ErrExists is returned when a write would replace a file and Force is unset.
var ErrExists = errors.New("file already exists")

// Layout resolves artifact paths for one source document.
type Layout struct {
	Root   string // directory that contains .rx/
	Name   string // source file name without extension
	Format genspec.Format
}

// For returns the layout of the document at path. When root is empty the
// document's own directory is used.
func For(path, root string, format genspec.Format) (Layout, error) {
	if strings.TrimSpace(path) == "" {
		return Layout{}, fmt.Errorf("workspace: document path is required")
	}
	if root == "" {
		root = filepath.Dir(path)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve root: %w", err)
	}
	if format == "" {
		format = genspec.FormatYAML
	}
	base := filepath.Base(path)
	return Layout{Root: abs, Name: strings.TrimSuffix(base, filepath.Ext(base)), Format: format}, nil
}

func (l Layout) Dir() string { return filepath.Join(l.Root, DirName, l.Name) }

func (l Layout) SwaggerFile() string { return "swagger." + l.Format.Ext() }

func (l Layout) MockFile() string { return "swagger.mock." + l.Format.Ext() }

func (l Layout) Path(rel string) string { return filepath.Join(l.Dir(), rel) }

// FindSwagger returns the generated unmocked document, trying the layout's
// format first.
func (l Layout) FindSwagger() (string, error) {
	candidates := []string{l.SwaggerFile()}
	for _, f := range []genspec.Format{genspec.FormatYAML, genspec.FormatJSON} {
		if f != l.Format {
			candidates = append(candidates, "swagger."+f.Ext())
		}
	}
	for _, c := range candidates {
		p := l.Path(c)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s does not exist, run the generate command first", filepath.Join(DirName, l.Name, l.SwaggerFile()))
}

// Artifacts are the encoded outputs of one pipeline run. Empty entries are
// skipped.
type Artifacts struct {
	Specification []byte
	Mocked        []byte
	Terraform     []byte
	Postman       []byte
}

// Files returns the files to write for a, in a fixed order.
func (l Layout) Files(a Artifacts) []File {
	files := []File{
		{RelPath: l.SwaggerFile(), Content: a.Specification},
		{RelPath: l.MockFile(), Content: a.Mocked},
		{RelPath: tfemitter.FileName, Content: a.Terraform},
		{RelPath: postmanemitter.FileName, Content: a.Postman},
		{RelPath: GitignoreFile, Content: []byte(gitignoreContent)},
	}
	out := files[:0]
	for _, f := range files {
		if len(f.Content) > 0 {
			out = append(out, f)
		}
	}
	return out
}

type File struct {
	RelPath string
	Content []byte
}

type Options struct {
	Force   bool // overwrite files whose content differs
	DryRun  bool // plan only
	Verbose bool
	Logger  *slog.Logger
}

// PlannedFile describes a file the writer intends to write.
type PlannedFile struct {
	RelPath   string
	Size      int
	Mode      os.FileMode
	Unchanged bool
}

type Result struct {
	Dir     string
	Planned []PlannedFile
	// Stale lists generated files from an earlier run that this run does not
	// produce, such as main.tf after Terraform output was turned off.
	Stale []string
	// Removed is the subset of Stale deleted because Force was set.
	Removed []string
}

// Write plans files under the layout's directory and, unless DryRun is set,
// writes them. Files whose on-disk content already matches are left alone.
// A differing existing file fails the whole write with ErrExists unless
// Force is set. Stale artifacts are reported, and removed under Force.
func Write(l Layout, files []File, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dir := l.Dir()
	res := &Result{Dir: dir}

	var conflicts []string
	for _, f := range files {
		pf := PlannedFile{RelPath: filepath.ToSlash(f.RelPath), Size: len(f.Content), Mode: 0o644}
		existing, err := os.ReadFile(filepath.Join(dir, f.RelPath))
		switch {
		case err == nil && bytes.Equal(existing, f.Content):
			pf.Unchanged = true
		case err == nil:
			conflicts = append(conflicts, pf.RelPath)
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read %s: %w", pf.RelPath, err)
		}
		res.Planned = append(res.Planned, pf)
	}
	if len(conflicts) > 0 && !opts.Force {
		return nil, fmt.Errorf("%w in %s: %s (use --force to overwrite)", ErrExists, dir, strings.Join(conflicts, ", "))
	}
	stale, err := staleFiles(dir, files)
	if err != nil {
		return nil, err
	}
	res.Stale = stale
	if opts.DryRun {
		return res, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	for i, f := range files {
		if res.Planned[i].Unchanged {
			logger.Debug("unchanged", "file", f.RelPath)
			continue
		}
		if err := writeAtomic(filepath.Join(dir, f.RelPath), f.Content); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.RelPath, err)
		}
		logger.Debug("wrote", "file", f.RelPath, "bytes", len(f.Content))
	}
	for _, rel := range res.Stale {
		if !opts.Force {
			logger.Warn("stale artifact left in place", "file", rel)
			continue
		}
		if err := os.Remove(filepath.Join(dir, rel)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove %s: %w", rel, err)
		}
		logger.Debug("removed stale", "file", rel)
		res.Removed = append(res.Removed, rel)
	}
	return res, nil
}

// generatedFiles names every artifact a run can produce, in either format.
func generatedFiles() []string {
	var out []string
	for _, f := range []genspec.Format{genspec.FormatYAML, genspec.FormatJSON} {
		l := Layout{Format: f}
		out = append(out, l.SwaggerFile(), l.MockFile())
	}
	return append(out, tfemitter.FileName, postmanemitter.FileName)
}

// staleFiles returns the generated files present in dir that files does not
// cover.
func staleFiles(dir string, files []File) ([]string, error) {
	keep := make(map[string]bool, len(files))
	for _, f := range files {
		keep[filepath.ToSlash(f.RelPath)] = true
	}
	var out []string
	for _, name := range generatedFiles() {
		if keep[name] {
			continue
		}
		st, err := os.Stat(filepath.Join(dir, name))
		switch {
		case err == nil && st.Mode().IsRegular():
			out = append(out, name)
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
	}
	return out, nil
}

// writeAtomic writes through a temp file in the target directory and renames
// it into place.
func writeAtomic(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}

// Clean removes root/.rx. A missing directory is not an error. It reports
// whether anything was removed.
func Clean(root string) (bool, error) {
	dir := filepath.Join(root, DirName)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("remove %s: %w", dir, err)
	}
	return true, nil
}
