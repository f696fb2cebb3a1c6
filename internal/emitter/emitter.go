// Package emitter holds what every renderer shares: the options, the plan of
// files to write and the atomic writer.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	slogcontext "github.com/veqryn/slog-context"

	"github.com/mark3labs/oapi2types/internal/deps"
	"github.com/mark3labs/oapi2types/internal/model"
	"github.com/mark3labs/oapi2types/internal/naming"
)

// ErrNotEmpty is returned when the output directory already has content and
// Force is not set.
var ErrNotEmpty = errors.New("output directory is not empty")

// Options controls how a renderer writes its files.
type Options struct {
	OutDir      string // required; target directory
	PackageName string // package/module name used inside generated sources
	Force       bool   // overwrite existing files
	DryRun      bool   // don't write, only plan
	Verbose     bool
}

// Input is the resolved document handed to a renderer.
type Input struct {
	Title   string
	Version string
	Store   *model.Store
	Index   *deps.Index
}

// NewInput indexes store for rendering. It fails on dangling references.
func NewInput(title, version string, store *model.Store) (*Input, error) {
	idx, err := deps.Build(store)
	if err != nil {
		return nil, err
	}
	return &Input{Title: title, Version: version, Store: store, Index: idx}, nil
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result returns the planned files and the resolved package name.
type Result struct {
	PackageName string
	Planned     []PlannedFile
	// Order is the declaration order used by the renderer.
	Order []string
}

// Paths returns the planned relative paths.
func (r *Result) Paths() []string {
	out := make([]string, 0, len(r.Planned))
	for _, p := range r.Planned {
		out = append(out, p.RelPath)
	}
	return out
}

// Check validates the arguments every renderer requires.
func Check(name string, in *Input, opts Options) error {
	if in == nil || in.Store == nil || in.Index == nil {
		return fmt.Errorf("%s: nil input", name)
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return fmt.Errorf("%s: OutDir is required", name)
	}
	return nil
}

// Plan lists files in deterministic order.
func Plan(files map[string][]byte) []PlannedFile {
	sizes := make(map[string]int, len(files))
	rels := make([]string, 0, len(files))
	for p, content := range files {
		rel := filepath.ToSlash(p)
		sizes[rel] = len(content)
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{RelPath: rel, Size: sizes[rel], Mode: 0o644})
	}
	return planned
}

// Finish plans the files and writes them unless DryRun is set. A dry run
// still validates the output directory.
func Finish(ctx context.Context, name string, files map[string][]byte, opts Options, res *Result) (*Result, error) {
	log := slogcontext.FromCtx(ctx)
	res.Planned = Plan(files)

	abs, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("%s: resolve output directory: %w", name, err)
	}
	if opts.DryRun {
		if err := ValidateOutputDirectory(abs, opts.Force); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return res, nil
	}
	if err := WriteFiles(abs, files, opts.Force); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if opts.Verbose {
		for _, p := range res.Planned {
			log.Info("wrote file", "emitter", name, "path", p.RelPath, "size", p.Size)
		}
	}
	return res, nil
}

// WriteFiles writes every file below outDir. A non-empty outDir is rejected
// unless force is set.
func WriteFiles(outDir string, files map[string][]byte, force bool) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve output directory: %w", err)
	}
	if err := ValidateOutputDirectory(abs, force); err != nil {
		return err
	}

	rels := make([]string, 0, len(files))
	for rel := range files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	for _, rel := range rels {
		if err := writeFileAtomic(abs, rel, files[rel]); err != nil {
			return fmt.Errorf("write file %s: %w", rel, err)
		}
	}
	return nil
}

// ValidateOutputDirectory checks that absPath is absent, empty, or force is set.
func ValidateOutputDirectory(absPath string, force bool) error {
	stat, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access output directory %q: %w", absPath, err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("output path %q is not a directory", absPath)
	}
	if force {
		return nil
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return fmt.Errorf("cannot read output directory %q: %w", absPath, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %q (use --force to overwrite)", ErrNotEmpty, absPath)
	}
	return nil
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place.
func writeFileAtomic(baseDir, relPath string, content []byte) error {
	fullPath := filepath.Join(baseDir, relPath)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure target directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-oapi2types-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("set file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		return fmt.Errorf("atomic rename %s: %w", relPath, err)
	}
	success = true
	return nil
}

// Identifiers maps every name in order onto a unique identifier produced by
// ident. Earlier names keep the plain form; later clashes get a numeric
// suffix. The returned set holds every identifier handed out.
func Identifiers(order []string, ident func(string) string) (map[string]string, map[string]bool) {
	ids := make(map[string]string, len(order))
	taken := make(map[string]bool, len(order))
	alloc := naming.Allocator{Taken: func(n string) bool { return taken[n] }}
	for _, name := range order {
		id := alloc.Allocate(ident(name))
		taken[id] = true
		ids[name] = id
	}
	return ids, taken
}

// DocLines splits a description into trimmed, non-empty lines.
func DocLines(doc string) []string {
	var out []string
	for _, line := range strings.Split(doc, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
