// Package emitter holds what every renderer shares: run metadata, output
// options, file planning and atomic writes, and template loading.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/rsgen/internal/surface"
)

// ErrOutDirRequired is returned when per-resource output is requested
// without an output directory.
var ErrOutDirRequired = errors.New("as-modules output requires an output directory")

// Metadata describes the generated artifact.
type Metadata struct {
	Title       string
	Description string
	Summary     string // defaults to Description when empty
	Version     string
}

// WithDefaults fills Summary from Description.
func (m Metadata) WithDefaults() Metadata {
	if strings.TrimSpace(m.Summary) == "" {
		m.Summary = m.Description
	}
	return m
}

// Options controls where and how an emitter writes.
type Options struct {
	Output    string // combined output file; "" or "-" writes to Stdout
	OutDir    string // required with AsModules
	AsModules bool   // write one <kind>.<ext> file per resource
	Template  string // optional custom template path
	Force     bool   // write into a non-empty OutDir
	DryRun    bool   // plan only
	Stdout    io.Writer
	Logger    *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// Partial reports whether err is a per-resource batch failure that still
// lets the successful resources be written, which is only the case in
// as-modules mode.
func (o Options) Partial(err error) bool {
	var batch *surface.BatchError
	return o.AsModules && errors.As(err, &batch)
}

// Validate reports option combinations that cannot be satisfied.
func (o Options) Validate() error {
	if o.AsModules && strings.TrimSpace(o.OutDir) == "" {
		return ErrOutDirRequired
	}
	return nil
}

// ToStdout reports whether the combined artifact goes to stdout.
func (o Options) ToStdout() bool {
	return !o.AsModules && (o.Output == "" || o.Output == "-")
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result returns the planned files.
type Result struct {
	Planned []PlannedFile
	// Dir is the absolute directory files were planned relative to; empty
	// for stdout.
	Dir string
}

// Plan lists files in deterministic order.
func Plan(files map[string][]byte) []PlannedFile {
	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, filepath.ToSlash(p))
	}
	sort.Strings(rels)

	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		var mode os.FileMode = 0o644
		if isExecutable(rel) {
			mode = 0o755
		}
		planned = append(planned, PlannedFile{RelPath: rel, Size: len(files[filepath.FromSlash(rel)]), Mode: mode})
	}
	return planned
}

// Write emits a combined artifact or a set of per-resource modules
// according to opts. combined is the single-file rendering; modules maps
// relative file names to content. Only the one selected by opts is used.
func Write(ctx context.Context, combined []byte, modules map[string][]byte, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.AsModules {
		abs, err := filepath.Abs(opts.OutDir)
		if err != nil {
			return nil, fmt.Errorf("emitter: resolve output directory: %w", err)
		}
		res := &Result{Planned: Plan(modules), Dir: abs}
		if err := validateOutputDirectory(abs, opts.Force); err != nil {
			return nil, err
		}
		if opts.DryRun {
			return res, nil
		}
		if err := writeFiles(abs, modules); err != nil {
			return nil, err
		}
		logWritten(opts.logger(), res)
		return res, nil
	}

	if opts.ToStdout() {
		res := &Result{Planned: []PlannedFile{{RelPath: "-", Size: len(combined), Mode: 0o644}}}
		if opts.DryRun {
			return res, nil
		}
		w := opts.Stdout
		if w == nil {
			w = os.Stdout
		}
		if _, err := w.Write(combined); err != nil {
			return nil, fmt.Errorf("emitter: write stdout: %w", err)
		}
		return res, nil
	}

	abs, err := filepath.Abs(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("emitter: resolve output file: %w", err)
	}
	dir, base := filepath.Split(abs)
	res := &Result{Planned: Plan(map[string][]byte{base: combined}), Dir: filepath.Clean(dir)}
	if opts.DryRun {
		return res, nil
	}
	if err := writeFiles(res.Dir, map[string][]byte{base: combined}); err != nil {
		return nil, err
	}
	logWritten(opts.logger(), res)
	return res, nil
}

func logWritten(l *slog.Logger, res *Result) {
	for _, pf := range res.Planned {
		l.Debug("wrote file", slog.String("dir", res.Dir), slog.String("path", pf.RelPath), slog.Int("size", pf.Size))
	}
}

func writeFiles(abs string, files map[string][]byte) error {
	if err := createDirectoryStructure(abs, files); err != nil {
		return fmt.Errorf("emitter: create directory structure: %w", err)
	}
	for rel, content := range files {
		if err := writeFileAtomic(abs, rel, content); err != nil {
			return fmt.Errorf("emitter: write file %s: %w", rel, err)
		}
	}
	return nil
}

// validateOutputDirectory checks if the output directory is valid for writing
func validateOutputDirectory(absPath string, force bool) error {
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
		return fmt.Errorf("output directory %q is not empty (use --force to overwrite)", absPath)
	}
	return nil
}

func createDirectoryStructure(baseDir string, files map[string][]byte) error {
	dirs := make(map[string]bool)
	for rel := range files {
		if dir := filepath.Dir(rel); dir != "." {
			dirs[dir] = true
		}
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", baseDir, err)
	}
	for dir := range dirs {
		if err := os.MkdirAll(filepath.Join(baseDir, dir), 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// writeFileAtomic writes a file atomically using temporary file + rename
func writeFileAtomic(baseDir, relPath string, content []byte) error {
	fullPath := filepath.Join(baseDir, relPath)
	var mode os.FileMode = 0o644
	if isExecutable(relPath) {
		mode = 0o755
	}

	dir := filepath.Dir(fullPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-rsgen-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", relPath, err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
		}
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(content); err != nil {
		return fmt.Errorf("write content to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Chmod(mode); err != nil {
		return fmt.Errorf("set file permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	tmpFile = nil

	if err := os.Rename(tmpPath, fullPath); err != nil {
		return fmt.Errorf("atomic rename %s to %s: %w", tmpPath, fullPath, err)
	}
	success = true
	return nil
}

// isExecutable marks generated entry points and scripts.
func isExecutable(relPath string) bool {
	name := filepath.Base(relPath)
	switch {
	case name == "main.py":
		return true
	case filepath.Ext(name) == ".sh":
		return true
	}
	return false
}
