// Package index orchestrates full rebuilds: enumerate sources, convert,
// write a fresh database, and swap it into place atomically.
package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/convert"
	sifterrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/store"
)

// BuilderConfig contains configuration for a Builder.
type BuilderConfig struct {
	// SourceDir is the content root, absolute or relative to RepoRoot.
	SourceDir string

	// RepoRoot anchors relative source dirs and the commit lookup.
	RepoRoot string

	// OutputPath is the index file or a directory to place it in.
	OutputPath string

	// Convert tunes per-file conversion.
	Convert convert.Options

	// Logger receives per-file skip/failure events. Defaults to
	// slog.Default when nil.
	Logger *slog.Logger
}

// Result summarizes one completed build.
type Result struct {
	OutputPath string
	DocCount   int
	Skipped    int
	RepoCommit string
	Duration   time.Duration
}

// Builder performs full index rebuilds.
type Builder struct {
	cfg    BuilderConfig
	logger *slog.Logger
}

// NewBuilder creates a Builder for the given configuration.
func NewBuilder(cfg BuilderConfig) *Builder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{cfg: cfg, logger: logger}
}

// Build rebuilds the index from scratch. The new database is written to a
// temp file beside the final location and renamed over it only after a
// successful commit, so a serving process never observes a partial index.
// Concurrent builds against the same output are serialized by a lock file.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()

	root, err := ResolveRoot(b.cfg.SourceDir, b.cfg.RepoRoot)
	if err != nil {
		return nil, err
	}

	files, err := collectSourceFiles(root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, sifterrors.Newf(sifterrors.ErrCodeNoSourceFiles,
			"no .md/.mdx files under %s", root)
	}

	outPath, err := resolveOutputFile(b.cfg.OutputPath)
	if err != nil {
		return nil, err
	}

	lock := flock.New(outPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeBuildLocked, err)
	}
	if !locked {
		return nil, sifterrors.Newf(sifterrors.ErrCodeBuildLocked,
			"another build holds %s.lock", outPath)
	}
	defer func() { _ = lock.Unlock() }()

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	result, err := b.buildInto(ctx, tmpPath, root, files)
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}

	if err := atomic.ReplaceFile(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return nil, sifterrors.Wrap(sifterrors.ErrCodeIndexReplace, err)
	}

	result.OutputPath = outPath
	result.Duration = time.Since(start)

	b.logger.Info("index_built",
		slog.String("output", outPath),
		slog.Int("doc_count", result.DocCount),
		slog.Int("skipped", result.Skipped),
		slog.String("repo_commit", result.RepoCommit),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// buildInto writes a complete index database at dbPath.
func (b *Builder) buildInto(ctx context.Context, dbPath, root string, files []string) (*Result, error) {
	st, err := store.OpenWrite(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	ws, err := st.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ws.Rollback() }()

	if err := ws.Clear(ctx); err != nil {
		return nil, err
	}

	docCount := 0
	skipped := 0
	for _, file := range files {
		row, skip, err := convert.Convert(root, file, b.cfg.Convert)
		if err != nil {
			b.logger.Warn("convert_failed",
				slog.String("file", file),
				slog.String("error", err.Error()))
			skipped++
			continue
		}
		if skip != nil {
			b.logger.Debug("document_skipped",
				slog.String("file", file),
				slog.String("reason", skip.Reason))
			skipped++
			continue
		}
		if err := ws.InsertDocument(ctx, row); err != nil {
			return nil, err
		}
		docCount++
	}

	if docCount == 0 {
		return nil, sifterrors.Newf(sifterrors.ErrCodeNoPublishableDocs,
			"all %d source files were filtered out", len(files))
	}

	commit := repoCommit(b.cfg.RepoRoot)
	builtAt := time.Now().UTC().Format("2006-01-02T15:04:05Z")

	metaEntries := map[string]string{
		store.MetaSchemaVersion: store.SchemaVersion,
		store.MetaDocCount:      strconv.Itoa(docCount),
		store.MetaBuiltAt:       builtAt,
		store.MetaRepoCommit:    commit,
	}
	for key, value := range metaEntries {
		if err := ws.SetMeta(ctx, key, value); err != nil {
			return nil, err
		}
	}

	if err := ws.Commit(); err != nil {
		return nil, err
	}

	return &Result{DocCount: docCount, Skipped: skipped, RepoCommit: commit}, nil
}

// ResolveRoot determines the content root. A relative source dir anchors
// to the repo root; with no source dir the repo root itself is the root.
func ResolveRoot(sourceDir, repoRoot string) (string, error) {
	switch {
	case sourceDir != "":
		if filepath.IsAbs(sourceDir) || repoRoot == "" {
			return sourceDir, nil
		}
		return filepath.Join(repoRoot, sourceDir), nil
	case repoRoot != "":
		return repoRoot, nil
	}
	return "", sifterrors.New(sifterrors.ErrCodeConfigInvalid,
		"either a source directory or a repo root is required", nil)
}

// collectSourceFiles walks root and returns every .md/.mdx file in
// lexicographic path order, for reproducible builds.
func collectSourceFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".md", ".mdx":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeNoSourceFiles, err)
	}
	sort.Strings(files)
	return files, nil
}

// resolveOutputFile turns the configured output path into a concrete index
// file path, creating directories as needed. Empty, ".", a trailing
// separator, or an existing directory all mean "directory + default
// filename".
func resolveOutputFile(outputPath string) (string, error) {
	isDir := outputPath == "" || outputPath == "." ||
		strings.HasSuffix(outputPath, "/") ||
		strings.HasSuffix(outputPath, string(filepath.Separator))
	if !isDir {
		if info, err := os.Stat(outputPath); err == nil && info.IsDir() {
			isDir = true
		}
	}

	if isDir {
		dir := outputPath
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", sifterrors.Wrap(sifterrors.ErrCodeStoreOpen, err)
		}
		return filepath.Join(dir, config.DefaultIndexFilename), nil
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", sifterrors.Wrap(sifterrors.ErrCodeStoreOpen, err)
		}
	}
	return outputPath, nil
}

// repoCommit asks git for HEAD, best effort. Any failure yields "unknown";
// provenance never blocks a build.
func repoCommit(repoRoot string) string {
	if repoRoot == "" {
		return "unknown"
	}
	out, err := exec.Command("git", "-C", repoRoot, "rev-parse", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	commit := strings.TrimSpace(string(out))
	if commit == "" {
		return "unknown"
	}
	return commit
}
