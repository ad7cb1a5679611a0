package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/convert"
	sifterrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/logging"
	"github.com/docsift/docsift/internal/store"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func newTestBuilder(srcDir, outPath string) *Builder {
	return NewBuilder(BuilderConfig{
		SourceDir:  srcDir,
		OutputPath: outPath,
		Convert:    convert.DefaultOptions(),
		Logger:     logging.DiscardLogger(),
	})
}

func TestBuild_FullRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "idx.sqlite")

	writeTree(t, src, map[string]string{
		"posts/hello.md": "---\ntitle: Hello\ntags: [a, b]\n---\n# Hi\nworld\n",
		"posts/draft.md": "---\ndraft: true\n---\nhidden\n",
		"guides/one.mdx": "# Guide One\ncontent here\n",
	})

	result, err := newTestBuilder(src, out).Build(ctx)
	require.NoError(t, err)

	assert.Equal(t, out, result.OutputPath)
	assert.Equal(t, 2, result.DocCount)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "unknown", result.RepoCommit)

	st, err := store.OpenRead(out)
	require.NoError(t, err)
	defer st.Close()

	meta, err := st.LoadMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.SchemaVersion, meta.SchemaVersion)
	assert.Equal(t, 2, meta.DocCount)
	assert.Equal(t, "unknown", meta.RepoCommit)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`, meta.BuiltAt)

	var url string
	err = st.DB().QueryRow(
		`SELECT url FROM docs WHERE doc_id = 'posts/hello.md'`).Scan(&url)
	require.NoError(t, err)
	assert.Equal(t, "/posts/hello/", url)

	// No temp or lock leftovers beside the index.
	_, err = os.Stat(out + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestBuild_NoSourceFiles(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"notes.txt": "not markdown\n"})

	_, err := newTestBuilder(src, filepath.Join(t.TempDir(), "idx.sqlite")).Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, sifterrors.ErrCodeNoSourceFiles, sifterrors.GetCode(err))
}

func TestBuild_NoPublishableDocs(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.md": "---\ndraft: true\n---\nx\n",
		"b.md": "---\nstatus: review\n---\nx\n",
	})
	out := filepath.Join(t.TempDir(), "idx.sqlite")

	_, err := newTestBuilder(src, out).Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, sifterrors.ErrCodeNoPublishableDocs, sifterrors.GetCode(err))

	// Nothing was left behind.
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(out + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuild_BadFileSkippedNotFatal(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"good.md": "fine content\n",
		"big.md":  "this file is larger than the tiny ceiling\n",
	})

	b := NewBuilder(BuilderConfig{
		SourceDir:  src,
		OutputPath: filepath.Join(t.TempDir(), "idx.sqlite"),
		Convert:    convert.Options{MaxBytes: 20},
		Logger:     logging.DiscardLogger(),
	})

	result, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocCount)
	assert.Equal(t, 1, result.Skipped)
}

func TestBuild_OutputDirectoryGetsDefaultFilename(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.md": "content\n"})
	outDir := t.TempDir()

	result, err := newTestBuilder(src, outDir).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, config.DefaultIndexFilename), result.OutputPath)

	_, err = os.Stat(result.OutputPath)
	require.NoError(t, err)
}

func TestBuild_CreatesMissingOutputDirs(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.md": "content\n"})
	out := filepath.Join(t.TempDir(), "deep", "nested", "idx.sqlite")

	result, err := newTestBuilder(src, out).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, out, result.OutputPath)
}

func TestBuild_RebuildReproducible(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.md": "---\ntitle: A\n---\nalpha\n",
		"b.md": "---\ntitle: B\n---\nbeta\n",
	})
	out := filepath.Join(t.TempDir(), "idx.sqlite")

	digests := func() map[string]string {
		st, err := store.OpenRead(out)
		require.NoError(t, err)
		defer st.Close()

		rows, err := st.DB().Query(`SELECT doc_id, sha1 FROM docs ORDER BY doc_id`)
		require.NoError(t, err)
		defer rows.Close()

		m := map[string]string{}
		for rows.Next() {
			var id, digest string
			require.NoError(t, rows.Scan(&id, &digest))
			m[id] = digest
		}
		require.NoError(t, rows.Err())
		return m
	}

	first, err := newTestBuilder(src, out).Build(ctx)
	require.NoError(t, err)
	firstDigests := digests()

	second, err := newTestBuilder(src, out).Build(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.DocCount, second.DocCount)
	assert.Equal(t, firstDigests, digests())
}

func TestBuild_ReplacesExistingIndexAtomically(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.md": "first version\n"})
	out := filepath.Join(t.TempDir(), "idx.sqlite")

	_, err := newTestBuilder(src, out).Build(ctx)
	require.NoError(t, err)

	writeTree(t, src, map[string]string{"b.md": "second document\n"})
	result, err := newTestBuilder(src, out).Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.DocCount)

	st, err := store.OpenRead(out)
	require.NoError(t, err)
	defer st.Close()
	meta, err := st.LoadMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.DocCount)
}

func TestBuild_LockedByAnotherBuilder(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.md": "content\n"})
	out := filepath.Join(t.TempDir(), "idx.sqlite")

	other := flock.New(out + ".lock")
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = other.Unlock() }()

	_, err = newTestBuilder(src, out).Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, sifterrors.ErrCodeBuildLocked, sifterrors.GetCode(err))
}

func TestResolveRoot(t *testing.T) {
	tests := []struct {
		name      string
		sourceDir string
		repoRoot  string
		want      string
		wantErr   bool
	}{
		{"absolute source wins", "/abs/docs", "/repo", "/abs/docs", false},
		{"relative source joins repo", "docs", "/repo", filepath.Join("/repo", "docs"), false},
		{"source alone", "docs", "", "docs", false},
		{"repo alone", "", "/repo", "/repo", false},
		{"neither", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRoot(tt.sourceDir, tt.repoRoot)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectSourceFiles_SortedAndFiltered(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"z.md":        "z",
		"a/deep.mdx":  "a",
		"a/skip.txt":  "no",
		"m/middle.md": "m",
	})

	files, err := collectSourceFiles(root)
	require.NoError(t, err)

	var rels []string
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		require.NoError(t, err)
		rels = append(rels, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"a/deep.mdx", "m/middle.md", "z.md"}, rels)
}

func TestRepoCommit_UnknownOutsideGit(t *testing.T) {
	assert.Equal(t, "unknown", repoCommit(t.TempDir()))
	assert.Equal(t, "unknown", repoCommit(""))
}
