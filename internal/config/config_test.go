package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "127.0.0.1:9000", cfg.Serve.Listen)
	assert.Equal(t, 2, cfg.Serve.MinQueryLen)
	assert.Equal(t, 1024, cfg.Serve.MaxQueryLen)
	assert.Equal(t, 20, cfg.Serve.DefaultLimit)
	assert.Equal(t, 100, cfg.Serve.MaxLimit)
	assert.Equal(t, "info", cfg.Serve.LogLevel)
	assert.GreaterOrEqual(t, cfg.Serve.Workers, 1)

	assert.Equal(t, ".", cfg.Write.OutputPath)
	assert.Equal(t, int64(1<<20), cfg.Write.MaxBytes)
	assert.False(t, cfg.Write.IncludeCodeBlocks)
	assert.Zero(t, cfg.Write.NgramSize)
}

func TestLoad_MergesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
serve:
  listen: ":8088"
  index_path: /data/idx.sqlite
  max_limit: 50
write:
  ngram_size: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docsift.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":8088", cfg.Serve.Listen)
	assert.Equal(t, "/data/idx.sqlite", cfg.Serve.IndexPath)
	assert.Equal(t, 50, cfg.Serve.MaxLimit)
	assert.Equal(t, 3, cfg.Write.NgramSize)
	// Untouched values keep defaults.
	assert.Equal(t, 2, cfg.Serve.MinQueryLen)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Serve.Listen)
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docsift.yaml"), []byte("serve: ["), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "serve:\n  listen: \":8088\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docsift.yaml"), []byte(yaml), 0o644))

	t.Setenv("DOCSIFT_LISTEN", ":9999")
	t.Setenv("DOCSIFT_ADMIN_TOKEN", "sekrit")
	t.Setenv("DOCSIFT_WORKERS", "4")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Serve.Listen)
	assert.Equal(t, "sekrit", cfg.Serve.AdminToken)
	assert.Equal(t, 4, cfg.Serve.Workers)
}

func TestLoad_InvalidEnvNumbersIgnored(t *testing.T) {
	t.Setenv("DOCSIFT_WORKERS", "banana")
	t.Setenv("DOCSIFT_MAX_LIMIT", "-3")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, cfg.Serve.Workers, 1)
	assert.Equal(t, 100, cfg.Serve.MaxLimit)
}

func TestValidateServe_RequiresIndexPath(t *testing.T) {
	cfg := NewConfig()
	err := cfg.ValidateServe()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index path")
}

func TestValidateServe_NormalizesDefaultLimit(t *testing.T) {
	cfg := NewConfig()
	cfg.Serve.IndexPath = "/tmp/idx.sqlite"
	cfg.Serve.MaxLimit = 10
	cfg.Serve.DefaultLimit = 500

	require.NoError(t, cfg.ValidateServe())
	assert.Equal(t, 10, cfg.Serve.DefaultLimit)
}

func TestValidateServe_RejectsBadListen(t *testing.T) {
	cfg := NewConfig()
	cfg.Serve.IndexPath = "/tmp/idx.sqlite"
	cfg.Serve.Listen = "localhost"

	assert.Error(t, cfg.ValidateServe())
}

func TestValidateServe_RejectsBadLogLevel(t *testing.T) {
	cfg := NewConfig()
	cfg.Serve.IndexPath = "/tmp/idx.sqlite"
	cfg.Serve.LogLevel = "verbose"

	assert.Error(t, cfg.ValidateServe())
}

func TestValidateWrite_RequiresSource(t *testing.T) {
	cfg := NewConfig()
	assert.Error(t, cfg.ValidateWrite())

	cfg.Write.RepoRoot = "/repo"
	assert.NoError(t, cfg.ValidateWrite())

	cfg.Write.RepoRoot = ""
	cfg.Write.SourceDir = "docs"
	assert.NoError(t, cfg.ValidateWrite())
}
