// Package config holds the docsift configuration surface.
//
// Values are applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Project config file (.docsift.yaml in the working directory)
//  3. Environment variables (DOCSIFT_*)
//  4. Command-line flags (applied by the cmd package)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultIndexFilename is appended when the output path is a directory.
const DefaultIndexFilename = "docsift_index.sqlite"

// Config is the complete docsift configuration.
type Config struct {
	Serve ServeConfig `yaml:"serve" json:"serve"`
	Write WriteConfig `yaml:"write" json:"write"`
}

// ServeConfig configures the search server.
type ServeConfig struct {
	// Listen is the host:port the server binds. A bare ":port" binds all
	// interfaces.
	Listen string `yaml:"listen" json:"listen"`

	// IndexPath is the SQLite index file to serve. Required.
	IndexPath string `yaml:"index_path" json:"index_path"`

	// AdminToken gates POST /admin/reopen. Empty disables the endpoint.
	AdminToken string `yaml:"admin_token" json:"admin_token"`

	// Workers bounds the connection-handling pool.
	Workers int `yaml:"workers" json:"workers"`

	// MinQueryLen rejects shorter queries with 400.
	MinQueryLen int `yaml:"min_query_len" json:"min_query_len"`

	// MaxQueryLen rejects longer queries with 413.
	MaxQueryLen int `yaml:"max_query_len" json:"max_query_len"`

	// DefaultLimit is used when the limit parameter is absent or invalid.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// MaxLimit clamps the limit parameter.
	MaxLimit int `yaml:"max_limit" json:"max_limit"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" json:"log_level"`

	// LogFile enables rotating file logging when set.
	LogFile string `yaml:"log_file" json:"log_file"`
}

// WriteConfig configures index builds.
type WriteConfig struct {
	// SourceDir is the markdown tree to index. Relative paths resolve
	// against RepoRoot when that is set.
	SourceDir string `yaml:"source_dir" json:"source_dir"`

	// RepoRoot is the repository root used for commit metadata and as the
	// fallback source directory.
	RepoRoot string `yaml:"repo_root" json:"repo_root"`

	// OutputPath is the index file or directory to build into.
	OutputPath string `yaml:"output_path" json:"output_path"`

	// IncludeCodeBlocks indexes fenced code blocks instead of stripping them.
	IncludeCodeBlocks bool `yaml:"include_code_blocks" json:"include_code_blocks"`

	// NgramSize overlays fixed-width substring tokens when > 1.
	NgramSize int `yaml:"ngram_size" json:"ngram_size"`

	// MaxBytes is the per-file size ceiling.
	MaxBytes int64 `yaml:"max_bytes" json:"max_bytes"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return &Config{
		Serve: ServeConfig{
			Listen:       "127.0.0.1:9000",
			Workers:      workers,
			MinQueryLen:  2,
			MaxQueryLen:  1024,
			DefaultLimit: 20,
			MaxLimit:     100,
			LogLevel:     "info",
		},
		Write: WriteConfig{
			OutputPath: ".",
			MaxBytes:   1 << 20,
		},
	}
}

// Load builds the effective configuration for the given directory:
// defaults, then .docsift.yaml if present, then DOCSIFT_* env overrides.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	return cfg, nil
}

// loadFromFile merges .docsift.yaml or .docsift.yml when one exists.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".docsift.yaml", ".docsift.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	// No config file is fine - use defaults.
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Serve.Listen != "" {
		c.Serve.Listen = other.Serve.Listen
	}
	if other.Serve.IndexPath != "" {
		c.Serve.IndexPath = other.Serve.IndexPath
	}
	if other.Serve.AdminToken != "" {
		c.Serve.AdminToken = other.Serve.AdminToken
	}
	if other.Serve.Workers != 0 {
		c.Serve.Workers = other.Serve.Workers
	}
	if other.Serve.MinQueryLen != 0 {
		c.Serve.MinQueryLen = other.Serve.MinQueryLen
	}
	if other.Serve.MaxQueryLen != 0 {
		c.Serve.MaxQueryLen = other.Serve.MaxQueryLen
	}
	if other.Serve.DefaultLimit != 0 {
		c.Serve.DefaultLimit = other.Serve.DefaultLimit
	}
	if other.Serve.MaxLimit != 0 {
		c.Serve.MaxLimit = other.Serve.MaxLimit
	}
	if other.Serve.LogLevel != "" {
		c.Serve.LogLevel = other.Serve.LogLevel
	}
	if other.Serve.LogFile != "" {
		c.Serve.LogFile = other.Serve.LogFile
	}

	if other.Write.SourceDir != "" {
		c.Write.SourceDir = other.Write.SourceDir
	}
	if other.Write.RepoRoot != "" {
		c.Write.RepoRoot = other.Write.RepoRoot
	}
	if other.Write.OutputPath != "" {
		c.Write.OutputPath = other.Write.OutputPath
	}
	if other.Write.IncludeCodeBlocks {
		c.Write.IncludeCodeBlocks = true
	}
	if other.Write.NgramSize != 0 {
		c.Write.NgramSize = other.Write.NgramSize
	}
	if other.Write.MaxBytes != 0 {
		c.Write.MaxBytes = other.Write.MaxBytes
	}
}

// applyEnvOverrides applies DOCSIFT_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCSIFT_LISTEN"); v != "" {
		c.Serve.Listen = v
	}
	if v := os.Getenv("DOCSIFT_INDEX_PATH"); v != "" {
		c.Serve.IndexPath = v
	}
	if v := os.Getenv("DOCSIFT_ADMIN_TOKEN"); v != "" {
		c.Serve.AdminToken = v
	}
	if v := os.Getenv("DOCSIFT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Serve.Workers = n
		}
	}
	if v := os.Getenv("DOCSIFT_MIN_QUERY_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Serve.MinQueryLen = n
		}
	}
	if v := os.Getenv("DOCSIFT_MAX_QUERY_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Serve.MaxQueryLen = n
		}
	}
	if v := os.Getenv("DOCSIFT_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Serve.DefaultLimit = n
		}
	}
	if v := os.Getenv("DOCSIFT_MAX_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Serve.MaxLimit = n
		}
	}
	if v := os.Getenv("DOCSIFT_LOG_LEVEL"); v != "" {
		c.Serve.LogLevel = v
	}
	if v := os.Getenv("DOCSIFT_LOG_FILE"); v != "" {
		c.Serve.LogFile = v
	}
}

// ValidateServe checks the serving configuration and normalizes the
// default limit against the max limit.
func (c *Config) ValidateServe() error {
	if c.Serve.IndexPath == "" {
		return fmt.Errorf("index path is required (--index or DOCSIFT_INDEX_PATH)")
	}
	if !strings.Contains(c.Serve.Listen, ":") {
		return fmt.Errorf("listen address must include port, got %q", c.Serve.Listen)
	}
	if c.Serve.Workers < 1 {
		c.Serve.Workers = 1
	}
	if c.Serve.MaxLimit < 1 {
		return fmt.Errorf("max_limit must be positive, got %d", c.Serve.MaxLimit)
	}
	if c.Serve.DefaultLimit < 1 || c.Serve.DefaultLimit > c.Serve.MaxLimit {
		c.Serve.DefaultLimit = min(20, c.Serve.MaxLimit)
	}
	if c.Serve.MinQueryLen < 1 {
		return fmt.Errorf("min_query_len must be positive, got %d", c.Serve.MinQueryLen)
	}
	if c.Serve.MaxQueryLen < c.Serve.MinQueryLen {
		return fmt.Errorf("max_query_len %d is below min_query_len %d", c.Serve.MaxQueryLen, c.Serve.MinQueryLen)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Serve.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Serve.LogLevel)
	}
	return nil
}

// ValidateWrite checks the build configuration.
func (c *Config) ValidateWrite() error {
	if c.Write.SourceDir == "" && c.Write.RepoRoot == "" {
		return fmt.Errorf("source directory is required (--src or --repo)")
	}
	if c.Write.MaxBytes <= 0 {
		return fmt.Errorf("max_bytes must be positive, got %d", c.Write.MaxBytes)
	}
	return nil
}
