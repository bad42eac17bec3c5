package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Index backends.
const (
	BackendBleve  = "bleve"
	BackendSQLite = "sqlite"
)

// Page count backends.
const (
	PageCountTool   = "tool"
	PageCountNative = "native"
)

// DefaultShardBytes is the shard size bound (5 MiB).
const DefaultShardBytes = 5 * 1024 * 1024

// Config represents the complete pagedex configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Extract    ExtractConfig    `yaml:"extract" json:"extract"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig locates the corpus and all generated artifacts.
type PathsConfig struct {
	// Source is the directory holding the documents.
	Source string `yaml:"source" json:"source"`
	// BuildDir holds manifest.json, errors.log and docs.jsonl.
	BuildDir string `yaml:"build_dir" json:"build_dir"`
	// IndexDir holds the shard files and the shard manifest.
	IndexDir string `yaml:"index_dir" json:"index_dir"`
}

// ExtractConfig configures the page extraction pipeline.
type ExtractConfig struct {
	// Extension is the recognized document extension, matched case-insensitively.
	Extension string `yaml:"extension" json:"extension"`
	// Limit caps documents processed per invocation (0 = unlimited).
	Limit int `yaml:"limit" json:"limit"`
	// InfoTimeout is the watchdog budget for the page-count query (e.g. "15s").
	InfoTimeout string `yaml:"info_timeout" json:"info_timeout"`
	// PageTimeout is the watchdog budget for one page's text extraction.
	PageTimeout string `yaml:"page_timeout" json:"page_timeout"`
	// PageCountTool is the page-count reporting executable.
	PageCountTool string `yaml:"page_count_tool" json:"page_count_tool"`
	// PageTextTool is the page-text extraction executable.
	PageTextTool string `yaml:"page_text_tool" json:"page_text_tool"`
	// PageCountBackend selects "tool" (external executable) or "native" (in-process).
	PageCountBackend string `yaml:"page_count_backend" json:"page_count_backend"`
	// WatchDebounce is the quiet period before --watch re-runs the pipeline.
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// CheckpointConfig configures when the manifest is saved mid-run.
// Any satisfied trigger saves; zero values disable a trigger.
type CheckpointConfig struct {
	EveryDocuments int    `yaml:"every_documents" json:"every_documents"`
	Interval       string `yaml:"interval" json:"interval"`
	EveryBytes     int64  `yaml:"every_bytes" json:"every_bytes"`
}

// IndexConfig configures the index builder and sharder.
type IndexConfig struct {
	// Backend is "bleve" (default) or "sqlite".
	Backend string `yaml:"backend" json:"backend"`
	// ShardBytes bounds each shard file.
	ShardBytes int `yaml:"shard_bytes" json:"shard_bytes"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// NewConfig creates a new Config with defaults matching the original
// public/ directory layout.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Source:   filepath.Join("public", "pdfs"),
			BuildDir: filepath.Join("public", "build"),
			IndexDir: filepath.Join("public", "index"),
		},
		Extract: ExtractConfig{
			Extension:        ".pdf",
			Limit:            0,
			InfoTimeout:      "15s",
			PageTimeout:      "20s",
			PageCountTool:    "pdfinfo",
			PageTextTool:     "pdftotext",
			PageCountBackend: PageCountTool,
			WatchDebounce:    "2s",
		},
		Checkpoint: CheckpointConfig{
			EveryDocuments: 10,
		},
		Index: IndexConfig{
			Backend:    BackendBleve,
			ShardBytes: DefaultShardBytes,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
//   - $XDG_CONFIG_HOME/pagedex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/pagedex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pagedex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "pagedex", "config.yaml")
	}
	return filepath.Join(home, ".config", "pagedex", "config.yaml")
}

// ProjectConfigPath returns the project config path written by `config init`.
func ProjectConfigPath(dir string) string {
	return filepath.Join(dir, ".pagedex.yaml")
}

// Load loads configuration for the working directory dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/pagedex/config.yaml)
//  3. Project config (.pagedex.yaml in dir)
//  4. Environment variables (PAGEDEX_*, plus LIMIT)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .pagedex.yaml or .pagedex.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := ProjectConfigPath(dir)
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".pagedex.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Parse into a zero struct so only keys present in the file override
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.Source != "" {
		c.Paths.Source = other.Paths.Source
	}
	if other.Paths.BuildDir != "" {
		c.Paths.BuildDir = other.Paths.BuildDir
	}
	if other.Paths.IndexDir != "" {
		c.Paths.IndexDir = other.Paths.IndexDir
	}

	if other.Extract.Extension != "" {
		c.Extract.Extension = other.Extract.Extension
	}
	if other.Extract.Limit != 0 {
		c.Extract.Limit = other.Extract.Limit
	}
	if other.Extract.InfoTimeout != "" {
		c.Extract.InfoTimeout = other.Extract.InfoTimeout
	}
	if other.Extract.PageTimeout != "" {
		c.Extract.PageTimeout = other.Extract.PageTimeout
	}
	if other.Extract.PageCountTool != "" {
		c.Extract.PageCountTool = other.Extract.PageCountTool
	}
	if other.Extract.PageTextTool != "" {
		c.Extract.PageTextTool = other.Extract.PageTextTool
	}
	if other.Extract.PageCountBackend != "" {
		c.Extract.PageCountBackend = other.Extract.PageCountBackend
	}
	if other.Extract.WatchDebounce != "" {
		c.Extract.WatchDebounce = other.Extract.WatchDebounce
	}

	if other.Checkpoint.EveryDocuments != 0 {
		c.Checkpoint.EveryDocuments = other.Checkpoint.EveryDocuments
	}
	if other.Checkpoint.Interval != "" {
		c.Checkpoint.Interval = other.Checkpoint.Interval
	}
	if other.Checkpoint.EveryBytes != 0 {
		c.Checkpoint.EveryBytes = other.Checkpoint.EveryBytes
	}

	if other.Index.Backend != "" {
		c.Index.Backend = other.Index.Backend
	}
	if other.Index.ShardBytes != 0 {
		c.Index.ShardBytes = other.Index.ShardBytes
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
}

// applyEnvOverrides applies PAGEDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PAGEDEX_SOURCE"); v != "" {
		c.Paths.Source = v
	}
	if v := os.Getenv("PAGEDEX_BUILD_DIR"); v != "" {
		c.Paths.BuildDir = v
	}
	if v := os.Getenv("PAGEDEX_INDEX_DIR"); v != "" {
		c.Paths.IndexDir = v
	}
	// LIMIT is honored for compatibility with existing batch scripts
	for _, key := range []string{"LIMIT", "PAGEDEX_LIMIT"} {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
				c.Extract.Limit = n
			}
		}
	}
	if v := os.Getenv("PAGEDEX_INDEX_BACKEND"); v != "" {
		c.Index.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("PAGEDEX_SHARD_BYTES"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			c.Index.ShardBytes = n
		}
	}
	if v := os.Getenv("PAGEDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Paths.Source == "" || c.Paths.BuildDir == "" || c.Paths.IndexDir == "" {
		return fmt.Errorf("paths.source, paths.build_dir and paths.index_dir must be set")
	}
	if !strings.HasPrefix(c.Extract.Extension, ".") {
		return fmt.Errorf("extract.extension must start with '.', got %q", c.Extract.Extension)
	}
	if c.Extract.Limit < 0 {
		return fmt.Errorf("extract.limit must be non-negative, got %d", c.Extract.Limit)
	}

	for name, value := range map[string]string{
		"extract.info_timeout": c.Extract.InfoTimeout,
		"extract.page_timeout": c.Extract.PageTimeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, value)
		}
	}
	if _, err := parseOptionalDuration(c.Extract.WatchDebounce); err != nil {
		return fmt.Errorf("extract.watch_debounce: %w", err)
	}

	switch strings.ToLower(c.Extract.PageCountBackend) {
	case PageCountTool, PageCountNative:
	default:
		return fmt.Errorf("extract.page_count_backend must be 'tool' or 'native', got %s", c.Extract.PageCountBackend)
	}

	if c.Checkpoint.EveryDocuments < 0 || c.Checkpoint.EveryBytes < 0 {
		return fmt.Errorf("checkpoint thresholds must be non-negative")
	}
	if _, err := parseOptionalDuration(c.Checkpoint.Interval); err != nil {
		return fmt.Errorf("checkpoint.interval: %w", err)
	}

	switch strings.ToLower(c.Index.Backend) {
	case BackendBleve, BackendSQLite:
	default:
		return fmt.Errorf("index.backend must be 'bleve' or 'sqlite', got %s", c.Index.Backend)
	}
	if c.Index.ShardBytes <= 0 {
		return fmt.Errorf("index.shard_bytes must be positive, got %d", c.Index.ShardBytes)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// InfoTimeoutDuration returns the page-count watchdog budget.
func (c *Config) InfoTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Extract.InfoTimeout)
	return d
}

// PageTimeoutDuration returns the per-page watchdog budget.
func (c *Config) PageTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Extract.PageTimeout)
	return d
}

// WatchDebounceDuration returns the --watch quiet period.
func (c *Config) WatchDebounceDuration() time.Duration {
	d, _ := parseOptionalDuration(c.Extract.WatchDebounce)
	return d
}

// CheckpointIntervalDuration returns the time-based checkpoint trigger, 0 if disabled.
func (c *Config) CheckpointIntervalDuration() time.Duration {
	d, _ := parseOptionalDuration(c.Checkpoint.Interval)
	return d
}

// ManifestPath returns the extraction manifest path.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.Paths.BuildDir, "manifest.json")
}

// RecordLogPath returns the page record log path.
func (c *Config) RecordLogPath() string {
	return filepath.Join(c.Paths.BuildDir, "docs.jsonl")
}

// ErrorLedgerPath returns the error ledger path.
func (c *Config) ErrorLedgerPath() string {
	return filepath.Join(c.Paths.BuildDir, "errors.log")
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must be non-negative, got %s", s)
	}
	return d, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
