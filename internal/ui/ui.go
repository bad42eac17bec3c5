// Package ui provides terminal UI components for progress and status display.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage represents a pipeline stage.
type Stage int

const (
	// StageScanning lists the corpus and loads the manifest.
	StageScanning Stage = iota
	// StageExtracting runs the page tools over pending documents.
	StageExtracting
	// StageIndexing builds the token index from the record log.
	StageIndexing
	// StageSharding splits the serialized index into shard files.
	StageSharding
	// StageComplete indicates the run is complete.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "Scanning"
	case StageExtracting:
		return "Extracting"
	case StageIndexing:
		return "Indexing"
	case StageSharding:
		return "Sharding"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage icon for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageScanning:
		return "SCAN"
	case StageExtracting:
		return "EXTRACT"
	case StageIndexing:
		return "INDEX"
	case StageSharding:
		return "SHARD"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// DocumentEvent reports the terminal status of one document.
type DocumentEvent struct {
	// Current is the 1-based position among this run's pending documents.
	Current int
	Total   int
	Doc     string
	// OK is false when the page-count step failed.
	OK      bool
	Step    string
	Pages   int
	Emitted int
}

// Line renders the document's status, e.g. "OK (3/4)" or "pdfinfo:ERROR".
func (e DocumentEvent) Line() string {
	if e.OK {
		return "OK (" + itoa(e.Emitted) + "/" + itoa(e.Pages) + ")"
	}
	return e.Step + ":ERROR"
}

// CheckpointEvent reports a mid-run manifest save.
type CheckpointEvent struct {
	OK     int
	Failed int
	NextID int
	Bytes  int64
}

// ErrorEvent represents a non-fatal failure during processing.
type ErrorEvent struct {
	File   string
	Step   string
	Err    error
	IsWarn bool
}

// StageTimings tracks duration for each stage.
type StageTimings struct {
	Extract time.Duration
	Index   time.Duration
	Shard   time.Duration
}

// CompletionStats contains final run statistics.
type CompletionStats struct {
	// Extraction
	Documents int // processed this run
	OK        int
	Failed    int
	Records   int // emitted this run
	Pages     int

	// Indexing
	IndexedRecords int
	Shards         int
	IndexBytes     int64
	Backend        string

	Duration time.Duration
	Stages   StageTimings

	RecordLogPath  string
	RecordLogBytes int64
	ManifestPath   string
	LedgerPath     string
	LedgerEntries  int
	Interrupted    bool
}

// Renderer defines the interface for progress display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// DocumentDone reports one document's terminal status.
	DocumentDone(event DocumentEvent)

	// Checkpoint reports a manifest checkpoint.
	Checkpoint(event CheckpointEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Title is shown in the TUI header, typically the source directory.
	Title string
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithTitle sets the TUI header title.
func WithTitle(title string) ConfigOption {
	return func(c *Config) {
		c.Title = title
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer creates an appropriate renderer based on config and environment.
// It returns a TUI renderer for interactive terminals, and a plain text
// renderer for CI environments, pipes, or when --no-tui is specified.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
