package ui

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
// Each document gets exactly one line.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer. Only messages are printed; per-document
// lines come from DocumentDone.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	if event.Message == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Total > 0 {
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, event.Message)
	} else {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), event.Message)
	}
}

// DocumentDone implements Renderer.
func (r *PlainRenderer) DocumentDone(event DocumentEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "[%d/%d] %s %s\n", event.Current, event.Total, event.Doc, event.Line())
}

// Checkpoint implements Renderer.
func (r *PlainRenderer) Checkpoint(event CheckpointEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "checkpoint: %d ok, %d error, next id %d\n", event.OK, event.Failed, event.NextID)
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	where := event.File
	if event.Step != "" {
		where += " " + event.Step
	}
	if where != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, where, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	writeSummary(r.out, stats)
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

// writeSummary prints the final summary shared by both renderers.
func writeSummary(out io.Writer, stats CompletionStats) {
	if stats.Shards > 0 {
		_, _ = fmt.Fprintf(out, "Index complete: %d records, %d shards (%s, %s) in %s\n",
			stats.IndexedRecords, stats.Shards, FormatBytes(stats.IndexBytes), stats.Backend,
			stats.Duration.Round(100*time.Millisecond))
		return
	}

	verb := "Extraction complete"
	if stats.Interrupted {
		verb = "Extraction interrupted"
	}
	_, _ = fmt.Fprintf(out, "%s: %d ok, %d error in %s\n",
		verb, stats.OK, stats.Failed, stats.Duration.Round(100*time.Millisecond))
	if stats.RecordLogPath != "" {
		_, _ = fmt.Fprintf(out, "  Records:  %s (%d new, %s)\n",
			stats.RecordLogPath, stats.Records, FormatBytes(stats.RecordLogBytes))
	}
	if stats.ManifestPath != "" {
		_, _ = fmt.Fprintf(out, "  Manifest: %s\n", stats.ManifestPath)
	}
	if stats.LedgerEntries > 0 {
		_, _ = fmt.Fprintf(out, "  %d failures logged to %s\n", stats.LedgerEntries, stats.LedgerPath)
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
