package ui

import (
	"sync"
	"time"
)

// ProgressTracker holds run state for the TUI. It is safe for concurrent use.
type ProgressTracker struct {
	mu          sync.RWMutex
	stage       Stage
	current     int
	total       int
	currentFile string
	ok          int
	failed      int
	pageErrors  int
	emitted     int
	lastLine    string
	checkpoints int
	startTime   time.Time
}

// ProgressStats is a snapshot of the tracker.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	CurrentFile string
	OK          int
	Failed      int
	PageErrors  int
	Emitted     int
	LastLine    string
	Checkpoints int
	Elapsed     time.Duration
}

// NewProgressTracker creates a tracker starting at StageScanning.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{stage: StageScanning, startTime: time.Now()}
}

// Apply folds a progress event into the tracker.
func (p *ProgressTracker) Apply(event ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.Stage != p.stage {
		p.stage = event.Stage
		p.current = 0
		p.currentFile = ""
	}
	p.current = event.Current
	p.total = event.Total
	if event.CurrentFile != "" {
		p.currentFile = event.CurrentFile
	}
}

// Document records a finished document.
func (p *ProgressTracker) Document(event DocumentEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = StageExtracting
	p.current = event.Current
	p.total = event.Total
	if event.OK {
		p.ok++
		p.emitted += event.Emitted
	} else {
		p.failed++
	}
	p.lastLine = event.Doc + " " + event.Line()
}

// PageError counts a non-fatal page failure.
func (p *ProgressTracker) PageError() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pageErrors++
}

// Checkpoint counts a manifest save.
func (p *ProgressTracker) Checkpoint() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkpoints++
}

// Stats returns a snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var progress float64
	if p.total > 0 {
		progress = float64(p.current) / float64(p.total)
	}
	return ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Progress:    progress,
		CurrentFile: p.currentFile,
		OK:          p.ok,
		Failed:      p.failed,
		PageErrors:  p.pageErrors,
		Emitted:     p.emitted,
		LastLine:    p.lastLine,
		Checkpoints: p.checkpoints,
		Elapsed:     time.Since(p.startTime),
	}
}
