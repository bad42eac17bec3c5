// Package profiling writes CPU and heap profiles for long extraction and
// index runs.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

// Options selects the profiles to write. Empty paths are skipped.
type Options struct {
	CPUPath  string
	HeapPath string
}

// Session is an active profiling session.
type Session struct {
	opts    Options
	cpuFile *os.File
}

// Start begins CPU profiling when requested. Stop must be called to flush.
func Start(opts Options) (*Session, error) {
	s := &Session{opts: opts}
	if opts.CPUPath == "" {
		return s, nil
	}

	f, err := os.Create(opts.CPUPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}
	s.cpuFile = f
	return s, nil
}

// Stop ends CPU profiling and writes the heap snapshot. Safe to call twice.
func (s *Session) Stop() error {
	if s.cpuFile != nil {
		pprof.StopCPUProfile()
		err := s.cpuFile.Close()
		s.cpuFile = nil
		if err != nil {
			return fmt.Errorf("failed to close CPU profile: %w", err)
		}
	}
	if s.opts.HeapPath != "" {
		path := s.opts.HeapPath
		s.opts.HeapPath = ""
		return writeHeap(path)
	}
	return nil
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heap profile file: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Collect first so the snapshot shows live objects only
	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	return nil
}
