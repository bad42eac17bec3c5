package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/pagedex/internal/scanner"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target describes the workspace being checked.
type Target struct {
	Source    string
	Extension string
	BuildDir  string
	IndexDir  string
	// Tools lists executables resolved on PATH; empty names are skipped.
	Tools []string
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose  bool
	output   io.Writer
	lookPath func(string) (string, error)
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output:   os.Stdout,
		lookPath: lookPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check for t.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	var results []CheckResult
	for _, tool := range t.Tools {
		if tool == "" {
			continue
		}
		results = append(results, c.CheckTool(tool))
	}
	results = append(results, c.CheckCorpus(t.Source, t.Extension))
	results = append(results, c.CheckWritable("build_dir", t.BuildDir))
	results = append(results, c.CheckWritable("index_dir", t.IndexDir))
	results = append(results, c.CheckDiskSpace(t.BuildDir))
	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "ready", "ready_with_warnings" or "failed".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status == StatusWarn || r.Status == StatusFail {
			hasWarnings = true
		}
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "pagedex workspace check")
	_, _ = fmt.Fprintln(c.output, "=======================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))
}

// CheckTool resolves an external tool on PATH. Missing tools are not fatal
// when the native page counter is used, so the check only warns.
func (c *Checker) CheckTool(name string) CheckResult {
	result := CheckResult{Name: "tool:" + filepath.Base(name)}
	path, err := c.lookPath(name)
	if err != nil {
		result.Status = StatusWarn
		result.Message = "not found on PATH"
		result.Details = "install poppler-utils or set extract.page_count_tool / extract.page_text_tool"
		return result
	}
	result.Status = StatusPass
	result.Message = path
	return result
}

// CheckCorpus verifies the source directory lists at least one document.
func (c *Checker) CheckCorpus(dir, ext string) CheckResult {
	result := CheckResult{Name: "corpus", Required: true}
	docs, err := scanner.Scan(scanner.ScanOptions{Dir: dir, Extension: ext})
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read %s", dir)
		result.Details = err.Error()
		return result
	}
	if len(docs) == 0 {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("no %s documents in %s", ext, dir)
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d documents in %s", len(docs), dir)
	return result
}

// CheckWritable creates dir if needed and writes a probe file into it.
func (c *Checker) CheckWritable(name, dir string) CheckResult {
	result := CheckResult{Name: name, Required: true}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}
	probe := filepath.Join(dir, ".pagedex-preflight")
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = dir
	return result
}
