package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
		{CheckStatus(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_IsCritical(t *testing.T) {
	assert.False(t, CheckResult{Status: StatusPass, Required: true}.IsCritical())
	assert.True(t, CheckResult{Status: StatusFail, Required: true}.IsCritical())
	assert.False(t, CheckResult{Status: StatusFail}.IsCritical())
	assert.False(t, CheckResult{Status: StatusWarn, Required: true}.IsCritical())
}

func TestCheckResult_JSONUsesStatusName(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "corpus", Status: StatusWarn})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"WARN"`)
}

func newTarget(t *testing.T) Target {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "pdfs")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.pdf"), []byte("%PDF"), 0o644))
	return Target{
		Source:    src,
		Extension: ".pdf",
		BuildDir:  filepath.Join(root, "build"),
		IndexDir:  filepath.Join(root, "index"),
		Tools:     []string{"pdfinfo", "pdftotext", ""},
	}
}

func TestRunAll_ReadyWorkspace(t *testing.T) {
	// Given: a corpus and tools that resolve
	c := New(WithOutput(&bytes.Buffer{}))
	c.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }

	// When: running all checks
	results := c.RunAll(context.Background(), newTarget(t))

	// Then: both tools, the corpus, both dirs and disk space are reported
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"tool:pdfinfo", "tool:pdftotext", "corpus", "build_dir", "index_dir", "disk_space"}, names)
	assert.Contains(t, results[2].Message, "1 documents in")
	assert.False(t, c.HasCriticalFailures(results[:5]))
}

func TestRunAll_MissingToolOnlyWarns(t *testing.T) {
	c := New(WithOutput(&bytes.Buffer{}))
	c.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	results := c.RunAll(context.Background(), newTarget(t))

	assert.Equal(t, StatusWarn, results[0].Status)
	assert.Equal(t, "not found on PATH", results[0].Message)
	assert.False(t, results[0].IsCritical())
}

func TestCheckCorpus_EmptyAndMissing(t *testing.T) {
	c := New()

	empty := c.CheckCorpus(t.TempDir(), ".pdf")
	assert.True(t, empty.IsCritical())
	assert.Contains(t, empty.Message, "no .pdf documents")

	missing := c.CheckCorpus(filepath.Join(t.TempDir(), "nope"), ".pdf")
	assert.True(t, missing.IsCritical())
	assert.Contains(t, missing.Message, "cannot read")
}

func TestCheckWritable_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	r := New().CheckWritable("build_dir", dir)

	assert.Equal(t, StatusPass, r.Status)
	assert.DirExists(t, dir)
	assert.NoFileExists(t, filepath.Join(dir, ".pagedex-preflight"))
}

func TestSummaryStatus(t *testing.T) {
	c := New()
	pass := CheckResult{Status: StatusPass, Required: true}
	warn := CheckResult{Status: StatusWarn}
	fail := CheckResult{Status: StatusFail, Required: true}

	assert.Equal(t, "ready", c.SummaryStatus([]CheckResult{pass}))
	assert.Equal(t, "ready_with_warnings", c.SummaryStatus([]CheckResult{pass, warn}))
	assert.Equal(t, "failed", c.SummaryStatus([]CheckResult{warn, fail}))
}

func TestPrintResults(t *testing.T) {
	buf := &bytes.Buffer{}
	c := New(WithOutput(buf), WithVerbose(true))

	c.PrintResults([]CheckResult{
		{Name: "tool:pdfinfo", Status: StatusWarn, Message: "not found on PATH", Details: "install poppler-utils"},
		{Name: "corpus", Status: StatusPass, Message: "3 documents", Required: true},
	})

	out := buf.String()
	assert.Contains(t, out, "[WARN] tool:pdfinfo: not found on PATH")
	assert.Contains(t, out, "      install poppler-utils")
	assert.Contains(t, out, "[PASS] corpus: 3 documents")
	assert.Contains(t, out, "Status: READY_WITH_WARNINGS")
}

func TestCheckDiskSpace_TempDir(t *testing.T) {
	r := New().CheckDiskSpace(t.TempDir())
	assert.Contains(t, r.Message, "free (minimum: 100 MB)")
}
