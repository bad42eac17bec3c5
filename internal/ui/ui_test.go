package ui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStage_StringAndIcon(t *testing.T) {
	tests := []struct {
		stage Stage
		name  string
		icon  string
	}{
		{StageScanning, "Scanning", "SCAN"},
		{StageExtracting, "Extracting", "EXTRACT"},
		{StageIndexing, "Indexing", "INDEX"},
		{StageSharding, "Sharding", "SHARD"},
		{StageComplete, "Complete", "DONE"},
		{Stage(99), "Unknown", "???"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.stage.String())
		assert.Equal(t, tt.icon, tt.stage.Icon())
	}
}

func TestDocumentEvent_Line(t *testing.T) {
	assert.Equal(t, "OK (0/5)", DocumentEvent{OK: true, Pages: 5}.Line())
	assert.Equal(t, "pdfinfo:ERROR", DocumentEvent{Step: "pdfinfo"}.Line())
}

func TestNewRenderer_NonTTYIsPlain(t *testing.T) {
	r := NewRenderer(NewConfig(&bytes.Buffer{}))

	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewRenderer_ForcePlain(t *testing.T) {
	r := NewRenderer(NewConfig(os.Stdout, WithForcePlain(true)))

	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewTUIRenderer_RejectsNonTTY(t *testing.T) {
	_, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	assert.Error(t, err)
}

func TestIsTTY_NonFile(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestDetectCI(t *testing.T) {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		t.Setenv(v, "")
		_ = os.Unsetenv(v)
	}
	assert.False(t, DetectCI())

	t.Setenv("CI", "true")
	assert.True(t, DetectCI())
}

func TestProgressTracker(t *testing.T) {
	// Given: a tracker
	tr := NewProgressTracker()

	// When: documents and errors arrive
	tr.Apply(ProgressEvent{Stage: StageExtracting, Current: 0, Total: 4})
	tr.Document(DocumentEvent{Current: 1, Total: 4, Doc: "a.pdf", OK: true, Pages: 2, Emitted: 2})
	tr.Document(DocumentEvent{Current: 2, Total: 4, Doc: "b.pdf", Step: "pdfinfo"})
	tr.PageError()
	tr.Checkpoint()

	// Then: the snapshot reflects them
	s := tr.Stats()
	assert.Equal(t, StageExtracting, s.Stage)
	assert.Equal(t, 1, s.OK)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 2, s.Emitted)
	assert.Equal(t, 1, s.PageErrors)
	assert.Equal(t, 1, s.Checkpoints)
	assert.InDelta(t, 0.5, s.Progress, 0.001)
	assert.Equal(t, "b.pdf pdfinfo:ERROR", s.LastLine)
}

func TestRunModel_ViewShowsCounters(t *testing.T) {
	tr := NewProgressTracker()
	tr.Document(DocumentEvent{Current: 1, Total: 2, Doc: "a.pdf", OK: true, Pages: 1, Emitted: 1})
	m := newRunModel(tr, "public/pdfs")
	m.styles = NoColorStyles()

	view := m.View()

	assert.Contains(t, view, "pagedex • public/pdfs")
	assert.Contains(t, view, "1 / 2 documents")
	assert.Contains(t, view, "1 ok")
	assert.Contains(t, view, "a.pdf OK (1/1)")
}

func TestRunModel_CompleteView(t *testing.T) {
	m := newRunModel(NewProgressTracker(), "")
	m.styles = NoColorStyles()

	_, cmd := m.Update(completeMsg(CompletionStats{OK: 2}))

	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Extraction complete: 2 ok, 0 error")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "5.0 MB", FormatBytes(5*1024*1024))
	assert.Equal(t, "2.0 GB", FormatBytes(2*1024*1024*1024))
}
