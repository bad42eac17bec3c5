package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dexerrors "github.com/Aman-CERP/pagedex/internal/errors"
	"github.com/Aman-CERP/pagedex/internal/ledger"
	"github.com/Aman-CERP/pagedex/internal/manifest"
	"github.com/Aman-CERP/pagedex/internal/records"
	"github.com/Aman-CERP/pagedex/internal/ui"
)

// MockRenderer implements ui.Renderer for testing.
type MockRenderer struct {
	mu              sync.Mutex
	ProgressEvents  []ui.ProgressEvent
	DocumentEvents  []ui.DocumentEvent
	Checkpoints     []ui.CheckpointEvent
	ErrorEvents     []ui.ErrorEvent
	CompletionStats *ui.CompletionStats
}

func (m *MockRenderer) Start(ctx context.Context) error { return nil }

func (m *MockRenderer) UpdateProgress(event ui.ProgressEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProgressEvents = append(m.ProgressEvents, event)
}

func (m *MockRenderer) DocumentDone(event ui.DocumentEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DocumentEvents = append(m.DocumentEvents, event)
}

func (m *MockRenderer) Checkpoint(event ui.CheckpointEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Checkpoints = append(m.Checkpoints, event)
}

func (m *MockRenderer) AddError(event ui.ErrorEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorEvents = append(m.ErrorEvents, event)
}

func (m *MockRenderer) Complete(stats ui.CompletionStats) { m.CompletionStats = &stats }

func (m *MockRenderer) Stop() error { return nil }

// fakeCounter returns page counts by document base name.
type fakeCounter struct {
	pages map[string]int
	errs  map[string]error
	calls []string
}

func (f *fakeCounter) CountPages(ctx context.Context, path string) (int, error) {
	name := filepath.Base(path)
	f.calls = append(f.calls, name)
	if err, ok := f.errs[name]; ok {
		return 0, err
	}
	if n, ok := f.pages[name]; ok {
		return n, nil
	}
	return 0, dexerrors.New(dexerrors.ErrCodePageCount, "pages=0", nil)
}

// fakeTexter returns page text keyed "name#page"; unknown pages get a default.
type fakeTexter struct {
	text   map[string]string
	errs   map[string]error
	hook   func(name string, page int)
	called []string
}

func (f *fakeTexter) PageText(ctx context.Context, path string, page int) (string, error) {
	key := fmt.Sprintf("%s#%d", filepath.Base(path), page)
	f.called = append(f.called, key)
	if f.hook != nil {
		f.hook(filepath.Base(path), page)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	if t, ok := f.text[key]; ok {
		return t, nil
	}
	return "  page " + key + "\n  text ", nil
}

type workspace struct {
	source   string
	build    string
	store    *manifest.Store
	renderer *MockRenderer
}

func newWorkspace(t *testing.T, docs ...string) *workspace {
	t.Helper()
	root := t.TempDir()
	ws := &workspace{
		source:   filepath.Join(root, "pdfs"),
		build:    filepath.Join(root, "build"),
		renderer: &MockRenderer{},
	}
	require.NoError(t, os.MkdirAll(ws.source, 0o755))
	for _, d := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(ws.source, d), []byte("%PDF-1.4"), 0o644))
	}
	ws.store = manifest.NewStore(filepath.Join(ws.build, "manifest.json"))
	return ws
}

func (ws *workspace) opts(limit int) Options {
	return Options{
		Source:        ws.source,
		Extension:     ".pdf",
		Limit:         limit,
		RecordLogPath: filepath.Join(ws.build, "docs.jsonl"),
		LedgerPath:    filepath.Join(ws.build, "errors.log"),
	}
}

func (ws *workspace) pipeline(t *testing.T, counter PageCounter, texter PageTexter, policy manifest.Policy) *Pipeline {
	t.Helper()
	p, err := NewPipeline(Dependencies{
		Renderer: ws.renderer,
		Manifest: ws.store,
		Counter:  counter,
		Texter:   texter,
		Policy:   policy,
	})
	require.NoError(t, err)
	return p
}

func readRecords(t *testing.T, path string) []records.PageRecord {
	t.Helper()
	var out []records.PageRecord
	_, err := records.Each(path, func(r records.PageRecord) error {
		out = append(out, r)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestPipeline_ScenarioA(t *testing.T) {
	// Given: doc1 has one page of text, doc2 fails the page-count query
	ws := newWorkspace(t, "doc1.pdf", "doc2.pdf")
	counter := &fakeCounter{
		pages: map[string]int{"doc1.pdf": 1},
		errs:  map[string]error{"doc2.pdf": dexerrors.ToolInvocationError(dexerrors.ErrCodeToolExit, "Syntax Error: Couldn't find trailer dictionary", nil)},
	}
	texter := &fakeTexter{text: map[string]string{"doc1.pdf#1": "  Héllo\n\tWORLD  "}}
	p := ws.pipeline(t, counter, texter, nil)

	// When: running
	res, err := p.Run(context.Background(), ws.opts(0))

	// Then: one ok, one error, one record, one ledger line
	require.NoError(t, err)
	assert.Equal(t, 1, res.OK)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.NextID)
	assert.Equal(t, 1, res.LedgerEntries)
	assert.Equal(t, records.Size(ws.opts(0).RecordLogPath), res.RecordBytes)

	st := ws.store.Load()
	require.False(t, st.Recovered)
	assert.Equal(t, manifest.DocStatus{Status: "ok", Pages: 1, Emitted: 1}, st.State.Done["doc1.pdf"])
	assert.Equal(t, manifest.DocStatus{Status: "error", Step: "pdfinfo", Reason: "Syntax Error: Couldn't find trailer dictionary"}, st.State.Done["doc2.pdf"])
	assert.Equal(t, 1, st.State.LastID)

	recs := readRecords(t, ws.opts(0).RecordLogPath)
	require.Len(t, recs, 1)
	assert.Equal(t, records.PageRecord{ID: 0, Doc: "doc1.pdf", Page: 0, Text: "Héllo WORLD", Norm: "hello world"}, recs[0])

	entries, err := ledger.Read(ws.opts(0).LedgerPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.Entry{Doc: "doc2.pdf", Step: "pdfinfo", Reason: "Syntax Error: Couldn't find trailer dictionary"}, entries[0])

	require.Len(t, ws.renderer.DocumentEvents, 2)
	assert.Equal(t, "OK (1/1)", ws.renderer.DocumentEvents[0].Line())
	assert.Equal(t, "pdfinfo:ERROR", ws.renderer.DocumentEvents[1].Line())
}

func TestPipeline_PageFailureDoesNotAbortDocument(t *testing.T) {
	// Given: a 4-page doc whose page 2 fails and page 3 is blank
	ws := newWorkspace(t, "a.pdf")
	counter := &fakeCounter{pages: map[string]int{"a.pdf": 4}}
	texter := &fakeTexter{
		text: map[string]string{"a.pdf#3": " \n\t "},
		errs: map[string]error{"a.pdf#2": dexerrors.ToolInvocationError(dexerrors.ErrCodeToolTimeout, "timed out after 20s: pdftotext", nil)},
	}
	p := ws.pipeline(t, counter, texter, nil)
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	// When: running
	res, err := p.Run(context.Background(), ws.opts(0))

	// Then: the doc is ok with 2 of 4 pages emitted, pages 1 and 4
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf#1", "a.pdf#2", "a.pdf#3", "a.pdf#4"}, texter.called)
	assert.Equal(t, 1, res.PageErrors)
	assert.Equal(t, 1, res.LedgerEntries)
	assert.Contains(t, logs.String(), `"msg":"tool_timeout"`)
	assert.Contains(t, logs.String(), `"error_code":"`+dexerrors.ErrCodeToolTimeout+`"`)

	st := ws.store.Load().State
	assert.Equal(t, manifest.DocStatus{Status: "ok", Pages: 4, Emitted: 2}, st.Done["a.pdf"])

	recs := readRecords(t, ws.opts(0).RecordLogPath)
	require.Len(t, recs, 2)
	assert.Equal(t, 0, recs[0].Page)
	assert.Equal(t, 3, recs[1].Page)

	entries, err := ledger.Read(ws.opts(0).LedgerPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pdftotext(page=2)", entries[0].Step)
	require.Len(t, ws.renderer.ErrorEvents, 1)
	assert.True(t, ws.renderer.ErrorEvents[0].IsWarn)
}

func TestPipeline_ResumeNeverReprocessesDone(t *testing.T) {
	// Given: a first run limited to 2 of 3 documents
	ws := newWorkspace(t, "a.pdf", "b.pdf", "c.pdf")
	counter := &fakeCounter{pages: map[string]int{"a.pdf": 2, "b.pdf": 1, "c.pdf": 3}}
	texter := &fakeTexter{}
	first, err := ws.pipeline(t, counter, texter, nil).Run(context.Background(), ws.opts(2))
	require.NoError(t, err)
	assert.Equal(t, 2, first.Processed)
	assert.Equal(t, 3, first.Pending)

	// When: resuming without a limit
	counter.calls = nil
	second, err := ws.pipeline(t, counter, texter, nil).Run(context.Background(), ws.opts(0))
	require.NoError(t, err)

	// Then: only c.pdf is processed and ids continue without collision
	assert.Equal(t, []string{"c.pdf"}, counter.calls)
	assert.Equal(t, 1, second.Pending)
	recs := readRecords(t, ws.opts(0).RecordLogPath)
	require.Len(t, recs, 6)
	for i, r := range recs {
		assert.Equal(t, i, r.ID, "ids strictly increasing and unique")
	}

	// And: a third run has nothing to do
	counter.calls = nil
	third, err := ws.pipeline(t, counter, texter, nil).Run(context.Background(), ws.opts(0))
	require.NoError(t, err)
	assert.True(t, third.NothingToDo)
	assert.Empty(t, counter.calls)
	assert.Equal(t, 6, third.NextID)
}

func TestPipeline_EmittedNeverExceedsPages(t *testing.T) {
	ws := newWorkspace(t, "a.pdf", "b.pdf", "c.pdf")
	counter := &fakeCounter{pages: map[string]int{"a.pdf": 3, "b.pdf": 5, "c.pdf": 1}}
	texter := &fakeTexter{
		text: map[string]string{"b.pdf#2": "", "b.pdf#5": "   "},
		errs: map[string]error{"a.pdf#1": errors.New("boom")},
	}

	_, err := ws.pipeline(t, counter, texter, nil).Run(context.Background(), ws.opts(0))
	require.NoError(t, err)

	for name, st := range ws.store.Load().State.Done {
		assert.LessOrEqual(t, st.Emitted, st.Pages, name)
	}
}

func TestPipeline_LostManifestReconcilesIDs(t *testing.T) {
	// Given: a completed run whose manifest is then lost
	ws := newWorkspace(t, "a.pdf")
	counter := &fakeCounter{pages: map[string]int{"a.pdf": 3, "b.pdf": 2}}
	_, err := ws.pipeline(t, counter, &fakeTexter{}, nil).Run(context.Background(), ws.opts(0))
	require.NoError(t, err)
	require.NoError(t, os.Remove(ws.store.Path()))
	require.NoError(t, os.WriteFile(filepath.Join(ws.source, "b.pdf"), []byte("%PDF"), 0o644))

	// When: running again
	res, err := ws.pipeline(t, counter, &fakeTexter{}, nil).Run(context.Background(), ws.opts(0))

	// Then: ids never collide with the existing log
	require.NoError(t, err)
	assert.True(t, res.Recovered)
	assert.True(t, res.Reconciled)
	seen := map[int]bool{}
	for _, r := range readRecords(t, ws.opts(0).RecordLogPath) {
		assert.False(t, seen[r.ID], "duplicate id %d", r.ID)
		seen[r.ID] = true
	}
	assert.Len(t, seen, 3+3+2)
}

func TestPipeline_CheckpointEveryNDocuments(t *testing.T) {
	// Given: 5 documents, checkpointing every 2, one of which fails
	ws := newWorkspace(t, "a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf")
	counter := &fakeCounter{
		pages: map[string]int{"a.pdf": 1, "c.pdf": 1, "d.pdf": 1, "e.pdf": 1},
	}

	// When: running
	_, err := ws.pipeline(t, counter, &fakeTexter{}, manifest.EveryDocuments(2)).Run(context.Background(), ws.opts(0))

	// Then: checkpoints after documents 2 and 4, counting failures too
	require.NoError(t, err)
	require.Len(t, ws.renderer.Checkpoints, 2)
	assert.Equal(t, ui.CheckpointEvent{OK: 1, Failed: 1, NextID: 1, Bytes: ws.renderer.Checkpoints[0].Bytes}, ws.renderer.Checkpoints[0])
	assert.Equal(t, 3, ws.renderer.Checkpoints[1].OK)
	assert.Equal(t, 3, ws.renderer.Checkpoints[1].NextID)
}

func TestPipeline_CheckpointPersistsProgressMidRun(t *testing.T) {
	// Given: a texter that inspects the manifest while c.pdf is processed
	ws := newWorkspace(t, "a.pdf", "b.pdf", "c.pdf")
	counter := &fakeCounter{pages: map[string]int{"a.pdf": 1, "b.pdf": 1, "c.pdf": 1}}
	var midRun *manifest.State
	texter := &fakeTexter{hook: func(name string, page int) {
		if name == "c.pdf" {
			midRun = ws.store.Load().State
		}
	}}

	// When: checkpointing every 2 documents
	_, err := ws.pipeline(t, counter, texter, manifest.EveryDocuments(2)).Run(context.Background(), ws.opts(0))

	// Then: a and b were on disk before c finished
	require.NoError(t, err)
	require.NotNil(t, midRun)
	assert.True(t, midRun.IsDone("a.pdf"))
	assert.True(t, midRun.IsDone("b.pdf"))
	assert.False(t, midRun.IsDone("c.pdf"))
	assert.Equal(t, 2, midRun.LastID)
}

func TestPipeline_CancellationSavesFinishedDocuments(t *testing.T) {
	// Given: cancellation arriving during b.pdf page 2
	ws := newWorkspace(t, "a.pdf", "b.pdf", "c.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	counter := &fakeCounter{pages: map[string]int{"a.pdf": 1, "b.pdf": 3, "c.pdf": 1}}
	texter := &fakeTexter{hook: func(name string, page int) {
		if name == "b.pdf" && page == 2 {
			cancel()
		}
	}}

	// When: running
	res, err := ws.pipeline(t, counter, texter, manifest.Never()).Run(ctx, ws.opts(0))

	// Then: interrupted, a saved, b not marked, ids past b's emitted page reserved
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, res.Interrupted)
	st := ws.store.Load().State
	assert.True(t, st.IsDone("a.pdf"))
	assert.False(t, st.IsDone("b.pdf"))
	assert.False(t, st.IsDone("c.pdf"))
	assert.Equal(t, 2, st.LastID)
	assert.NotContains(t, texter.called, "c.pdf#1")
}

func TestPipeline_EmptyCorpus(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.pipeline(t, &fakeCounter{}, &fakeTexter{}, nil).Run(context.Background(), ws.opts(0))

	require.Error(t, err)
	assert.Equal(t, dexerrors.ErrCodeCorpusEmpty, dexerrors.GetCode(err))
	assert.True(t, dexerrors.IsFatal(err))
}

func TestPipeline_MissingCorpus(t *testing.T) {
	ws := newWorkspace(t)
	opts := ws.opts(0)
	opts.Source = filepath.Join(ws.source, "nope")

	_, err := ws.pipeline(t, &fakeCounter{}, &fakeTexter{}, nil).Run(context.Background(), opts)

	require.Error(t, err)
	assert.Equal(t, dexerrors.ErrCodeSourceUnreadable, dexerrors.GetCode(err))
}

func TestPipeline_LimitMessage(t *testing.T) {
	ws := newWorkspace(t, "a.pdf", "b.pdf", "c.pdf")
	counter := &fakeCounter{pages: map[string]int{"a.pdf": 1}}

	_, err := ws.pipeline(t, counter, &fakeTexter{}, nil).Run(context.Background(), ws.opts(1))
	require.NoError(t, err)

	require.NotEmpty(t, ws.renderer.ProgressEvents)
	assert.Equal(t, "3 documents, 3 pending (processing 1)", ws.renderer.ProgressEvents[0].Message)
	assert.Equal(t, []string{"a.pdf"}, counter.calls)
}

func TestPipeline_PersistenceFailureIsFatal(t *testing.T) {
	// Given: the record log path is a directory, so appends cannot happen
	ws := newWorkspace(t, "a.pdf")
	opts := ws.opts(0)
	require.NoError(t, os.MkdirAll(opts.RecordLogPath, 0o755))

	_, err := ws.pipeline(t, &fakeCounter{pages: map[string]int{"a.pdf": 1}}, &fakeTexter{}, nil).Run(context.Background(), opts)

	require.Error(t, err)
	assert.True(t, dexerrors.IsFatal(err))
	assert.True(t, strings.HasPrefix(dexerrors.GetCode(err), "ERR_2"))
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	_, err := NewPipeline(Dependencies{})
	assert.Error(t, err)

	_, err = NewPipeline(Dependencies{Renderer: &MockRenderer{}, Manifest: manifest.NewStore("m.json")})
	assert.Error(t, err)
}
