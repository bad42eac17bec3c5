package index

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dexerrors "github.com/Aman-CERP/pagedex/internal/errors"
	"github.com/Aman-CERP/pagedex/internal/normalize"
	"github.com/Aman-CERP/pagedex/internal/records"
	"github.com/Aman-CERP/pagedex/internal/shard"
	"github.com/Aman-CERP/pagedex/internal/ui"
)

type stageRenderer struct {
	mu     sync.Mutex
	stages []ui.Stage
}

func (r *stageRenderer) Start(ctx context.Context) error { return nil }
func (r *stageRenderer) UpdateProgress(event ui.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, event.Stage)
}
func (r *stageRenderer) DocumentDone(ui.DocumentEvent)     {}
func (r *stageRenderer) Checkpoint(ui.CheckpointEvent)     {}
func (r *stageRenderer) AddError(ui.ErrorEvent)            {}
func (r *stageRenderer) Complete(stats ui.CompletionStats) {}
func (r *stageRenderer) Stop() error                       { return nil }

func page(id int, doc string, p int, text string) records.PageRecord {
	return records.PageRecord{ID: id, Doc: doc, Page: p, Text: text, Norm: normalize.Text(text)}
}

func testRecords() []records.PageRecord {
	return []records.PageRecord{
		page(0, "Manual.pdf", 0, "Foo Bar baz"),
		page(1, "Manual.pdf", 1, "Résumé of the café: a b c"),
		page(2, "Other.pdf", 0, "bar-code X9 lookup"),
	}
}

func writeRecordLog(t *testing.T, recs []records.PageRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docs.jsonl")
	w, err := records.OpenWriter(path)
	require.NoError(t, err)
	for _, rec := range recs {
		_, err := w.Append(rec)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"lowercases", "Foo BAR", []string{"foo", "bar"}},
		{"splits on punctuation", "bar-code,x9;lookup", []string{"bar", "code", "x9", "lookup"}},
		{"drops single characters", "a b cd e", []string{"cd"}},
		{"empty", "", []string{}},
		{"non ascii is a separator", "café ok", []string{"caf", "ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendBleve, b.Name())

	b, err = NewBackend(BackendSQLite)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, b.Name())

	_, err = NewBackend("lucene")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown index backend")
}

func TestBackends_BuildOpenSearch(t *testing.T) {
	for _, name := range []string{BackendBleve, BackendSQLite} {
		t.Run(name, func(t *testing.T) {
			backend, err := NewBackend(name)
			require.NoError(t, err)

			// Given three page records
			data, err := backend.Build(context.Background(), testRecords(), t.TempDir())
			require.NoError(t, err)
			require.NotEmpty(t, data)

			// When the serialized index is reopened elsewhere
			r, err := backend.Open(data, t.TempDir())
			require.NoError(t, err)
			defer func() { _ = r.Close() }()

			// Then every record is searchable by its normalized tokens
			n, err := r.DocCount()
			require.NoError(t, err)
			assert.Equal(t, uint64(3), n)

			hits, err := r.Search("BAR", 10)
			require.NoError(t, err)
			assert.Len(t, hits, 2)

			hits, err = r.Search("resume cafe", 10)
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, "1", hits[0].ID)
			assert.Equal(t, "Manual.pdf", hits[0].Doc)
			assert.Equal(t, 1, hits[0].Page)
			assert.Equal(t, "Résumé of the café: a b c", hits[0].Text)

			hits, err = r.Search("foo lookup", 10)
			require.NoError(t, err)
			assert.Empty(t, hits)

			hits, err = r.Search("a", 10)
			require.NoError(t, err)
			assert.Empty(t, hits)
		})
	}
}

func TestBackends_NoSingleCharacterTerms(t *testing.T) {
	for _, name := range []string{BackendBleve, BackendSQLite} {
		t.Run(name, func(t *testing.T) {
			backend, err := NewBackend(name)
			require.NoError(t, err)
			data, err := backend.Build(context.Background(), testRecords(), t.TempDir())
			require.NoError(t, err)
			r, err := backend.Open(data, t.TempDir())
			require.NoError(t, err)
			defer func() { _ = r.Close() }()

			terms, err := r.Terms()
			require.NoError(t, err)
			require.NotEmpty(t, terms)
			for _, term := range terms {
				assert.GreaterOrEqual(t, len(term), MinTokenLength, "term %q", term)
			}
			assert.Contains(t, terms, "resume")
			assert.Contains(t, terms, "x9")
		})
	}
}

func TestBackend_BuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&BleveBackend{}).Build(ctx, testRecords(), t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}

func TestPackDir_Deterministic(t *testing.T) {
	mk := func() string {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "store"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "store", "b.zap"), []byte("segment"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index_meta.json"), []byte(`{"storage":"scorch"}`), 0o644))
		return dir
	}

	var a, b bytes.Buffer
	require.NoError(t, packDir(&a, mk()))
	require.NoError(t, packDir(&b, mk()))
	assert.Equal(t, a.Bytes(), b.Bytes())

	out := t.TempDir()
	require.NoError(t, unpackDir(bytes.NewReader(a.Bytes()), out))
	got, err := os.ReadFile(filepath.Join(out, "store", "b.zap"))
	require.NoError(t, err)
	assert.Equal(t, "segment", string(got))
}

func TestBuilder_Run(t *testing.T) {
	for _, name := range []string{BackendBleve, BackendSQLite} {
		t.Run(name, func(t *testing.T) {
			// Given a record log
			logPath := writeRecordLog(t, testRecords())
			indexDir := filepath.Join(t.TempDir(), "index")
			backend, err := NewBackend(name)
			require.NoError(t, err)
			renderer := &stageRenderer{}
			b, err := NewBuilder(backend, renderer)
			require.NoError(t, err)

			// When the index is built with small shards
			res, err := b.Run(context.Background(), BuildOptions{
				RecordLogPath: logPath,
				IndexDir:      indexDir,
				ShardBytes:    4096,
			})
			require.NoError(t, err)

			// Then the shards reassemble and open as the same index
			assert.Equal(t, 3, res.Records)
			assert.Equal(t, name, res.Manifest.Format)
			assert.Greater(t, res.Manifest.Shards, 1)
			assert.Equal(t, []ui.Stage{ui.StageIndexing, ui.StageSharding}, renderer.stages)

			for i, size := range res.Manifest.Sizes {
				assert.LessOrEqual(t, size, int64(4096), "shard %d", i+1)
			}

			vr, err := Verify(indexDir, "lookup", 5)
			require.NoError(t, err)
			assert.Equal(t, uint64(3), vr.Docs)
			require.Len(t, vr.Hits, 1)
			assert.Equal(t, "Other.pdf", vr.Hits[0].Doc)
		})
	}
}

func TestBuilder_EmptyRecordLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "docs.jsonl")
	require.NoError(t, os.WriteFile(logPath, nil, 0o644))

	b, err := NewBuilder(&BleveBackend{}, &stageRenderer{})
	require.NoError(t, err)
	_, err = b.Run(context.Background(), BuildOptions{
		RecordLogPath: logPath,
		IndexDir:      t.TempDir(),
		ShardBytes:    1 << 20,
	})
	require.Error(t, err)
	assert.Equal(t, dexerrors.ErrCodeRecordLogEmpty, dexerrors.GetCode(err))
}

func TestBuilder_MissingRecordLog(t *testing.T) {
	b, err := NewBuilder(&BleveBackend{}, &stageRenderer{})
	require.NoError(t, err)
	_, err = b.Run(context.Background(), BuildOptions{
		RecordLogPath: filepath.Join(t.TempDir(), "docs.jsonl"),
		IndexDir:      t.TempDir(),
		ShardBytes:    1 << 20,
	})
	require.Error(t, err)
	assert.Equal(t, dexerrors.ErrCodeRecordLogMissing, dexerrors.GetCode(err))
}

func TestNewBuilder_RequiresDependencies(t *testing.T) {
	_, err := NewBuilder(nil, &stageRenderer{})
	require.Error(t, err)
	_, err = NewBuilder(&BleveBackend{}, nil)
	require.Error(t, err)
}

func TestVerify_CorruptShard(t *testing.T) {
	logPath := writeRecordLog(t, testRecords())
	indexDir := t.TempDir()
	b, err := NewBuilder(&SQLiteBackend{}, &stageRenderer{})
	require.NoError(t, err)
	_, err = b.Run(context.Background(), BuildOptions{RecordLogPath: logPath, IndexDir: indexDir, ShardBytes: 1 << 20})
	require.NoError(t, err)

	// Flip a byte in the only shard
	path := filepath.Join(indexDir, shard.FileName(1))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Verify(indexDir, "", 0)
	require.Error(t, err)
	assert.Equal(t, dexerrors.ErrCodeShardCorrupt, dexerrors.GetCode(err))
}

func TestVerify_NegativeManifestTotal(t *testing.T) {
	// Given: an index directory whose manifest claims a negative size
	indexDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(indexDir, shard.ManifestName),
		[]byte(`{"version":1,"totalBytes":-1,"shards":0,"shardBytes":5}`), 0o644))

	// When: verifying
	var err error
	require.NotPanics(t, func() { _, err = Verify(indexDir, "cafe", 5) })

	// Then: reported as a corrupt shard set
	require.Error(t, err)
	assert.Equal(t, dexerrors.ErrCodeShardCorrupt, dexerrors.GetCode(err))
}
