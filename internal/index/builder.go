package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	dexerrors "github.com/Aman-CERP/pagedex/internal/errors"
	"github.com/Aman-CERP/pagedex/internal/records"
	"github.com/Aman-CERP/pagedex/internal/shard"
	"github.com/Aman-CERP/pagedex/internal/ui"
)

// BuildOptions configures an index build.
type BuildOptions struct {
	// RecordLogPath is the docs.jsonl to index.
	RecordLogPath string
	// IndexDir receives index-<n>.bin and manifest.json.
	IndexDir string
	// ShardBytes bounds each shard.
	ShardBytes int
}

// BuildResult summarizes a build.
type BuildResult struct {
	Records       int
	Manifest      *shard.Manifest
	Duration      time.Duration
	IndexDuration time.Duration
	ShardDuration time.Duration
}

// Builder turns the record log into shards.
type Builder struct {
	backend  Backend
	renderer ui.Renderer
}

// NewBuilder creates a Builder.
func NewBuilder(backend Backend, renderer ui.Renderer) (*Builder, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	return &Builder{backend: backend, renderer: renderer}, nil
}

// Run reads every record, builds the index and writes the shards in one pass.
func (b *Builder) Run(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	start := time.Now()

	recs, err := records.ReadAll(opts.RecordLogPath)
	if err != nil {
		return nil, err
	}
	b.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageIndexing,
		Message: fmt.Sprintf("Indexing %d records (%s)", len(recs), b.backend.Name()),
	})
	slog.Info("index_started",
		slog.String("record_log", opts.RecordLogPath),
		slog.Int("records", len(recs)),
		slog.String("backend", b.backend.Name()))

	workDir, err := os.MkdirTemp("", "pagedex-index-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	data, err := b.backend.Build(ctx, recs, workDir)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, dexerrors.New(dexerrors.ErrCodeIndexBuild,
			fmt.Sprintf("build %s index: %v", b.backend.Name(), err), err)
	}
	indexDone := time.Now()

	b.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageSharding,
		Message: fmt.Sprintf("Writing %s into %s", ui.FormatBytes(int64(len(data))), opts.IndexDir),
	})
	m, err := shard.Write(opts.IndexDir, data, opts.ShardBytes, b.backend.Name())
	if err != nil {
		return nil, err
	}

	res := &BuildResult{
		Records:       len(recs),
		Manifest:      m,
		Duration:      time.Since(start),
		IndexDuration: indexDone.Sub(start),
		ShardDuration: time.Since(indexDone),
	}
	slog.Info("index_complete",
		slog.Int("records", res.Records),
		slog.Int("shards", m.Shards),
		slog.Int64("total_bytes", m.TotalBytes),
		slog.Int64("duration_index_ms", res.IndexDuration.Milliseconds()),
		slog.Int64("duration_shard_ms", res.ShardDuration.Milliseconds()))
	return res, nil
}

// VerifyResult is what Verify found.
type VerifyResult struct {
	Manifest *shard.Manifest
	Docs     uint64
	Hits     []Hit
}

// Verify reassembles the shards in dir, opens the index with the backend
// named in the manifest, counts documents and runs query when non-empty.
func Verify(dir, query string, limit int) (*VerifyResult, error) {
	data, m, err := shard.Reassemble(dir)
	if err != nil {
		return nil, err
	}
	backend, err := NewBackend(m.Format)
	if err != nil {
		return nil, dexerrors.New(dexerrors.ErrCodeShardCorrupt, err.Error(), err)
	}

	workDir, err := os.MkdirTemp("", "pagedex-verify-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	r, err := backend.Open(data, workDir)
	if err != nil {
		return nil, dexerrors.New(dexerrors.ErrCodeShardCorrupt,
			fmt.Sprintf("reassembled index does not open: %v", err), err)
	}
	defer func() { _ = r.Close() }()

	res := &VerifyResult{Manifest: m}
	if res.Docs, err = r.DocCount(); err != nil {
		return nil, err
	}
	if query != "" {
		if res.Hits, err = r.Search(query, limit); err != nil {
			return nil, err
		}
	}
	return res, nil
}
