// Package extract runs the page extraction pipeline: for every pending
// document it queries the page count, extracts each page's text through an
// external tool, and appends one PageRecord per non-empty page. Progress is
// checkpointed to the manifest so an interrupted run resumes where it left off.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dexerrors "github.com/Aman-CERP/pagedex/internal/errors"
	"github.com/Aman-CERP/pagedex/internal/ledger"
	"github.com/Aman-CERP/pagedex/internal/manifest"
	"github.com/Aman-CERP/pagedex/internal/normalize"
	"github.com/Aman-CERP/pagedex/internal/records"
	"github.com/Aman-CERP/pagedex/internal/scanner"
	"github.com/Aman-CERP/pagedex/internal/ui"
)

// Options configures one pipeline run.
type Options struct {
	// Source is the corpus directory.
	Source string
	// Extension is the recognized document extension.
	Extension string
	// Limit caps documents processed per run (0 = unlimited).
	Limit int
	// RecordLogPath is docs.jsonl.
	RecordLogPath string
	// LedgerPath is errors.log.
	LedgerPath string
}

// Dependencies contains the injected collaborators for Pipeline.
type Dependencies struct {
	// Renderer for progress display (required).
	Renderer ui.Renderer
	// Manifest store (required).
	Manifest *manifest.Store
	// Counter reports page counts (required).
	Counter PageCounter
	// Texter extracts page text (required).
	Texter PageTexter
	// Policy decides mid-run checkpoints. Defaults to EveryDocuments(10).
	Policy manifest.Policy
	// Now is the clock, injectable for tests.
	Now func() time.Time
}

// Result summarizes a run.
type Result struct {
	Discovered int
	Pending    int // before the limit
	Processed  int
	OK         int
	Failed     int
	Pages      int
	Emitted    int
	PageErrors int
	// LedgerEntries counts lines appended to the error ledger this run.
	LedgerEntries int
	// RecordBytes counts bytes appended to the record log this run.
	RecordBytes int64
	NextID      int
	Duration    time.Duration
	NothingToDo bool
	Interrupted bool
	Recovered   bool
	Reconciled  bool
}

// RunState is the mutable state threaded through one run.
type RunState struct {
	State  *manifest.State
	NextID int

	progress       manifest.Progress
	lastCheckpoint time.Time

	ok, failed, pageErrors, emitted, pages int
}

// Pipeline executes extraction runs.
type Pipeline struct {
	renderer ui.Renderer
	store    *manifest.Store
	counter  PageCounter
	texter   PageTexter
	policy   manifest.Policy
	now      func() time.Time
}

// NewPipeline creates a Pipeline with injected dependencies.
func NewPipeline(deps Dependencies) (*Pipeline, error) {
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Manifest == nil {
		return nil, fmt.Errorf("manifest store is required")
	}
	if deps.Counter == nil || deps.Texter == nil {
		return nil, fmt.Errorf("page counter and texter are required")
	}
	policy := deps.Policy
	if policy == nil {
		policy = manifest.EveryDocuments(10)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		renderer: deps.Renderer,
		store:    deps.Manifest,
		counter:  deps.Counter,
		texter:   deps.Texter,
		policy:   policy,
		now:      now,
	}, nil
}

// Run processes every pending document once. Cancelling ctx stops between
// pages; the manifest is saved with every document finished so far and the
// returned error wraps ctx.Err().
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	start := p.now()

	docs, err := scanner.Scan(scanner.ScanOptions{Dir: opts.Source, Extension: opts.Extension})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, dexerrors.DiscoveryError(dexerrors.ErrCodeCorpusEmpty,
			fmt.Sprintf("no %s documents in %s", opts.Extension, opts.Source), nil).
			WithSuggestion("Copy the documents into the source directory")
	}

	loaded := p.store.Load()
	if loaded.Recovered {
		slog.Warn("manifest_recovered",
			slog.String("path", p.store.Path()),
			slog.String("reason", loaded.Reason))
	}
	st := loaded.State

	maxID, err := records.MaxID(opts.RecordLogPath)
	if err != nil {
		return nil, err
	}
	result := &Result{Discovered: len(docs), Recovered: loaded.Recovered}
	if before := st.LastID; manifest.Reconcile(st, maxID) {
		result.Reconciled = true
		slog.Warn("record_ids_reconciled",
			slog.Int("manifest_last_id", before),
			slog.Int("record_log_max_id", maxID),
			slog.Int("next_id", st.LastID))
	}

	result.Pending = len(scanner.Pending(docs, st.Done, 0))
	pending := scanner.Pending(docs, st.Done, opts.Limit)

	msg := fmt.Sprintf("%d documents, %d pending", len(docs), result.Pending)
	if opts.Limit > 0 && len(pending) < result.Pending {
		msg += fmt.Sprintf(" (processing %d)", len(pending))
	}
	p.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning, Message: msg})
	slog.Info("extract_started",
		slog.String("source", opts.Source),
		slog.Int("documents", len(docs)),
		slog.Int("pending", result.Pending),
		slog.Int("limit", opts.Limit))

	if len(pending) == 0 {
		result.NothingToDo = true
		result.NextID = st.LastID
		result.Duration = p.now().Sub(start)
		if result.Reconciled {
			if err := p.store.Save(st); err != nil {
				return result, err
			}
		}
		return result, nil
	}

	w, err := records.OpenWriter(opts.RecordLogPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = w.Close() }()

	led, err := ledger.Open(opts.LedgerPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = led.Close() }()

	rs := &RunState{State: st, NextID: st.LastID, lastCheckpoint: p.now()}

	var runErr error
	for i, doc := range pending {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		p.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageExtracting,
			Current:     i,
			Total:       len(pending),
			CurrentFile: doc.Name,
		})

		event, err := p.processDocument(ctx, rs, w, led, doc)
		if err != nil {
			runErr = err
			break
		}
		event.Current = i + 1
		event.Total = len(pending)
		p.renderer.DocumentDone(event)

		rs.progress.Documents++
		rs.progress.Elapsed = p.now().Sub(rs.lastCheckpoint)
		if p.policy.Due(rs.progress) {
			if err := p.checkpoint(rs); err != nil {
				runErr = err
				break
			}
		}
	}

	// Final save is unconditional, including after cancellation.
	st.LastID = rs.NextID
	if err := p.store.Save(st); err != nil {
		if runErr == nil {
			runErr = err
		} else {
			slog.Error("manifest_save_failed", dexerrors.FormatForLog(err)...)
		}
	}

	result.Processed = rs.ok + rs.failed
	result.OK = rs.ok
	result.Failed = rs.failed
	result.Pages = rs.pages
	result.Emitted = rs.emitted
	result.PageErrors = rs.pageErrors
	result.LedgerEntries = led.Count()
	result.RecordBytes = w.Written()
	result.NextID = rs.NextID
	result.Duration = p.now().Sub(start)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			result.Interrupted = true
			slog.Warn("extract_interrupted",
				slog.Int("processed", result.Processed),
				slog.Int("next_id", result.NextID))
			return result, fmt.Errorf("extraction interrupted: %w", runErr)
		}
		return result, runErr
	}

	slog.Info("extract_complete",
		slog.Int("ok", result.OK),
		slog.Int("failed", result.Failed),
		slog.Int("emitted", result.Emitted),
		slog.Int("page_errors", result.PageErrors),
		slog.Int64("record_bytes", result.RecordBytes),
		slog.Int("next_id", result.NextID),
		slog.Int64("duration_ms", result.Duration.Milliseconds()))
	return result, nil
}

// processDocument runs both steps for one document and records its terminal
// status. It returns an error only for cancellation or persistence failures;
// tool failures are recorded and swallowed.
func (p *Pipeline) processDocument(ctx context.Context, rs *RunState, w *records.Writer, led *ledger.Ledger, doc scanner.Document) (ui.DocumentEvent, error) {
	event := ui.DocumentEvent{Doc: doc.Name}

	pages, err := p.counter.CountPages(ctx, doc.Path)
	if err != nil {
		if ctx.Err() != nil {
			return event, ctx.Err()
		}
		reason := dexerrors.Reason(err)
		if err := led.Record(ledger.Entry{Doc: doc.Name, Step: ledger.StepPageCount, Reason: reason}); err != nil {
			return event, err
		}
		rs.State.MarkError(doc.Name, ledger.StepPageCount, reason)
		rs.failed++
		slog.Warn("extract_doc_failed", append([]any{
			slog.String("doc", doc.Name),
			slog.String("step", ledger.StepPageCount),
			slog.String("reason", reason),
		}, dexerrors.FormatForLog(err)...)...)
		event.Step = ledger.StepPageCount
		return event, nil
	}

	emitted := 0
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return event, err
		}

		raw, err := p.texter.PageText(ctx, doc.Path, page)
		if err != nil {
			if ctx.Err() != nil {
				return event, ctx.Err()
			}
			step := ledger.PageStep(page)
			reason := dexerrors.Reason(err)
			if err := led.Record(ledger.Entry{Doc: doc.Name, Step: step, Reason: reason}); err != nil {
				return event, err
			}
			rs.pageErrors++
			p.renderer.AddError(ui.ErrorEvent{File: doc.Name, Step: step, Err: err, IsWarn: true})
			if dexerrors.GetCode(err) == dexerrors.ErrCodeToolTimeout {
				slog.Warn("tool_timeout", append([]any{
					slog.String("doc", doc.Name),
					slog.Int("page", page),
				}, dexerrors.FormatForLog(err)...)...)
			}
			continue
		}

		text := normalize.CollapseWhitespace(raw)
		if text == "" {
			continue
		}
		n, err := w.Append(records.PageRecord{
			ID:   rs.NextID,
			Doc:  doc.Name,
			Page: page - 1,
			Text: text,
			Norm: normalize.Text(text),
		})
		if err != nil {
			return event, err
		}
		rs.NextID++
		rs.progress.Bytes += int64(n)
		emitted++
	}

	rs.State.MarkOK(doc.Name, pages, emitted)
	rs.ok++
	rs.pages += pages
	rs.emitted += emitted
	slog.Debug("extract_doc_done",
		slog.String("doc", doc.Name),
		slog.Int("pages", pages),
		slog.Int("emitted", emitted))

	event.OK = true
	event.Pages = pages
	event.Emitted = emitted
	return event, nil
}

func (p *Pipeline) checkpoint(rs *RunState) error {
	rs.State.LastID = rs.NextID
	if err := p.store.Save(rs.State); err != nil {
		return err
	}
	ok, failed := rs.State.Counts()
	p.renderer.Checkpoint(ui.CheckpointEvent{OK: ok, Failed: failed, NextID: rs.NextID, Bytes: rs.progress.Bytes})
	slog.Info("checkpoint_saved",
		slog.Int("ok", ok),
		slog.Int("failed", failed),
		slog.Int("next_id", rs.NextID))
	rs.progress = manifest.Progress{}
	rs.lastCheckpoint = p.now()
	return nil
}
