package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pagedex/internal/config"
	"github.com/Aman-CERP/pagedex/internal/extract"
	"github.com/Aman-CERP/pagedex/internal/invoker"
	"github.com/Aman-CERP/pagedex/internal/lock"
	"github.com/Aman-CERP/pagedex/internal/manifest"
	"github.com/Aman-CERP/pagedex/internal/records"
	"github.com/Aman-CERP/pagedex/internal/ui"
	"github.com/Aman-CERP/pagedex/internal/watcher"
)

type extractOptions struct {
	source    string
	buildDir  string
	limit     int
	pageCount string
	watch     bool
	noTUI     bool
}

func newExtractCmd(root *rootOptions) *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract per-page text from the document corpus",
		Long: `Extract the text of every page of every pending document into the
record log (docs.jsonl), one JSON line per non-empty page.

Progress is checkpointed to manifest.json, so an interrupted run resumes
where it stopped. Documents that fail are recorded once in the manifest and
in errors.log and are not retried.`,
		Example: `  # Extract everything pending
  pagedex extract

  # Process at most 50 documents this run
  pagedex extract --limit 50

  # Keep running and pick up new documents as they are copied in
  pagedex extract --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}
			return runExtract(ctx, cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "", "Document directory (default from config: public/pdfs)")
	cmd.Flags().StringVar(&opts.buildDir, "build-dir", "", "Directory for manifest.json, errors.log and docs.jsonl")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum documents to process this run (0 = unlimited)")
	cmd.Flags().StringVar(&opts.pageCount, "page-count", "", "Page count backend: tool (pdfinfo) or native")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Re-run when new documents appear in the source directory")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")

	return cmd
}

// apply overrides cfg with the flags that were set explicitly.
func (o *extractOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Paths.Source = o.source
	}
	if flags.Changed("build-dir") {
		cfg.Paths.BuildDir = o.buildDir
	}
	if flags.Changed("limit") {
		cfg.Extract.Limit = o.limit
	}
	if flags.Changed("page-count") {
		cfg.Extract.PageCountBackend = strings.ToLower(o.pageCount)
	}
	if err := cfg.Validate(); err != nil {
		return configFlagError(err)
	}
	return nil
}

// newPipeline wires the extraction pipeline from configuration.
func newPipeline(cfg *config.Config, renderer ui.Renderer) (*extract.Pipeline, error) {
	inv := invoker.New()

	var counter extract.PageCounter = &extract.ToolCounter{
		Invoker: inv,
		Tool:    cfg.Extract.PageCountTool,
		Timeout: cfg.InfoTimeoutDuration(),
	}
	if cfg.Extract.PageCountBackend == config.PageCountNative {
		counter = extract.NativeCounter{}
	}

	policies := []manifest.Policy{}
	if n := cfg.Checkpoint.EveryDocuments; n > 0 {
		policies = append(policies, manifest.EveryDocuments(n))
	}
	if d := cfg.CheckpointIntervalDuration(); d > 0 {
		policies = append(policies, manifest.EveryInterval(d))
	}
	if b := cfg.Checkpoint.EveryBytes; b > 0 {
		policies = append(policies, manifest.EveryBytes(b))
	}
	policy := manifest.Never()
	if len(policies) > 0 {
		policy = manifest.AnyOf(policies...)
	}

	return extract.NewPipeline(extract.Dependencies{
		Renderer: renderer,
		Manifest: manifest.NewStore(cfg.ManifestPath()),
		Counter:  counter,
		Texter: &extract.ToolTexter{
			Invoker: inv,
			Tool:    cfg.Extract.PageTextTool,
			Timeout: cfg.PageTimeoutDuration(),
		},
		Policy: policy,
	})
}

func runExtract(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts *extractOptions) error {
	ws := lock.New(cfg.Paths.BuildDir)
	if err := ws.Acquire(); err != nil {
		return err
	}
	defer func() { _ = ws.Release() }()
	slog.Debug("workspace_locked", slog.String("lock", ws.Path()))

	if err := extractOnce(ctx, cmd, cfg, opts); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}
	return watchAndExtract(ctx, cmd, cfg, opts)
}

// extractOnce runs the pipeline with a fresh renderer and prints the summary.
func extractOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts *extractOptions) error {
	uiCfg := ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithTitle(cfg.Paths.Source))
	renderer := ui.NewRenderer(uiCfg)
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	pipeline, err := newPipeline(cfg, renderer)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(ctx, extract.Options{
		Source:        cfg.Paths.Source,
		Extension:     cfg.Extract.Extension,
		Limit:         cfg.Extract.Limit,
		RecordLogPath: cfg.RecordLogPath(),
		LedgerPath:    cfg.ErrorLedgerPath(),
	})
	if res == nil {
		return err
	}

	if res.NothingToDo && err == nil {
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageComplete,
			Message: fmt.Sprintf("Nothing to do: all %d documents already processed", res.Discovered),
		})
		return nil
	}

	renderer.Complete(ui.CompletionStats{
		Documents:      res.Processed,
		OK:             res.OK,
		Failed:         res.Failed,
		Records:        res.Emitted,
		Pages:          res.Pages,
		Duration:       res.Duration,
		Stages:         ui.StageTimings{Extract: res.Duration},
		RecordLogPath:  cfg.RecordLogPath(),
		RecordLogBytes: records.Size(cfg.RecordLogPath()),
		ManifestPath:   cfg.ManifestPath(),
		LedgerPath:     cfg.ErrorLedgerPath(),
		LedgerEntries:  res.LedgerEntries,
		Interrupted:    res.Interrupted,
	})
	return err
}

// watchAndExtract re-runs the pipeline for each debounced batch of new
// documents until ctx is cancelled.
func watchAndExtract(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts *extractOptions) error {
	w, err := watcher.New(watcher.Options{
		Dir:       cfg.Paths.Source,
		Extension: cfg.Extract.Extension,
		Debounce:  cfg.WatchDebounceDuration(),
	})
	if err != nil {
		return err
	}
	defer w.Stop()

	go func() { _ = w.Start(ctx) }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for new documents (Ctrl+C to stop)\n", cfg.Paths.Source)
	slog.Info("watch_started", slog.String("dir", cfg.Paths.Source))

	for {
		select {
		case <-ctx.Done():
			slog.Info("watch_stopped")
			return nil
		case batch, ok := <-w.Batches():
			if !ok {
				return nil
			}
			slog.Info("watch_batch", slog.Int("documents", len(batch)))
			if err := extractOnce(ctx, cmd, cfg, opts); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}
