package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pagedex/internal/config"
	"github.com/Aman-CERP/pagedex/internal/index"
	"github.com/Aman-CERP/pagedex/internal/lock"
	"github.com/Aman-CERP/pagedex/internal/ui"
)

type indexOptions struct {
	backend    string
	shardBytes int
	out        string
	noTUI      bool
}

func newIndexCmd(root *rootOptions) *cobra.Command {
	opts := &indexOptions{}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the search index from the record log and write shards",
		Long: `Read every page record from docs.jsonl, build a full-text index over the
normalized text and write it as index-<n>.bin shards plus manifest.json.

Backends:
  bleve    (default) scorch index packed as a deterministic tar stream
  sqlite   single-file SQLite FTS5 database

The whole index is rebuilt on every run; shards left over from a larger
previous build are removed.`,
		Example: `  # Build with defaults (bleve, 5 MiB shards)
  pagedex index

  # SQLite FTS5 with 1 MiB shards
  pagedex index --backend sqlite --shard-bytes 1048576`,
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
			return runIndex(ctx, cmd, cfg, opts.noTUI)
		},
	}

	cmd.Flags().StringVar(&opts.backend, "backend", "", "Index backend: bleve or sqlite")
	cmd.Flags().IntVar(&opts.shardBytes, "shard-bytes", 0, "Maximum bytes per shard (default 5 MiB)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output directory for shards (default from config: public/index)")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")

	return cmd
}

func (o *indexOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Index.Backend = strings.ToLower(o.backend)
	}
	if flags.Changed("shard-bytes") {
		cfg.Index.ShardBytes = o.shardBytes
	}
	if flags.Changed("out") {
		cfg.Paths.IndexDir = o.out
	}
	if err := cfg.Validate(); err != nil {
		return configFlagError(err)
	}
	return nil
}

func runIndex(ctx context.Context, cmd *cobra.Command, cfg *config.Config, noTUI bool) error {
	ws := lock.New(cfg.Paths.BuildDir)
	if err := ws.Acquire(); err != nil {
		return err
	}
	defer func() { _ = ws.Release() }()
	slog.Debug("workspace_locked", slog.String("lock", ws.Path()))

	backend, err := index.NewBackend(cfg.Index.Backend)
	if err != nil {
		return configFlagError(err)
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(noTUI),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithTitle(cfg.RecordLogPath())))
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	builder, err := index.NewBuilder(backend, renderer)
	if err != nil {
		return err
	}
	res, err := builder.Run(ctx, index.BuildOptions{
		RecordLogPath: cfg.RecordLogPath(),
		IndexDir:      cfg.Paths.IndexDir,
		ShardBytes:    cfg.Index.ShardBytes,
	})
	if err != nil {
		return err
	}

	renderer.Complete(ui.CompletionStats{
		IndexedRecords: res.Records,
		Shards:         res.Manifest.Shards,
		IndexBytes:     res.Manifest.TotalBytes,
		Backend:        res.Manifest.Format,
		Duration:       res.Duration,
		Stages: ui.StageTimings{
			Index: res.IndexDuration,
			Shard: res.ShardDuration,
		},
	})
	return nil
}
