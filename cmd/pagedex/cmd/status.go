package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pagedex/internal/config"
	"github.com/Aman-CERP/pagedex/internal/ledger"
	"github.com/Aman-CERP/pagedex/internal/manifest"
	"github.com/Aman-CERP/pagedex/internal/records"
	"github.com/Aman-CERP/pagedex/internal/scanner"
	"github.com/Aman-CERP/pagedex/internal/shard"
	"github.com/Aman-CERP/pagedex/internal/ui"
)

func newStatusCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show extraction and index progress",
		Long: `Show how many documents are done, failed or pending, where the next
record id starts, how large the record log is and whether shards exist.
Nothing is modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			info, err := collectStatus(cfg)
			if err != nil {
				return err
			}

			r := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// collectStatus reads the persisted workspace state without modifying it.
func collectStatus(cfg *config.Config) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		Source:        cfg.Paths.Source,
		RecordLogPath: cfg.RecordLogPath(),
		IndexDir:      cfg.Paths.IndexDir,
		ManifestOK:    true,
	}

	docs, err := scanner.Scan(scanner.ScanOptions{Dir: cfg.Paths.Source, Extension: cfg.Extract.Extension})
	if err != nil {
		return info, err
	}
	info.Discovered = len(docs)

	loaded := manifest.NewStore(cfg.ManifestPath()).Load()
	st := loaded.State
	if loaded.Recovered {
		info.ManifestOK = false
		info.ManifestErr = loaded.Reason
	}
	info.OK, info.Failed = st.Counts()
	info.Pending = len(scanner.Pending(docs, st.Done, 0))

	maxID, err := records.MaxID(cfg.RecordLogPath())
	if err != nil {
		return info, err
	}
	manifest.Reconcile(st, maxID)
	info.NextID = st.LastID
	info.RecordLogBytes = records.Size(cfg.RecordLogPath())

	entries, err := ledger.Read(cfg.ErrorLedgerPath())
	if err != nil {
		return info, err
	}
	info.LedgerEntries = len(entries)

	if m, err := shard.ReadManifest(cfg.Paths.IndexDir); err == nil {
		info.Shards = m.Shards
		info.IndexBytes = m.TotalBytes
		info.IndexFormat = m.Format
	} else {
		slog.Debug("status_no_index", slog.String("reason", err.Error()))
	}
	return info, nil
}
