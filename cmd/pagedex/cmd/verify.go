package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pagedex/internal/index"
	"github.com/Aman-CERP/pagedex/internal/output"
	"github.com/Aman-CERP/pagedex/internal/ui"
)

func newVerifyCmd(root *rootOptions) *cobra.Command {
	var (
		query string
		limit int
		dir   string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Reassemble the shards, open the index and optionally query it",
		Long: `Read manifest.json from the index directory, concatenate the shards in
order checking each size and checksum, open the reassembled index and report
its document count. With --query, run a search and print the best hits.`,
		Example: `  pagedex verify
  pagedex verify --query "thermal expansion" --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("index-dir") {
				cfg.Paths.IndexDir = dir
			}

			res, err := index.Verify(cfg.Paths.IndexDir, query, limit)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Index verified: %s", cfg.Paths.IndexDir)
			out.Field("Format", 9, res.Manifest.Format)
			out.Field("Shards", 9, res.Manifest.Shards)
			out.Field("Size", 9, ui.FormatBytes(res.Manifest.TotalBytes))
			out.Field("Documents", 9, res.Docs)
			if query == "" {
				return nil
			}

			out.Newline()
			if len(res.Hits) == 0 {
				out.Warningf("No matches for %q", query)
				return nil
			}
			out.Statusf("🔍", "%d matches for %q", len(res.Hits), query)
			for i, hit := range res.Hits {
				out.Status("", fmt.Sprintf("%d. %s p.%d [%s]  %s",
					i+1, hit.Doc, hit.Page+1, hit.ID, output.Snippet(hit.Text, 80)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Search query to run against the reassembled index")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum hits to print")
	cmd.Flags().StringVar(&dir, "index-dir", "", "Shard directory (default from config: public/index)")

	return cmd
}
