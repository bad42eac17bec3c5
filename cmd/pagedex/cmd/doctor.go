package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pagedex/internal/config"
	"github.com/Aman-CERP/pagedex/internal/preflight"
)

func newDoctorCmd(root *rootOptions) *cobra.Command {
	var (
		jsonOutput bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the workspace is ready for extraction",
		Long: `Check that the page tools resolve on PATH, the source directory holds
documents, the build and index directories are writable and enough disk
space is free. Exits non-zero when a required check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			checker := preflight.New(preflight.WithOutput(cmd.OutOrStdout()), preflight.WithVerbose(verbose))
			results := checker.RunAll(cmd.Context(), doctorTarget(cfg))

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{
					"status": checker.SummaryStatus(results),
					"checks": results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return fmt.Errorf("workspace check failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for each check")

	return cmd
}

func doctorTarget(cfg *config.Config) preflight.Target {
	t := preflight.Target{
		Source:    cfg.Paths.Source,
		Extension: cfg.Extract.Extension,
		BuildDir:  cfg.Paths.BuildDir,
		IndexDir:  cfg.Paths.IndexDir,
		Tools:     []string{cfg.Extract.PageTextTool},
	}
	if cfg.Extract.PageCountBackend != config.PageCountNative {
		t.Tools = append([]string{cfg.Extract.PageCountTool}, t.Tools...)
	}
	return t
}
