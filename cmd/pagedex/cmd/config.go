package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/pagedex/internal/config"
	dexerrors "github.com/Aman-CERP/pagedex/internal/errors"
	"github.com/Aman-CERP/pagedex/internal/output"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the pagedex configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/pagedex/config.yaml)
  3. Project config (.pagedex.yaml in the working directory)
  4. Environment variables (PAGEDEX_*, LIMIT)
  5. Command-line flags`,
		Example: `  # Write .pagedex.yaml with the defaults
  pagedex config init

  # Show effective configuration
  pagedex config show`,
	}

	cmd.AddCommand(newConfigInitCmd(root))
	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigPathCmd(root))

	return cmd
}

func newConfigInitCmd(root *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create .pagedex.yaml in the working directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := root.absWorkDir()
			if err != nil {
				return err
			}
			return runConfigInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing .pagedex.yaml")

	return cmd
}

func runConfigInit(cmd *cobra.Command, dir string, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := config.ProjectConfigPath(dir)

	if _, err := os.Stat(path); err == nil && !force {
		out.Warning("Project configuration already exists")
		out.Statusf("📁", "Location: %s", path)
		out.Status("💡", "Use --force to overwrite it with the defaults")
		return nil
	}

	if err := config.NewConfig().WriteYAML(path); err != nil {
		return err
	}

	out.Success("Created project configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Point paths.source at the document directory")
	out.Status("", "  2. Run 'pagedex extract', then 'pagedex index'")
	return nil
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Example: `  pagedex config show
  pagedex config show --json
  pagedex config show --source defaults`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := root.absWorkDir()
			if err != nil {
				return err
			}
			return runConfigShow(cmd, dir, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged or defaults")

	return cmd
}

func runConfigShow(cmd *cobra.Command, dir string, jsonOutput bool, source string) error {
	var cfg *config.Config
	switch source {
	case "merged":
		loaded, err := config.Load(dir)
		if err != nil {
			return dexerrors.ConfigError(err.Error(), err)
		}
		cfg = loaded
	case "defaults":
		cfg = config.NewConfig()
	default:
		return fmt.Errorf("invalid source: %s (valid options: merged, defaults)", source)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func newConfigPathCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user and project config file paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := root.absWorkDir()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user:    %s\nproject: %s\n",
				config.GetUserConfigPath(), filepath.Clean(config.ProjectConfigPath(dir)))
			return nil
		},
	}
}
