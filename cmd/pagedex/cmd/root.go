// Package cmd provides the CLI commands for pagedex.
package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pagedex/internal/config"
	dexerrors "github.com/Aman-CERP/pagedex/internal/errors"
	"github.com/Aman-CERP/pagedex/internal/logging"
	"github.com/Aman-CERP/pagedex/internal/profiling"
	"github.com/Aman-CERP/pagedex/pkg/version"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	workDir     string
	debug       bool
	profileCPU  string
	profileHeap string

	loggingCleanup func()
	profile        *profiling.Session
}

// NewRootCmd creates the root command for the pagedex CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pagedex",
		Short: "Resumable PDF page extraction and sharded search index builder",
		Long: `pagedex turns a directory of PDF documents into a per-page text corpus
and a static full-text index split into bounded-size shards.

  pagedex extract   extract page text with pdfinfo/pdftotext (resumable)
  pagedex index     build the index from the record log and write shards
  pagedex verify    reassemble the shards and query the index
  pagedex status    show extraction and index progress`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("pagedex version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.workDir, "dir", "C", ".", "Working directory holding .pagedex.yaml and the default paths")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.pagedex/logs/")

	cmd.PersistentFlags().StringVar(&opts.profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profileHeap, "profile-mem", "", "Write heap profile to file on exit")

	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		session, err := profiling.Start(profiling.Options{CPUPath: opts.profileCPU, HeapPath: opts.profileHeap})
		if err != nil {
			return err
		}
		opts.profile = session
		return nil
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		if opts.profile != nil {
			if err := opts.profile.Stop(); err != nil {
				return err
			}
			opts.profile = nil
		}
		if opts.loggingCleanup != nil {
			slog.Debug("logging_stopped")
			opts.loggingCleanup()
			opts.loggingCleanup = nil
		}
		return nil
	}

	cmd.AddCommand(newExtractCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newVerifyCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newDoctorCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads the effective configuration for the working directory,
// resolves relative paths against it and installs the slog default logger.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	dir, err := o.absWorkDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, dexerrors.ConfigError(err.Error(), err).
			WithSuggestion("Check .pagedex.yaml, or run 'pagedex config show' to see the effective values")
	}
	cfg.Paths.Source = resolvePath(dir, cfg.Paths.Source)
	cfg.Paths.BuildDir = resolvePath(dir, cfg.Paths.BuildDir)
	cfg.Paths.IndexDir = resolvePath(dir, cfg.Paths.IndexDir)

	if err := o.setupLogging(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *rootOptions) absWorkDir() (string, error) {
	dir, err := filepath.Abs(o.workDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return dir, nil
}

func (o *rootOptions) setupLogging(cfg *config.Config) error {
	if o.loggingCleanup != nil {
		return nil
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.FilePath = cfg.Logging.File
	if o.debug {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)
	o.loggingCleanup = cleanup
	if o.debug {
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Version))
	}
	return nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func configFlagError(err error) error {
	return dexerrors.ConfigError(err.Error(), err).
		WithSuggestion("Check the command-line flags against 'pagedex config show'")
}
