// transflow translates documents and audio while keeping their layout and
// timing.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nguyentantai21042004/transflow/internal/config"
	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/job"
	"github.com/nguyentantai21042004/transflow/internal/logger"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultConfigPath = "config.yaml"

var (
	configPath string
	logLevel   string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "transflow",
		Short: "Translate PDF, DOCX, PPTX and audio while keeping structure",
		Long: `transflow translates documents block by block and audio segment by segment.

Every translated block is written back where its source came from, so the
output keeps the layout of a document or the timing of a recording.

Commands:
  translate   Translate one file
  watch       Translate every file dropped into the input folder
  history     List recorded job outcomes
  version     Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to the YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newTranslateCmd(),
		newWatchCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the error kind to a process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrExtraction):
		return 2
	case errors.Is(err, domain.ErrTranslationUnit):
		return 3
	case errors.Is(err, domain.ErrReconstruction):
		return 4
	case errors.Is(err, domain.ErrBackendUnavailable):
		return 5
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("transflow version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
			fmt.Printf("  platform:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// loadConfig reads --config. A missing default file means built-in defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if _, statErr := os.Stat(configPath); errors.Is(statErr, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logger.Logger {
	return logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
}

// openHistory returns the sqlite store, or nil when history is disabled.
func openHistory(cfg *config.Config) (job.Store, error) {
	if cfg.History.DBPath == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.History.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return job.NewSQLiteStore(cfg.History.DBPath)
}

// ensureDirectories creates required directories if they don't exist
func ensureDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
