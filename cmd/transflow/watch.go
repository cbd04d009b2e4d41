package main

import (
	"context"
	"errors"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nguyentantai21042004/transflow/internal/config"
	"github.com/nguyentantai21042004/transflow/internal/job"
	"github.com/nguyentantai21042004/transflow/internal/processor"
	"github.com/nguyentantai21042004/transflow/internal/watcher"
	"github.com/nguyentantai21042004/transflow/pkg/executor"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Translate every file dropped into the input folder",
		Long: `Watch paths.input and translate each supported file that appears there.
Finished inputs are moved to paths.archived. Ctrl+C waits for running jobs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), cfg)
		},
	}
}

func runWatch(ctx context.Context, cfg *config.Config) error {
	log := newLogger(cfg)
	log.Info(ctx, "========================================")
	log.Info(ctx, "transflow %s watch mode", version)
	log.Info(ctx, "========================================")
	log.Info(ctx, "System: %s/%s, CPU Cores: %d", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	log.Info(ctx, "Target language: %s, backend: %s", cfg.Translation.TargetLang, cfg.Translation.Backend)
	log.Info(ctx, "Max Concurrent Processing: %d", cfg.Performance.MaxConcurrent)

	if err := ensureDirectories(cfg.Paths.Input, cfg.Paths.Output, cfg.Paths.Archived, cfg.Paths.Temp); err != nil {
		return err
	}

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	jobs := job.NewManager(store, log)

	backends, err := processor.NewBackends(cfg, executor.New(), log)
	if err != nil {
		return err
	}
	proc := processor.New(cfg, backends, jobs, log)

	handler := func(ctx context.Context, path string) error {
		res, err := proc.Process(ctx, path)
		if res != nil {
			jobs.Forget(res.JobID)
		}
		if err != nil {
			return err
		}
		return proc.Archive(ctx, path)
	}

	w, err := watcher.New(cfg.Paths.Input, handler, log, cfg.Performance.MaxConcurrent, watcher.DefaultSettle)
	if err != nil {
		return err
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info(ctx, "Monitoring: %s", cfg.Paths.Input)
	log.Info(ctx, "Output: %s", cfg.Paths.Output)
	log.Info(ctx, "Press Ctrl+C to stop")

	err = w.Start(ctx)
	log.Info(ctx, "Shutting down gracefully...")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
