package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nguyentantai21042004/transflow/internal/config"
	"github.com/nguyentantai21042004/transflow/internal/job"
	"github.com/nguyentantai21042004/transflow/internal/processor"
	"github.com/nguyentantai21042004/transflow/pkg/executor"
)

type translateFlags struct {
	target             string
	source             string
	concurrency        int
	out                string
	failClosed         bool
	perSegmentFallback bool
}

func newTranslateCmd() *cobra.Command {
	var f translateFlags

	cmd := &cobra.Command{
		Use:   "translate FILE",
		Short: "Translate one file",
		Long: `Translate a PDF, DOCX, PPTX, audio or video file.

Documents are rebuilt with every block in place. Audio is transcribed,
translated and either dubbed or written as subtitles when synthesis is not
available.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			return runTranslate(cmd.Context(), cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&f.target, "target", "", "Target language (BCP 47)")
	cmd.Flags().StringVar(&f.source, "source", "", "Source language (BCP 47 or auto)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "Concurrent translation requests")
	cmd.Flags().StringVar(&f.out, "out", "", "Output directory")
	cmd.Flags().BoolVar(&f.failClosed, "fail-closed", false, "Fail the job when any block cannot be translated")
	cmd.Flags().BoolVar(&f.perSegmentFallback, "per-segment-fallback", false, "Subtitle only the audio segments whose synthesis failed")
	return cmd
}

// apply overrides cfg with the flags that were set and revalidates it.
func (f *translateFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("target") {
		cfg.Translation.TargetLang = f.target
	}
	if flags.Changed("source") {
		cfg.Translation.SourceLang = f.source
	}
	if flags.Changed("concurrency") {
		cfg.Translation.Concurrency = f.concurrency
	}
	if flags.Changed("out") {
		cfg.Paths.Output = f.out
	}
	if flags.Changed("fail-closed") {
		cfg.Translation.FailClosed = f.failClosed
	}
	if flags.Changed("per-segment-fallback") {
		cfg.Synthesis.PerSegmentFallback = f.perSegmentFallback
	}
	return cfg.Validate()
}

func runTranslate(ctx context.Context, cfg *config.Config, path string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := newLogger(cfg)
	if err := ensureDirectories(cfg.Paths.Output, cfg.Paths.Temp); err != nil {
		return err
	}

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	jobs := job.NewManager(store, log)
	if store != nil {
		defer store.Close()
	}

	backends, err := processor.NewBackends(cfg, executor.New(), log)
	if err != nil {
		return err
	}
	proc := processor.New(cfg, backends, jobs, log)

	done := make(chan struct{})
	go reportProgress(jobs, done)
	res, err := proc.Process(ctx, path)
	close(done)
	if err != nil {
		return err
	}

	fmt.Printf("Job %s: %s\n", res.JobID, res.Snapshot.Status)
	if res.Mode != "" {
		fmt.Printf("  mode:       %s\n", res.Mode)
	}
	if res.Output != "" {
		fmt.Printf("  output:     %s\n", res.Output)
	}
	if res.SubtitlePath != "" {
		fmt.Printf("  subtitles:  %s\n", res.SubtitlePath)
	}
	if res.Transcript != "" {
		fmt.Printf("  transcript: %s\n", res.Transcript)
	}
	if res.Fallback != nil {
		fmt.Printf("  fallback:   %v\n", res.Fallback)
	}
	return nil
}

// reportProgress prints the running job's unit counts every second.
func reportProgress(jobs *job.Manager, done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for _, snap := range jobs.List() {
				if snap.Status != job.StatusRunning || snap.Total == 0 {
					continue
				}
				fmt.Fprintln(os.Stderr, progressLine(snap))
			}
		}
	}
}

func progressLine(snap job.Snapshot) string {
	terminal := int(snap.Progress*float64(snap.Total) + 0.5)
	return fmt.Sprintf("[%s] %d/%d units (%.0f%%)", snap.Kind, terminal, snap.Total, snap.Progress*100)
}
