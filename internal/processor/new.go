package processor

import (
	"fmt"

	"github.com/nguyentantai21042004/transflow/internal/audio"
	"github.com/nguyentantai21042004/transflow/internal/config"
	"github.com/nguyentantai21042004/transflow/internal/dispatch"
	"github.com/nguyentantai21042004/transflow/internal/format"
	"github.com/nguyentantai21042004/transflow/internal/job"
	"github.com/nguyentantai21042004/transflow/internal/logger"
	"github.com/nguyentantai21042004/transflow/internal/translate"
	"github.com/nguyentantai21042004/transflow/pkg/executor"
)

// Backends are the external services a processor talks to.
type Backends struct {
	Translator  translate.Translator
	Transcriber audio.Transcriber
	// Synthesizer is nil when synthesis is disabled.
	Synthesizer audio.Synthesizer
	Media       audio.MediaTool
}

// NewBackends builds the backends selected by cfg.
func NewBackends(cfg *config.Config, exec executor.Executor, log logger.Logger) (Backends, error) {
	tr, err := translate.New(cfg.Translation, log)
	if err != nil {
		return Backends{}, fmt.Errorf("translation backend: %w", err)
	}

	media := audio.NewMedia(exec, cfg.FFmpeg.Binary, log)
	b := Backends{Translator: tr, Media: media}

	switch cfg.Whisper.Mode {
	case "server":
		b.Transcriber = audio.NewWhisperServer(cfg.Whisper.ServerURL, log)
	default:
		b.Transcriber = audio.NewWhisperCLI(audio.WhisperCLIOptions{
			BinaryPath: cfg.Whisper.BinaryPath,
			ModelPath:  cfg.Whisper.ModelPath,
			Prompt:     cfg.Whisper.Prompt,
			Threads:    cfg.Whisper.Threads,
			TempDir:    cfg.Paths.Temp,
		}, media, exec, log)
	}

	if cfg.Synthesis.Enabled {
		b.Synthesizer = audio.NewCoqui(cfg.Synthesis.ServerURL)
	}
	return b, nil
}

type implProcessor struct {
	cfg         *config.Config
	formats     format.Registry
	dispatcher  *dispatch.Dispatcher
	transcriber audio.Transcriber
	aligner     *audio.Aligner
	jobs        *job.Manager
	logger      logger.Logger
}

// New creates a Processor. Jobs are registered in jobs for status polling.
func New(cfg *config.Config, b Backends, jobs *job.Manager, log logger.Logger) Processor {
	t := cfg.Translation
	return &implProcessor{
		cfg:     cfg,
		formats: format.NewRegistry(),
		dispatcher: dispatch.New(b.Translator, dispatch.Options{
			Concurrency: t.Concurrency,
			MaxRetries:  t.MaxRetries,
			RetryDelay:  t.RetryDelay,
			Timeout:     t.RequestTimeout,
			SourceLang:  t.SourceLang,
			TargetLang:  t.TargetLang,
		}, log),
		transcriber: b.Transcriber,
		aligner: audio.NewAligner(b.Synthesizer, b.Media, audio.AlignerOptions{
			Speaker:            cfg.Synthesis.Speaker,
			PerSegmentFallback: cfg.Synthesis.PerSegmentFallback,
			Concurrency:        cfg.Synthesis.Concurrency,
			MaxStretch:         cfg.Synthesis.MaxStretch,
			SubtitleFormat:     cfg.Subtitles.Format,
			TempDir:            cfg.Paths.Temp,
		}, log),
		jobs:   jobs,
		logger: log,
	}
}
