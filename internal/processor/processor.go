package processor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/nguyentantai21042004/transflow/internal/audio"
	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/format"
	"github.com/nguyentantai21042004/transflow/internal/job"
	"github.com/nguyentantai21042004/transflow/internal/storage"
	"github.com/nguyentantai21042004/transflow/internal/transcript"
)

// Process runs the whole pipeline for one file: detect, extract, translate,
// then reconstruct the document or align the audio.
func (p *implProcessor) Process(ctx context.Context, path string) (*Result, error) {
	startTime := time.Now()

	p.logger.Info(ctx, "========================================")
	p.logger.Info(ctx, "Starting translation: %s -> %s", path, p.cfg.Translation.TargetLang)
	p.logger.Info(ctx, "========================================")

	// Step 1: Open and detect
	src, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	kind, err := format.Detect(src)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	j, jobCtx := p.jobs.Create(ctx, kind, path, p.cfg.Translation.FailClosed)
	res := &Result{JobID: j.ID, Kind: kind}

	// Steps 2-4 differ per kind
	if kind == domain.KindAudio {
		err = p.processAudio(jobCtx, j, path, res)
	} else {
		err = p.processDocument(jobCtx, j, src, kind, res)
	}

	res.Snapshot = p.jobs.Finish(jobCtx, j, strings.Join(res.Outputs(), ","), err)
	if err != nil {
		p.logger.Error(jobCtx, "Job failed after %s: %v", time.Since(startTime).Round(time.Millisecond), err)
		return res, err
	}

	counts := res.Snapshot.Counts
	p.logger.Info(jobCtx, "========================================")
	p.logger.Info(jobCtx, "Translation completed: %d/%d units translated", counts[domain.UnitDone], res.Snapshot.Total)
	for _, out := range res.Outputs() {
		p.logger.Info(jobCtx, "Output: %s", out)
	}
	p.logger.Info(jobCtx, "Processing time: %s", time.Since(startTime).Round(time.Millisecond))
	p.logger.Info(jobCtx, "========================================")
	return res, nil
}

func (p *implProcessor) processDocument(ctx context.Context, j *job.Job, src domain.Source, kind domain.Kind, res *Result) error {
	codec, err := p.formats.For(kind)
	if err != nil {
		return err
	}

	// Step 2: Extract blocks
	ext, err := codec.Extract(ctx, src)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	p.logger.Info(ctx, "Extracted %d blocks from %s", len(ext.Blocks), kind)
	j.Load(ext.Blocks)

	// Step 3: Translate
	if err := p.dispatcher.Run(ctx, j); err != nil {
		return fmt.Errorf("translate: %w", err)
	}

	// Step 4: Reconstruct into the output folder
	out := filepath.Join(p.cfg.Paths.Output, format.OutputName(src.Name(), p.cfg.Translation.TargetLang))
	err = storage.WriteAtomic(ctx, out, func(w io.Writer) error {
		return codec.Reconstruct(ctx, src, ext.Map, ext.Blocks, w)
	})
	if err != nil {
		return fmt.Errorf("reconstruct: %w", err)
	}
	res.Output = out
	return nil
}

func (p *implProcessor) processAudio(ctx context.Context, j *job.Job, path string, res *Result) error {
	target := p.cfg.Translation.TargetLang

	// Step 2: Transcribe into timed segments
	segs, err := p.transcriber.Transcribe(ctx, path, p.cfg.Whisper.Language)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	p.logger.Info(ctx, "Transcribed %d segments", len(segs))
	j.Load(domain.SegmentBlocks(segs))

	// Step 3: Translate
	if err := p.dispatcher.Run(ctx, j); err != nil {
		return fmt.Errorf("translate: %w", err)
	}

	// Step 4: Synthesize and align, or fall back to subtitles
	base := filepath.Base(path)
	subName := strings.TrimSuffix(base, filepath.Ext(base)) + "." + p.cfg.Subtitles.Format
	aligned, err := p.aligner.Align(ctx, audio.Input{
		MediaPath:    path,
		Segments:     segs,
		TargetLang:   target,
		AudioPath:    filepath.Join(p.cfg.Paths.Output, format.OutputName(path, target)),
		SubtitlePath: filepath.Join(p.cfg.Paths.Output, format.OutputName(subName, target)),
	})
	if err != nil {
		return fmt.Errorf("align: %w", err)
	}
	res.Mode = aligned.Mode
	res.Output = aligned.AudioPath
	res.SubtitlePath = aligned.SubtitlePath
	res.Segments = aligned.Segments
	res.Fallback = aligned.Fallback
	if aligned.Fallback != nil {
		p.logger.Warn(ctx, "Audio job fell back to %s: %v", aligned.Mode, aligned.Fallback)
	}

	// Step 5: Optional bilingual transcript
	if p.cfg.Transcript.DOCX {
		tp := filepath.Join(p.cfg.Paths.Output, transcript.Name(path, target))
		if err := transcript.Write(ctx, tp, base, segs); err != nil {
			p.logger.Warn(ctx, "Failed to write transcript: %v", err)
		} else {
			res.Transcript = tp
		}
	}
	return nil
}
