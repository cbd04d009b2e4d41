package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/logger"
	"github.com/nguyentantai21042004/transflow/internal/storage"
)

// Mode says what an aligned job produced.
type Mode string

const (
	ModeAudio     Mode = "audio"
	ModeSubtitles Mode = "subtitles"
	ModeMixed     Mode = "mixed"
)

// defaultRate is used when no clip was synthesized.
const defaultRate = 22050

// AlignerOptions configures synthesis and fallback.
type AlignerOptions struct {
	Speaker            string
	PerSegmentFallback bool
	Concurrency        int
	MaxStretch         float64
	SubtitleFormat     string
	TempDir            string
}

// Input is one translated audio job.
type Input struct {
	MediaPath  string
	Segments   []domain.Segment
	TargetLang string
	// AudioPath receives the dubbed track, in the container its extension names.
	AudioPath string
	// SubtitlePath receives subtitles for segments that were not synthesized.
	SubtitlePath string
}

// SegmentResult is the final state of one segment.
type SegmentResult struct {
	ID    string
	State domain.SegmentState
	Error string
}

// Result tells the caller which outputs exist.
type Result struct {
	Mode         Mode
	AudioPath    string
	SubtitlePath string
	Segments     []SegmentResult
	// Fallback is why synthesis was skipped for the whole job, if it was.
	Fallback error
}

// Aligner places synthesized speech at each segment's original time, or
// falls back to subtitles.
type Aligner struct {
	synth  Synthesizer
	media  MediaTool
	opts   AlignerOptions
	logger logger.Logger
}

// NewAligner builds an aligner. synth may be nil when synthesis is disabled.
func NewAligner(synth Synthesizer, media MediaTool, opts AlignerOptions, log logger.Logger) *Aligner {
	if opts.MaxStretch < 1 {
		opts.MaxStretch = 1
	}
	if opts.SubtitleFormat == "" {
		opts.SubtitleFormat = FormatSRT
	}
	return &Aligner{synth: synth, media: media, opts: opts, logger: log}
}

type synthesized struct {
	clip Clip
	err  error
}

// Align produces a dubbed track, subtitles, or both.
func (a *Aligner) Align(ctx context.Context, in Input) (*Result, error) {
	states := make([]domain.SegmentState, len(in.Segments))
	for i := range states {
		states[i] = domain.SegmentTranslated
	}

	if err := a.available(ctx); err != nil {
		a.logger.Warn(ctx, "Synthesis unavailable, writing subtitles only: %v", err)
		return a.subtitlesOnly(ctx, in, err)
	}

	clips := a.synthesize(ctx, in)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var failed int
	for i, c := range clips {
		if c.err != nil {
			failed++
			a.logger.Warn(ctx, "Synthesis failed for %s: %v", in.Segments[i].ID, c.err)
		}
	}
	if failed == len(clips) {
		return a.subtitlesOnly(ctx, in, domain.BackendUnavailable("synthesis", fmt.Errorf("all %d segments failed", failed)))
	}
	if failed > 0 && !a.opts.PerSegmentFallback {
		return a.subtitlesOnly(ctx, in, fmt.Errorf("%d of %d segments failed synthesis", failed, len(clips)))
	}

	dir, err := os.MkdirTemp(a.opts.TempDir, "align-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	track, err := a.track(ctx, in, clips, dir)
	if err != nil {
		return nil, err
	}

	res := &Result{Mode: ModeAudio}
	var subtitled []domain.Segment
	for i, c := range clips {
		if c.err != nil {
			states[i] = domain.SegmentSubtitleEmitted
			subtitled = append(subtitled, in.Segments[i])
			continue
		}
		states[i] = domain.SegmentSynthesized
	}

	if err := a.writeTrack(ctx, in, track, dir); err != nil {
		return nil, err
	}
	res.AudioPath = in.AudioPath

	if len(subtitled) > 0 {
		if err := a.writeSubtitles(ctx, in.SubtitlePath, subtitled); err != nil {
			return nil, err
		}
		res.Mode = ModeMixed
		res.SubtitlePath = in.SubtitlePath
	}
	res.Segments = results(in.Segments, states, clips)
	return res, nil
}

func (a *Aligner) available(ctx context.Context) error {
	if a.synth == nil {
		return domain.BackendUnavailable("synthesis", errors.New("no synthesizer configured"))
	}
	if err := a.synth.Available(ctx); err != nil {
		return domain.BackendUnavailable("synthesis", err)
	}
	return nil
}

// synthesize requests every segment with at most Concurrency calls in flight.
func (a *Aligner) synthesize(ctx context.Context, in Input) []synthesized {
	out := make([]synthesized, len(in.Segments))
	sem := newSemaphore(a.opts.Concurrency)
	var wg sync.WaitGroup

	for i := range in.Segments {
		if err := sem.acquire(ctx); err != nil {
			for j := i; j < len(out); j++ {
				out[j].err = err
			}
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.release()
			seg := &in.Segments[i]
			clip, err := a.synth.Synthesize(ctx, SynthesisRequest{
				Text:     seg.Output(),
				Lang:     in.TargetLang,
				Speaker:  a.opts.Speaker,
				Duration: seg.Duration(),
			})
			out[i] = synthesized{clip: clip, err: err}
		}(i)
	}
	wg.Wait()
	return out
}

// track builds the full-length dubbed track at the rate of the first clip.
func (a *Aligner) track(ctx context.Context, in Input, clips []synthesized, dir string) (Clip, error) {
	rate := defaultRate
	for _, c := range clips {
		if c.err == nil && c.clip.Rate > 0 {
			rate = c.clip.Rate
			break
		}
	}

	length := 0.0
	for _, s := range in.Segments {
		length = math.Max(length, s.End)
	}
	if d, err := a.media.Duration(ctx, in.MediaPath); err == nil {
		length = math.Max(length, d)
	} else {
		a.logger.Warn(ctx, "Could not probe duration of %s, using last segment end: %v", in.MediaPath, err)
	}

	track := Silence(rate, length)
	for i, c := range clips {
		if c.err != nil {
			continue
		}
		seg := in.Segments[i]
		clip, err := a.fit(ctx, c.clip.Resample(rate), seg, dir)
		if err != nil {
			return Clip{}, err
		}
		track.Overlay(clip, seg.Start)
	}
	return track, nil
}

// fit stretches a clip that overruns its window when the ratio allows, then
// trims or pads it to the window.
func (a *Aligner) fit(ctx context.Context, clip Clip, seg domain.Segment, dir string) (Clip, error) {
	window := seg.Duration()
	ratio := clip.Duration() / window
	if ratio > 1 && ratio <= a.opts.MaxStretch {
		in := filepath.Join(dir, seg.ID+".wav")
		out := filepath.Join(dir, seg.ID+"_stretched.wav")
		if err := WriteWAV(in, clip); err != nil {
			return Clip{}, err
		}
		if err := a.media.Stretch(ctx, in, out, ratio); err != nil {
			a.logger.Warn(ctx, "Stretch failed for %s, trimming instead: %v", seg.ID, err)
		} else {
			stretched, err := ReadWAV(out)
			if err != nil {
				return Clip{}, fmt.Errorf("read stretched clip: %w", err)
			}
			clip = stretched.Resample(clip.Rate)
		}
	} else if ratio > a.opts.MaxStretch {
		a.logger.Debug(ctx, "Clip for %s is %.2fx its window, trimming", seg.ID, ratio)
	}
	return clip.Fit(window), nil
}

// writeTrack writes WAV directly and hands other containers to the media tool.
func (a *Aligner) writeTrack(ctx context.Context, in Input, track Clip, dir string) error {
	wavPath := filepath.Join(dir, "track.wav")
	if err := WriteWAV(wavPath, track); err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(in.AudioPath), ".wav") {
		return storage.Move(ctx, wavPath, in.AudioPath)
	}

	encoded := filepath.Join(dir, "encoded"+filepath.Ext(in.AudioPath))
	if err := a.media.Encode(ctx, wavPath, in.MediaPath, encoded); err != nil {
		return err
	}
	return storage.Move(ctx, encoded, in.AudioPath)
}

func (a *Aligner) writeSubtitles(ctx context.Context, path string, segs []domain.Segment) error {
	return storage.WriteAtomic(ctx, path, func(w io.Writer) error {
		return WriteSubtitles(w, a.opts.SubtitleFormat, segs)
	})
}

func (a *Aligner) subtitlesOnly(ctx context.Context, in Input, cause error) (*Result, error) {
	if err := a.writeSubtitles(ctx, in.SubtitlePath, in.Segments); err != nil {
		return nil, err
	}
	states := make([]domain.SegmentState, len(in.Segments))
	for i := range states {
		states[i] = domain.SegmentSubtitleEmitted
	}
	return &Result{
		Mode:         ModeSubtitles,
		SubtitlePath: in.SubtitlePath,
		Segments:     results(in.Segments, states, nil),
		Fallback:     cause,
	}, nil
}

func results(segs []domain.Segment, states []domain.SegmentState, clips []synthesized) []SegmentResult {
	out := make([]SegmentResult, len(segs))
	for i, s := range segs {
		out[i] = SegmentResult{ID: s.ID, State: states[i]}
		if clips != nil && clips[i].err != nil {
			out[i].Error = clips[i].err.Error()
		}
	}
	return out
}
