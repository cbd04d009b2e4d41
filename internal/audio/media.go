package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nguyentantai21042004/transflow/internal/logger"
	"github.com/nguyentantai21042004/transflow/pkg/executor"
)

// atempo accepts factors in [0.5, 2].
const maxAtempo = 2.0

var videoContainers = map[string]bool{".mp4": true, ".mkv": true, ".mov": true, ".avi": true, ".webm": true}

// Media wraps the ffmpeg and ffprobe binaries.
type Media struct {
	ffmpeg   string
	ffprobe  string
	executor executor.Executor
	logger   logger.Logger
}

// NewMedia uses ffmpegBin and the ffprobe next to it.
func NewMedia(exec executor.Executor, ffmpegBin string, log logger.Logger) *Media {
	probe := "ffprobe"
	if dir := filepath.Dir(ffmpegBin); dir != "." {
		probe = filepath.Join(dir, "ffprobe")
	}
	return &Media{ffmpeg: ffmpegBin, ffprobe: probe, executor: exec, logger: log}
}

// ExtractWAV converts any audio or video input to 16 kHz mono PCM for
// whisper.
func (m *Media) ExtractWAV(ctx context.Context, in, out string) error {
	m.logger.Info(ctx, "Extracting audio: %s", in)

	// -vn drops video, -ar/-ac give 16 kHz mono, -threads 0 uses every core.
	args := []string{
		"-i", in,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-threads", "0",
		"-y",
		out,
	}
	if _, err := m.executor.Execute(ctx, m.ffmpeg, args...); err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w", err)
	}
	return nil
}

// Duration probes the container length in seconds.
func (m *Media) Duration(ctx context.Context, path string) (float64, error) {
	out, err := m.executor.Execute(ctx, m.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(out), err)
	}
	return d, nil
}

// Stretch speeds in up by ratio without changing pitch.
func (m *Media) Stretch(ctx context.Context, in, out string, ratio float64) error {
	args := []string{"-i", in, "-filter:a", atempoChain(ratio), "-y", out}
	if _, err := m.executor.Execute(ctx, m.ffmpeg, args...); err != nil {
		return fmt.Errorf("ffmpeg atempo: %w", err)
	}
	return nil
}

// atempoChain splits ratio into factors atempo accepts.
func atempoChain(ratio float64) string {
	var parts []string
	for ratio > maxAtempo {
		parts = append(parts, "atempo=2.0")
		ratio /= maxAtempo
	}
	parts = append(parts, "atempo="+strconv.FormatFloat(ratio, 'f', 4, 64))
	return strings.Join(parts, ",")
}

// Encode writes track to out in the container of out. A video source keeps
// its video stream and gets track as its only audio stream.
func (m *Media) Encode(ctx context.Context, track, source, out string) error {
	var args []string
	if videoContainers[strings.ToLower(filepath.Ext(source))] {
		args = []string{
			"-i", source,
			"-i", track,
			"-map", "0:v",
			"-map", "1:a",
			"-c:v", "copy",
			"-shortest",
			"-y",
			out,
		}
	} else {
		args = []string{"-i", track, "-vn", "-y", out}
	}

	m.logger.Debug(ctx, "ffmpeg %s", strings.Join(args, " "))
	if _, err := m.executor.Execute(ctx, m.ffmpeg, args...); err != nil {
		return fmt.Errorf("ffmpeg encode output: %w", err)
	}
	return nil
}
