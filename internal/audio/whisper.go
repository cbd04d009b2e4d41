package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/logger"
	"github.com/nguyentantai21042004/transflow/pkg/executor"
)

// WhisperCLIOptions configures the whisper.cpp command line.
type WhisperCLIOptions struct {
	BinaryPath string
	ModelPath  string
	Prompt     string
	Threads    int
	TempDir    string
}

// WhisperCLI transcribes through the whisper.cpp binary.
type WhisperCLI struct {
	opts     WhisperCLIOptions
	media    *Media
	executor executor.Executor
	logger   logger.Logger
}

func NewWhisperCLI(opts WhisperCLIOptions, media *Media, exec executor.Executor, log logger.Logger) *WhisperCLI {
	return &WhisperCLI{opts: opts, media: media, executor: exec, logger: log}
}

// Transcribe converts path to 16 kHz mono WAV, runs whisper with SRT output
// and reads the cues back.
func (w *WhisperCLI) Transcribe(ctx context.Context, path, lang string) ([]domain.Segment, error) {
	if _, err := w.executor.LookPath(w.opts.BinaryPath); err != nil {
		return nil, domain.BackendUnavailable("whisper", err)
	}

	dir, err := os.MkdirTemp(w.opts.TempDir, "whisper-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	wavPath := filepath.Join(dir, "audio.wav")
	if err := w.media.ExtractWAV(ctx, path, wavPath); err != nil {
		return nil, domain.ExtractionFailed("decode audio", path, err)
	}

	if lang == "" {
		lang = "auto"
	}
	prefix := filepath.Join(dir, "audio")
	w.logger.Info(ctx, "Starting transcription with %d threads: %s", w.opts.Threads, path)

	// -ml 0 and -mc 0 lift the segment length and context limits, -bo 5 is best of five.
	args := []string{
		"-m", w.opts.ModelPath,
		"-f", wavPath,
		"-osrt",
		"-l", lang,
		"-t", strconv.Itoa(w.opts.Threads),
		"-ml", "0",
		"-mc", "0",
		"-bo", "5",
		"--output-file", prefix,
	}
	if w.opts.Prompt != "" {
		args = append(args, "--prompt", w.opts.Prompt)
	}
	if _, err := w.executor.Execute(ctx, w.opts.BinaryPath, args...); err != nil {
		return nil, domain.ExtractionFailed("transcribe", path, err)
	}

	f, err := os.Open(prefix + ".srt")
	if err != nil {
		return nil, domain.ExtractionFailed("read transcript", path, err)
	}
	defer f.Close()
	return segmentsFrom(f, path, lang)
}

func segmentsFrom(r io.Reader, path, lang string) ([]domain.Segment, error) {
	cues, err := ParseCues(r)
	if err != nil {
		return nil, domain.ExtractionFailed("parse transcript", path, err)
	}
	segs := Segments(cues, lang)
	if len(segs) == 0 {
		return nil, domain.Extractionf(path, "no speech found")
	}
	return segs, nil
}

// WhisperServer transcribes through a whisper.cpp server's /inference endpoint.
type WhisperServer struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

func NewWhisperServer(baseURL string, log logger.Logger) *WhisperServer {
	return &WhisperServer{baseURL: strings.TrimRight(baseURL, "/"), client: &http.Client{}, logger: log}
}

// Transcribe uploads path and asks for a VTT response.
func (w *WhisperServer) Transcribe(ctx context.Context, path, lang string) ([]domain.Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.ExtractionFailed("open", path, err)
	}
	defer f.Close()

	if lang == "" {
		lang = "auto"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	fields := map[string]string{"response_format": "vtt", "language": lang, "temperature": "0.0"}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("build upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w.logger.Info(ctx, "Uploading %s to whisper server %s", filepath.Base(path), w.baseURL)
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, domain.BackendUnavailable("whisper server", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 500 {
			return nil, domain.BackendUnavailable("whisper server", err)
		}
		return nil, domain.ExtractionFailed("transcribe", path, err)
	}
	return segmentsFrom(resp.Body, path, lang)
}
