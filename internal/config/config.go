package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Translation TranslationConfig `yaml:"translation"`
	Whisper     WhisperConfig     `yaml:"whisper"`
	Synthesis   SynthesisConfig   `yaml:"synthesis"`
	FFmpeg      FFmpegConfig      `yaml:"ffmpeg"`
	Subtitles   SubtitlesConfig   `yaml:"subtitles"`
	Transcript  TranscriptConfig  `yaml:"transcript"`
	History     HistoryConfig     `yaml:"history"`
	Paths       PathsConfig       `yaml:"paths"`
	Logging     LoggingConfig     `yaml:"logging"`
	Performance PerformanceConfig `yaml:"performance"`
}

type TranslationConfig struct {
	Backend        string        `yaml:"backend"`
	SourceLang     string        `yaml:"source_lang"`
	TargetLang     string        `yaml:"target_lang"`
	Concurrency    int           `yaml:"concurrency"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	FailClosed     bool          `yaml:"fail_closed"`
	Ollama         OllamaConfig  `yaml:"ollama"`
	OpenAI         OpenAIConfig  `yaml:"openai"`
	Gemini         GeminiConfig  `yaml:"gemini"`
}

type OllamaConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type GeminiConfig struct {
	APIKeys []string `yaml:"api_keys"`
	Model   string   `yaml:"model"`
}

type WhisperConfig struct {
	Mode       string `yaml:"mode"`
	BinaryPath string `yaml:"binary_path"`
	ModelPath  string `yaml:"model_path"`
	ServerURL  string `yaml:"server_url"`
	Language   string `yaml:"language"`
	Prompt     string `yaml:"prompt"`
	Threads    int    `yaml:"threads"`
}

type SynthesisConfig struct {
	Enabled            bool    `yaml:"enabled"`
	ServerURL          string  `yaml:"server_url"`
	Speaker            string  `yaml:"speaker"`
	PerSegmentFallback bool    `yaml:"per_segment_fallback"`
	Concurrency        int     `yaml:"concurrency"`
	MaxStretch         float64 `yaml:"max_stretch"`
}

type FFmpegConfig struct {
	Binary string `yaml:"binary"`
}

type SubtitlesConfig struct {
	Format string `yaml:"format"`
}

type TranscriptConfig struct {
	DOCX bool `yaml:"docx"`
}

type HistoryConfig struct {
	DBPath string `yaml:"db_path"`
}

type PathsConfig struct {
	Input    string `yaml:"input"`
	Output   string `yaml:"output"`
	Archived string `yaml:"archived"`
	Temp     string `yaml:"temp"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PerformanceConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}

// Load reads a YAML config file, applies environment overrides and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default returns a validated config with every default applied, plus
// environment overrides.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("OLLAMA_URL", &c.Translation.Ollama.URL)
	str("OLLAMA_MODEL", &c.Translation.Ollama.Model)
	str("TRANSLATION_BACKEND", &c.Translation.Backend)
	str("TARGET_LANGUAGE", &c.Translation.TargetLang)
	str("OPENAI_API_KEY", &c.Translation.OpenAI.APIKey)
	str("WHISPER_MODEL", &c.Whisper.ModelPath)
	str("TTS_URL", &c.Synthesis.ServerURL)
	str("UPLOAD_DIR", &c.Paths.Input)
	str("OUTPUT_DIR", &c.Paths.Output)

	if v, ok := lookup("TRANSLATION_CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRANSLATION_CONCURRENCY: %w", err)
		}
		c.Translation.Concurrency = n
	}
	if v, ok := lookup("GEMINI_API_KEYS"); ok && v != "" {
		c.Translation.Gemini.APIKeys = nil
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				c.Translation.Gemini.APIKeys = append(c.Translation.Gemini.APIKeys, k)
			}
		}
	}
	return nil
}

func (c *Config) Validate() error {
	t := &c.Translation

	if t.Backend == "" {
		t.Backend = "ollama"
	}
	switch t.Backend {
	case "ollama", "openai", "gemini":
	default:
		return fmt.Errorf("translation.backend %q is not one of ollama, openai, gemini", t.Backend)
	}
	if t.TargetLang == "" {
		t.TargetLang = "fr"
	}
	if _, err := language.Parse(t.TargetLang); err != nil {
		return fmt.Errorf("translation.target_lang %q: %w", t.TargetLang, err)
	}
	if t.SourceLang == "" {
		t.SourceLang = "en"
	}
	if t.SourceLang != "auto" {
		if _, err := language.Parse(t.SourceLang); err != nil {
			return fmt.Errorf("translation.source_lang %q: %w", t.SourceLang, err)
		}
	}
	if t.Concurrency < 0 {
		return fmt.Errorf("translation.concurrency must be positive")
	}
	if t.Concurrency == 0 {
		t.Concurrency = 5
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("translation.max_retries must not be negative")
	}
	if t.MaxRetries == 0 {
		t.MaxRetries = 2
	}
	if t.RetryDelay == 0 {
		t.RetryDelay = time.Second
	}
	if t.RequestTimeout == 0 {
		t.RequestTimeout = 300 * time.Second
	}
	if t.Ollama.URL == "" {
		t.Ollama.URL = "http://localhost:11434"
	}
	if t.Ollama.Model == "" {
		t.Ollama.Model = "mistral:7b"
	}
	if t.OpenAI.BaseURL == "" {
		t.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if t.OpenAI.Model == "" {
		t.OpenAI.Model = "gpt-4o-mini"
	}
	if t.Gemini.Model == "" {
		t.Gemini.Model = "gemini-2.5-flash"
	}
	if t.Backend == "gemini" && len(t.Gemini.APIKeys) == 0 {
		return fmt.Errorf("translation.gemini.api_keys is required for the gemini backend")
	}
	if t.Backend == "openai" && t.OpenAI.APIKey == "" {
		return fmt.Errorf("translation.openai.api_key is required for the openai backend")
	}

	w := &c.Whisper
	if w.Mode == "" {
		w.Mode = "cli"
	}
	if w.Mode != "cli" && w.Mode != "server" {
		return fmt.Errorf("whisper.mode %q is not one of cli, server", w.Mode)
	}
	if w.BinaryPath == "" {
		w.BinaryPath = "whisper-cli"
	}
	if w.ModelPath == "" {
		w.ModelPath = "models/ggml-medium.bin"
	}
	if w.ServerURL == "" {
		w.ServerURL = "http://localhost:8080"
	}
	if w.Language == "" {
		w.Language = "auto"
	}
	if w.Threads == 0 {
		w.Threads = 8
	}

	s := &c.Synthesis
	if s.ServerURL == "" {
		s.ServerURL = "http://localhost:5002"
	}
	if s.Concurrency == 0 {
		s.Concurrency = 2
	}
	if s.MaxStretch == 0 {
		s.MaxStretch = 1.5
	}
	if s.MaxStretch < 1 {
		return fmt.Errorf("synthesis.max_stretch must be at least 1")
	}

	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = "ffmpeg"
	}
	if c.Subtitles.Format == "" {
		c.Subtitles.Format = "srt"
	}
	if c.Subtitles.Format != "srt" && c.Subtitles.Format != "vtt" {
		return fmt.Errorf("subtitles.format %q is not one of srt, vtt", c.Subtitles.Format)
	}

	if c.Paths.Input == "" {
		c.Paths.Input = "data/input"
	}
	if c.Paths.Output == "" {
		c.Paths.Output = "data/output"
	}
	if c.Paths.Archived == "" {
		c.Paths.Archived = "data/archived"
	}
	if c.Paths.Temp == "" {
		c.Paths.Temp = "data/temp"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Performance.MaxConcurrent == 0 {
		c.Performance.MaxConcurrent = 2
	}

	return nil
}
