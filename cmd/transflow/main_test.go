package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/job"
)

func TestExitCode(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "extraction", err: fmt.Errorf("detect: %w", domain.ExtractionFailed("open", "a", cause)), want: 2},
		{name: "unit", err: domain.TranslationUnit("b", cause), want: 3},
		{name: "reconstruction", err: domain.Reconstruction("write", cause), want: 4},
		{name: "backend", err: domain.BackendUnavailable("ollama", cause), want: 5},
		{name: "cancelled", err: fmt.Errorf("translate: %w", context.Canceled), want: 130},
		{name: "other", err: cause, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProgressLine(t *testing.T) {
	snap := job.Snapshot{Kind: domain.KindPDF, Total: 40, Progress: 0.3}
	if got := progressLine(snap); got != "[pdf] 12/40 units (30%)" {
		t.Errorf("progressLine() = %q", got)
	}
}

func TestTranslateFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := "translation:\n  target_lang: de\n  concurrency: 2\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	root := newRootCmd()
	cmd, _, err := root.Find([]string{"translate"})
	if err != nil {
		t.Fatal(err)
	}
	if err := root.PersistentFlags().Set("config", cfgPath); err != nil {
		t.Fatal(err)
	}
	if err := cmd.ParseFlags([]string{"--target", "es", "--fail-closed", "--out", dir}); err != nil {
		t.Fatal(err)
	}
	defer func() { configPath = defaultConfigPath }()

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	var f translateFlags
	f.target, _ = cmd.Flags().GetString("target")
	f.failClosed, _ = cmd.Flags().GetBool("fail-closed")
	f.out, _ = cmd.Flags().GetString("out")
	if err := f.apply(cmd, cfg); err != nil {
		t.Fatalf("apply() error = %v", err)
	}

	if cfg.Translation.TargetLang != "es" || !cfg.Translation.FailClosed || cfg.Paths.Output != dir {
		t.Errorf("flags not applied: %+v %+v", cfg.Translation, cfg.Paths)
	}
	if cfg.Translation.Concurrency != 2 {
		t.Errorf("concurrency = %d, want the file value 2", cfg.Translation.Concurrency)
	}

	f.target = "not a language tag!"
	if err := f.apply(cmd, cfg); err == nil {
		t.Error("apply() accepted an invalid target language")
	}
}

func TestTranslateRequiresFile(t *testing.T) {
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"translate"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "arg") {
		t.Errorf("translate without a file: err = %v, want an argument error", err)
	}
}
