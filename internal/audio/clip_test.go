package audio

import (
	"math"
	"path/filepath"
	"testing"
)

func tone(rate int, seconds, level float64) Clip {
	c := Silence(rate, seconds)
	for i := range c.Samples {
		c.Samples[i] = level
	}
	return c
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	in := tone(16000, 0.25, 0.5)
	in.Samples[0] = -1

	if err := WriteWAV(path, in); err != nil {
		t.Fatalf("WriteWAV() error = %v", err)
	}
	out, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV() error = %v", err)
	}
	if out.Rate != 16000 || len(out.Samples) != len(in.Samples) {
		t.Fatalf("ReadWAV() rate=%d len=%d, want 16000/%d", out.Rate, len(out.Samples), len(in.Samples))
	}
	if math.Abs(out.Samples[10]-0.5) > 0.001 {
		t.Errorf("sample 10 = %v, want ~0.5", out.Samples[10])
	}
	if out.Samples[0] > -0.99 {
		t.Errorf("sample 0 = %v, want ~-1", out.Samples[0])
	}
}

func TestResample(t *testing.T) {
	c := tone(22050, 1, 0.3)
	r := c.Resample(16000)
	if r.Rate != 16000 || len(r.Samples) != 16000 {
		t.Errorf("Resample() rate=%d len=%d", r.Rate, len(r.Samples))
	}
	if math.Abs(r.Samples[8000]-0.3) > 1e-9 {
		t.Errorf("Resample() changed level: %v", r.Samples[8000])
	}
	if same := c.Resample(22050); len(same.Samples) != len(c.Samples) {
		t.Error("Resample() to the same rate changed length")
	}
}

func TestFitAndOverlay(t *testing.T) {
	c := tone(1000, 0.5, 0.4)
	if got := len(c.Fit(0.2).Samples); got != 200 {
		t.Errorf("Fit(0.2) len = %d, want 200", got)
	}
	padded := c.Fit(1)
	if len(padded.Samples) != 1000 || padded.Samples[999] != 0 || padded.Samples[0] != 0.4 {
		t.Errorf("Fit(1) did not pad with silence")
	}

	track := Silence(1000, 1)
	track.Overlay(tone(1000, 0.5, 0.8), 0.75)
	track.Overlay(tone(1000, 0.1, 0.8), 0.8)
	if track.Samples[700] != 0 {
		t.Errorf("sample before overlay = %v", track.Samples[700])
	}
	if track.Samples[760] != 0.8 {
		t.Errorf("overlay sample = %v, want 0.8", track.Samples[760])
	}
	if track.Samples[850] != 1 {
		t.Errorf("mixed sample = %v, want clamp to 1", track.Samples[850])
	}
}

func TestAtempoChain(t *testing.T) {
	tests := map[float64]string{
		1.2: "atempo=1.2000",
		3:   "atempo=2.0,atempo=1.5000",
	}
	for ratio, want := range tests {
		if got := atempoChain(ratio); got != want {
			t.Errorf("atempoChain(%v) = %q, want %q", ratio, got, want)
		}
	}
}
