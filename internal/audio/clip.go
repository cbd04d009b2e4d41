package audio

import (
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Clip is mono audio with samples in [-1, 1].
type Clip struct {
	Rate    int
	Samples []float64
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.Rate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.Rate)
}

// Silence returns a silent clip of the given length.
func Silence(rate int, seconds float64) Clip {
	return Clip{Rate: rate, Samples: make([]float64, int(math.Round(seconds*float64(rate))))}
}

// DecodeWAV reads PCM WAV data and mixes all channels down to mono.
func DecodeWAV(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Clip{}, fmt.Errorf("not a valid wav stream")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("decode wav: %w", err)
	}

	chans := buf.Format.NumChannels
	if chans < 1 {
		chans = 1
	}
	depth := buf.SourceBitDepth
	scale := math.Pow(2, float64(depth-1))
	offset := 0.0
	if depth == 8 {
		// 8-bit PCM is unsigned.
		offset = 128
		scale = 128
	}

	frames := len(buf.Data) / chans
	out := Clip{Rate: buf.Format.SampleRate, Samples: make([]float64, frames)}
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < chans; ch++ {
			sum += (float64(buf.Data[i*chans+ch]) - offset) / scale
		}
		out.Samples[i] = sum / float64(chans)
	}
	return out, nil
}

// ReadWAV decodes the WAV file at path.
func ReadWAV(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

// WriteWAV writes c to path as 16-bit mono PCM.
func WriteWAV(path string, c Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	data := make([]int, len(c.Samples))
	for i, s := range c.Samples {
		data[i] = int(math.Round(clamp(s) * 32767))
	}

	enc := wav.NewEncoder(f, c.Rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: c.Rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finish wav: %w", err)
	}
	return f.Close()
}

// Resample converts c to rate with linear interpolation.
func (c Clip) Resample(rate int) Clip {
	if c.Rate == rate || c.Rate <= 0 || len(c.Samples) == 0 {
		return Clip{Rate: rate, Samples: c.Samples}
	}
	n := int(math.Round(float64(len(c.Samples)) * float64(rate) / float64(c.Rate)))
	out := make([]float64, n)
	step := float64(c.Rate) / float64(rate)
	last := len(c.Samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = c.Samples[last]
			continue
		}
		frac := pos - float64(j)
		out[i] = c.Samples[j]*(1-frac) + c.Samples[j+1]*frac
	}
	return Clip{Rate: rate, Samples: out}
}

// Fit trims or pads c to exactly the given length.
func (c Clip) Fit(seconds float64) Clip {
	n := int(math.Round(seconds * float64(c.Rate)))
	if n < 0 {
		n = 0
	}
	if len(c.Samples) >= n {
		return Clip{Rate: c.Rate, Samples: c.Samples[:n]}
	}
	out := make([]float64, n)
	copy(out, c.Samples)
	return Clip{Rate: c.Rate, Samples: out}
}

// Overlay mixes other into c starting at the given offset. Samples past the
// end of c are dropped.
func (c Clip) Overlay(other Clip, at float64) {
	start := int(math.Round(at * float64(c.Rate)))
	for i, s := range other.Samples {
		j := start + i
		if j < 0 {
			continue
		}
		if j >= len(c.Samples) {
			break
		}
		c.Samples[j] = clamp(c.Samples[j] + s)
	}
}

func clamp(s float64) float64 {
	return math.Max(-1, math.Min(1, s))
}
