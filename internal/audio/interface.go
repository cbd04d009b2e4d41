// Package audio turns speech into timed segments and translated segments back
// into a dubbed track or subtitles.
package audio

import (
	"context"

	"github.com/nguyentantai21042004/transflow/internal/domain"
)

// Transcriber produces timed segments from a media file.
type Transcriber interface {
	Transcribe(ctx context.Context, path, lang string) ([]domain.Segment, error)
}

// SynthesisRequest asks for speech for one segment.
type SynthesisRequest struct {
	Text    string
	Lang    string
	Speaker string
	// Duration is the target window in seconds. Backends may ignore it.
	Duration float64
}

// Synthesizer is a text-to-speech backend.
type Synthesizer interface {
	// Available returns nil when the backend can serve requests.
	Available(ctx context.Context) error
	Synthesize(ctx context.Context, req SynthesisRequest) (Clip, error)
}

// MediaTool runs the container-level operations of the aligner.
type MediaTool interface {
	Duration(ctx context.Context, path string) (float64, error)
	Stretch(ctx context.Context, in, out string, ratio float64) error
	Encode(ctx context.Context, track, source, out string) error
}
