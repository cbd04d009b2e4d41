package processor

import (
	"context"

	"github.com/nguyentantai21042004/transflow/internal/audio"
	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/job"
)

// Processor runs one translation job per input file.
type Processor interface {
	Process(ctx context.Context, path string) (*Result, error)
	// Archive moves a processed input out of the inbox.
	Archive(ctx context.Context, path string) error
}

// Result describes what a job produced.
type Result struct {
	JobID string
	Kind  domain.Kind
	// Mode is set for audio jobs only.
	Mode         audio.Mode
	Output       string
	SubtitlePath string
	Transcript   string
	Segments     []audio.SegmentResult
	// Fallback is why an audio job produced subtitles instead of speech.
	Fallback error
	Snapshot job.Snapshot
}

// Outputs lists every file the job wrote.
func (r *Result) Outputs() []string {
	var out []string
	for _, p := range []string{r.Output, r.SubtitlePath, r.Transcript} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
