package domain

import "fmt"

// SegmentState tracks an audio segment through the aligner.
type SegmentState string

const (
	SegmentTranscribed     SegmentState = "transcribed"
	SegmentTranslated      SegmentState = "translated"
	SegmentSynthesized     SegmentState = "synthesized"
	SegmentSubtitleEmitted SegmentState = "subtitle_emitted"
)

// Segment is the audio variant of a Block. Times are seconds over [Start, End).
type Segment struct {
	Block
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	SourceLanguage string  `json:"source_language,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
}

// Duration returns End - Start.
func (s *Segment) Duration() float64 {
	return s.End - s.Start
}

// Validate checks the time window.
func (s *Segment) Validate() error {
	if s.Start < 0 {
		return fmt.Errorf("segment %s: negative start %.3f", s.ID, s.Start)
	}
	if s.Start >= s.End {
		return fmt.Errorf("segment %s: start %.3f not before end %.3f", s.ID, s.Start, s.End)
	}
	return nil
}

// SegmentBlocks returns pointers to the embedded blocks so the dispatcher can
// translate segments in place.
func SegmentBlocks(segs []Segment) []*Block {
	out := make([]*Block, len(segs))
	for i := range segs {
		out[i] = &segs[i].Block
	}
	return out
}
