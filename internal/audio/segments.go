package audio

import (
	"fmt"
	"sort"

	"github.com/nguyentantai21042004/transflow/internal/domain"
)

// minDuration replaces zero or negative cue lengths.
const minDuration = 0.010

// Segments turns transcript cues into ordered segments named seg_<n>. Cues
// are ordered by start time (ties keep transcript order); empty cues are
// dropped before numbering.
func Segments(cues []Cue, lang string) []domain.Segment {
	sorted := append([]Cue(nil), cues...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var segs []domain.Segment
	for _, c := range sorted {
		if c.Text == "" {
			continue
		}
		start := c.Start
		if start < 0 {
			start = 0
		}
		end := c.End
		if end <= start {
			end = start + minDuration
		}

		n := len(segs)
		var style domain.StyleHint
		if lang != "" && lang != "auto" {
			style = domain.StyleHint{"language": lang}
		}
		segs = append(segs, domain.Segment{
			Block:          *domain.NewBlock(fmt.Sprintf("seg_%d", n), n, c.Text, style),
			Start:          start,
			End:            end,
			SourceLanguage: lang,
		})
	}
	return segs
}
