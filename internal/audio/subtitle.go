package audio

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/nguyentantai21042004/transflow/internal/domain"
)

// Cue is one timed subtitle entry.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// Subtitle formats.
const (
	FormatSRT = "srt"
	FormatVTT = "vtt"
)

var timingLine = regexp.MustCompile(`^\s*((?:\d+:)?\d{1,2}:\d{2}[,.]\d{1,3})\s*-->\s*((?:\d+:)?\d{1,2}:\d{2}[,.]\d{1,3})`)

// ParseCues reads SRT or WebVTT cues. Cue numbers, the WEBVTT header, NOTE
// blocks and cue settings are ignored.
func ParseCues(r io.Reader) ([]Cue, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		cues []Cue
		cur  *Cue
		text []string
	)
	flush := func() {
		if cur != nil {
			cur.Text = strings.TrimSpace(strings.Join(text, "\n"))
			cues = append(cues, *cur)
		}
		cur, text = nil, nil
	}

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if m := timingLine.FindStringSubmatch(line); m != nil {
			flush()
			start, err := parseTimestamp(m[1])
			if err != nil {
				return nil, err
			}
			end, err := parseTimestamp(m[2])
			if err != nil {
				return nil, err
			}
			cur = &Cue{Start: start, End: end}
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if cur != nil {
			text = append(text, strings.TrimSpace(line))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read subtitles: %w", err)
	}
	flush()
	return cues, nil
}

// parseTimestamp accepts HH:MM:SS,mmm, HH:MM:SS.mmm and MM:SS.mmm.
func parseTimestamp(s string) (float64, error) {
	s = strings.Replace(s, ",", ".", 1)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("bad timestamp %q", s)
	}
	var total float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("bad timestamp %q: %w", s, err)
		}
		if i < len(parts)-1 {
			total = (total + v) * 60
		} else {
			total += v
		}
	}
	return total, nil
}

func splitTime(seconds float64) (h, m, s, ms int64) {
	total := int64(math.Round(math.Max(seconds, 0) * 1000))
	return total / 3600000, total / 60000 % 60, total / 1000 % 60, total % 1000
}

// SRTTimestamp formats seconds as HH:MM:SS,mmm.
func SRTTimestamp(seconds float64) string {
	h, m, s, ms := splitTime(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// VTTTimestamp formats seconds as HH:MM:SS.mmm.
func VTTTimestamp(seconds float64) string {
	h, m, s, ms := splitTime(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// WriteSubtitles writes each segment's output text at its original window.
func WriteSubtitles(w io.Writer, format string, segs []domain.Segment) error {
	bw := bufio.NewWriter(w)
	stamp := SRTTimestamp
	if format == FormatVTT {
		stamp = VTTTimestamp
		fmt.Fprint(bw, "WEBVTT\n\n")
	} else if format != FormatSRT {
		return fmt.Errorf("unknown subtitle format %q", format)
	}

	for i, s := range segs {
		if format == FormatSRT {
			fmt.Fprintf(bw, "%d\n", i+1)
		}
		fmt.Fprintf(bw, "%s --> %s\n%s\n\n", stamp(s.Start), stamp(s.End), s.Output())
	}
	return bw.Flush()
}
