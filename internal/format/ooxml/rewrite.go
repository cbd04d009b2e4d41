package ooxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
)

// Edit replaces the content of one span.
type Edit struct {
	Span Span
	Text string
}

// ParagraphEdits puts text into the first span and empties the others, so the
// first run's formatting carries the whole paragraph.
func ParagraphEdits(spans []Span, text string) []Edit {
	edits := make([]Edit, len(spans))
	for i, s := range spans {
		edits[i] = Edit{Span: s}
		if i == 0 {
			edits[i].Text = text
		}
	}
	return edits
}

// Rewrite applies edits to data. Spans must lie inside data and must not
// overlap.
func Rewrite(data []byte, edits []Edit) ([]byte, error) {
	sorted := append([]Edit(nil), edits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Span.Start < sorted[j].Span.Start })

	var buf bytes.Buffer
	buf.Grow(len(data))

	var pos int64
	for _, e := range sorted {
		if e.Span.Start < pos || e.Span.End < e.Span.Start || e.Span.End > int64(len(data)) {
			return nil, fmt.Errorf("span [%d,%d) invalid at offset %d (part size %d)", e.Span.Start, e.Span.End, pos, len(data))
		}
		buf.Write(data[pos:e.Span.Start])
		if err := xml.EscapeText(&buf, []byte(e.Text)); err != nil {
			return nil, fmt.Errorf("escape text: %w", err)
		}
		pos = e.Span.End
	}
	buf.Write(data[pos:])
	return buf.Bytes(), nil
}
