// Package ooxml locates paragraph text inside Office Open XML parts and
// rewrites it in place.
//
// Scanning records the byte range of every text node's content. Rewriting
// splices new text into those ranges and leaves every other byte of the part
// untouched, so run properties, drawings and relationships survive as-is.
package ooxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Namespaces of the parts this package reads.
const (
	NSWordprocessing = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NSDrawing        = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NSPresentation   = "http://schemas.openxmlformats.org/presentationml/2006/main"
	NSRelationships  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

// Dialect names the paragraph and text-node elements of a markup flavour.
// Separators maps inline tab and break elements to the text they stand for;
// they count only as children of a Run element, or of the paragraph itself
// when Run is empty.
type Dialect struct {
	Namespace  string
	Paragraph  string
	Text       string
	Run        string
	Separators map[string]string
}

var (
	Word = Dialect{
		Namespace: NSWordprocessing, Paragraph: "p", Text: "t", Run: "r",
		Separators: map[string]string{"tab": "\t", "br": "\n", "cr": "\n"},
	}
	Drawing = Dialect{
		Namespace: NSDrawing, Paragraph: "p", Text: "t",
		Separators: map[string]string{"br": "\n"},
	}
)

// separator returns the text el stands for when its parent is parent.
func (d Dialect) separator(el, parent xml.Name) (string, bool) {
	if el.Space != d.Namespace || parent.Space != d.Namespace {
		return "", false
	}
	sep, ok := d.Separators[el.Local]
	if !ok {
		return "", false
	}
	if d.Run != "" {
		return sep, parent.Local == d.Run
	}
	return sep, parent.Local == d.Paragraph
}

func (d Dialect) isParagraph(n xml.Name) bool {
	return n.Space == d.Namespace && n.Local == d.Paragraph
}
func (d Dialect) isText(n xml.Name) bool { return n.Space == d.Namespace && n.Local == d.Text }

// Span is a half-open byte range inside a part.
type Span struct {
	Start int64
	End   int64
}

// Paragraph is one paragraph element and the text nodes it directly owns.
type Paragraph struct {
	// Index counts every paragraph of the part in document order, empty ones included.
	Index int
	Text  string
	Spans []Span
	Attrs map[string]string
}

// Visitor observes elements while a part is scanned. para is the innermost
// open paragraph, or nil outside paragraphs.
type Visitor interface {
	Start(el xml.StartElement, para *Paragraph)
	End(name xml.Name)
}

// Scan returns the paragraphs of data in document order. Paragraphs whose
// text is blank are dropped. Text nodes of a nested paragraph (text boxes)
// belong to the nested paragraph only.
func Scan(data []byte, d Dialect, v Visitor) ([]*Paragraph, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		out       []*Paragraph
		stack     []*Paragraph
		texts     = map[*Paragraph]*strings.Builder{}
		inText    *Paragraph
		textStart int64
		open      []xml.Name
	)

	for {
		before := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml at offset %d: %w", before, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if d.isParagraph(t.Name) {
				p := &Paragraph{Index: len(out), Attrs: map[string]string{}}
				out = append(out, p)
				stack = append(stack, p)
				texts[p] = &strings.Builder{}
			}
			var cur *Paragraph
			if len(stack) > 0 {
				cur = stack[len(stack)-1]
			}
			if d.isText(t.Name) && cur != nil {
				inText = cur
				textStart = dec.InputOffset()
			}
			if cur != nil && inText == nil && len(open) > 0 {
				if sep, ok := d.separator(t.Name, open[len(open)-1]); ok {
					texts[cur].WriteString(sep)
				}
			}
			open = append(open, t.Name)
			if v != nil {
				v.Start(t, cur)
			}

		case xml.CharData:
			if inText != nil {
				texts[inText].Write(t)
			}

		case xml.EndElement:
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
			if d.isText(t.Name) && inText != nil {
				// A self-closing text node yields no bytes; nothing can be spliced into it.
				if dec.InputOffset() > before {
					inText.Spans = append(inText.Spans, Span{Start: textStart, End: before})
				}
				inText = nil
			}
			if d.isParagraph(t.Name) && len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			if v != nil {
				v.End(t.Name)
			}
		}
	}

	kept := out[:0]
	for _, p := range out {
		p.Text = strings.TrimSpace(texts[p].String())
		if p.Text != "" && len(p.Spans) > 0 {
			kept = append(kept, p)
		}
	}
	return kept, nil
}

// AttrValue returns the value of the attribute with the given local name,
// in any namespace.
func AttrValue(el xml.StartElement, local string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}
