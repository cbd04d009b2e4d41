// Package docx extracts and rebuilds Word documents paragraph by paragraph.
package docx

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/format/ooxml"
)

const mainPart = "word/document.xml"

// Codec handles .docx artifacts.
type Codec struct{}

func New() *Codec { return &Codec{} }

func (c *Codec) Kind() domain.Kind { return domain.KindDOCX }

// Extract returns one block per non-empty paragraph. The body comes first,
// then headers, footers, footnotes and endnotes.
func (c *Codec) Extract(ctx context.Context, src domain.Source) (*domain.Extraction, error) {
	zr, err := ooxml.OpenPackage(src)
	if err != nil {
		return nil, domain.ExtractionFailed("open", src.Name(), err)
	}
	if !ooxml.HasPart(zr, mainPart) {
		return nil, domain.Extractionf(src.Name(), "missing %s", mainPart)
	}

	parts := []string{mainPart}
	var extra []string
	for _, f := range zr.File {
		if isAuxPart(f.Name) {
			extra = append(extra, f.Name)
		}
	}
	sort.Slice(extra, func(i, j int) bool {
		ri, rj := auxRank(extra[i]), auxRank(extra[j])
		if ri != rj {
			return ri < rj
		}
		return naturalLess(extra[i], extra[j])
	})
	parts = append(parts, extra...)

	m := &ooxml.Map{ArtifactKind: domain.KindDOCX}
	var blocks []*domain.Block
	for _, part := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := ooxml.ReadPart(zr, part)
		if err != nil {
			return nil, domain.ExtractionFailed("read", src.Name(), err)
		}
		v := &styleVisitor{}
		paras, err := ooxml.Scan(data, ooxml.Word, v)
		if err != nil {
			return nil, domain.ExtractionFailed("parse "+part, src.Name(), err)
		}
		name := strings.TrimSuffix(path.Base(part), ".xml")
		for _, p := range paras {
			id := fmt.Sprintf("docx:%s:p%d", name, p.Index)
			style := domain.StyleHint(p.Attrs)
			if part != mainPart {
				style["part"] = name
			}
			blocks = append(blocks, domain.NewBlock(id, len(blocks), p.Text, style))
			m.Locations = append(m.Locations, ooxml.Location{BlockID: id, Part: part, Spans: p.Spans})
		}
	}

	if len(blocks) == 0 {
		return nil, domain.Extractionf(src.Name(), "document contains no text")
	}
	ex := &domain.Extraction{Kind: domain.KindDOCX, Blocks: blocks, Map: m}
	if err := ex.Validate(); err != nil {
		return nil, err
	}
	return ex, nil
}

// Reconstruct writes src with each paragraph's text replaced. The first run
// of a paragraph receives the whole translation and keeps its formatting.
func (c *Codec) Reconstruct(ctx context.Context, src domain.Source, m domain.PositionalMap, blocks []*domain.Block, w io.Writer) error {
	return ooxml.Reconstruct(ctx, domain.KindDOCX, src, m, blocks, w)
}

func isAuxPart(name string) bool {
	if !strings.HasPrefix(name, "word/") || strings.Count(name, "/") != 1 || !strings.HasSuffix(name, ".xml") {
		return false
	}
	return auxRank(name) < len(auxPrefixes)
}

var auxPrefixes = []string{"word/header", "word/footer", "word/footnotes", "word/endnotes"}

func auxRank(name string) int {
	for i, p := range auxPrefixes {
		if strings.HasPrefix(name, p) {
			return i
		}
	}
	return len(auxPrefixes)
}

// naturalLess orders header2.xml before header10.xml.
func naturalLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// styleVisitor records paragraph style, heading and table membership.
type styleVisitor struct {
	tables int
}

func (v *styleVisitor) Start(el xml.StartElement, para *ooxml.Paragraph) {
	if el.Name.Space != ooxml.NSWordprocessing {
		return
	}
	switch el.Name.Local {
	case "tbl":
		v.tables++
	case "p":
		if v.tables > 0 && para != nil {
			para.Attrs["table"] = "true"
		}
	case "pStyle":
		if para == nil {
			return
		}
		val, ok := ooxml.AttrValue(el, "val")
		if !ok {
			return
		}
		para.Attrs["style"] = val
		lower := strings.ToLower(val)
		if strings.HasPrefix(lower, "heading") || lower == "title" {
			para.Attrs["heading"] = "true"
		}
	case "numPr":
		if para != nil {
			para.Attrs["list"] = "true"
		}
	}
}

func (v *styleVisitor) End(name xml.Name) {
	if name.Space == ooxml.NSWordprocessing && name.Local == "tbl" && v.tables > 0 {
		v.tables--
	}
}
