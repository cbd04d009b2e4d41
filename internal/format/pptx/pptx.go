// Package pptx extracts and rebuilds PowerPoint decks.
package pptx

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/format/ooxml"
)

const (
	presentationPart = "ppt/presentation.xml"
	presentationRels = "ppt/_rels/presentation.xml.rels"
	slideRelType     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"

	// Font sizes are in hundredths of a point.
	headingSize = 2400
)

type Codec struct{}

func New() *Codec { return &Codec{} }

func (c *Codec) Kind() domain.Kind { return domain.KindPPTX }

// Extract returns one block per non-empty text paragraph. Slides follow the
// presentation order; within a slide, shapes are read top-to-bottom then
// left-to-right.
func (c *Codec) Extract(ctx context.Context, src domain.Source) (*domain.Extraction, error) {
	zr, err := ooxml.OpenPackage(src)
	if err != nil {
		return nil, domain.ExtractionFailed("open", src.Name(), err)
	}
	slides, err := slideOrder(zr)
	if err != nil {
		return nil, domain.ExtractionFailed("read slide order", src.Name(), err)
	}
	if len(slides) == 0 {
		return nil, domain.Extractionf(src.Name(), "presentation has no slides")
	}

	m := &ooxml.Map{ArtifactKind: domain.KindPPTX}
	var blocks []*domain.Block
	for n, part := range slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := ooxml.ReadPart(zr, part)
		if err != nil {
			return nil, domain.ExtractionFailed("read", src.Name(), err)
		}
		v := newShapeVisitor()
		paras, err := ooxml.Scan(data, ooxml.Drawing, v)
		if err != nil {
			return nil, domain.ExtractionFailed("parse "+part, src.Name(), err)
		}
		if v.needsLayout() {
			v.inherit(inheritedPositions(zr, part))
		}
		sort.SliceStable(paras, func(i, j int) bool {
			return readsBefore(v.owner[paras[i]], v.owner[paras[j]])
		})
		for _, p := range paras {
			id := fmt.Sprintf("pptx:s%d:p%d", n+1, p.Index)
			style := domain.StyleHint(p.Attrs)
			style["slide"] = strconv.Itoa(n + 1)
			blocks = append(blocks, domain.NewBlock(id, len(blocks), p.Text, style))
			m.Locations = append(m.Locations, ooxml.Location{BlockID: id, Part: part, Spans: p.Spans})
		}
	}

	if len(blocks) == 0 {
		return nil, domain.Extractionf(src.Name(), "presentation contains no text")
	}
	ex := &domain.Extraction{Kind: domain.KindPPTX, Blocks: blocks, Map: m}
	if err := ex.Validate(); err != nil {
		return nil, err
	}
	return ex, nil
}

func (c *Codec) Reconstruct(ctx context.Context, src domain.Source, m domain.PositionalMap, blocks []*domain.Block, w io.Writer) error {
	return ooxml.Reconstruct(ctx, domain.KindPPTX, src, m, blocks, w)
}

type presentation struct {
	SlideIDs []struct {
		RelID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

type relationships struct {
	Items []struct {
		ID     string `xml:"Id,attr"`
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// slideOrder resolves the slide list of presentation.xml through its
// relationships. Packages without one fall back to slide file numbering.
func slideOrder(zr *zip.Reader) ([]string, error) {
	if !ooxml.HasPart(zr, presentationPart) || !ooxml.HasPart(zr, presentationRels) {
		return numberedSlides(zr), nil
	}
	data, err := ooxml.ReadPart(zr, presentationPart)
	if err != nil {
		return nil, err
	}
	var pres presentation
	if err := xml.Unmarshal(data, &pres); err != nil {
		return nil, fmt.Errorf("parse presentation: %w", err)
	}
	data, err = ooxml.ReadPart(zr, presentationRels)
	if err != nil {
		return nil, err
	}
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("parse presentation relationships: %w", err)
	}

	targets := make(map[string]string, len(rels.Items))
	for _, r := range rels.Items {
		if r.Type == slideRelType {
			targets[r.ID] = resolveTarget(path.Dir(presentationPart), r.Target)
		}
	}

	var slides []string
	for _, s := range pres.SlideIDs {
		t, ok := targets[s.RelID]
		if !ok {
			return nil, fmt.Errorf("slide relationship %s not found", s.RelID)
		}
		if !ooxml.HasPart(zr, t) {
			return nil, fmt.Errorf("slide part %s not found", t)
		}
		slides = append(slides, t)
	}
	if len(slides) == 0 {
		return numberedSlides(zr), nil
	}
	return slides, nil
}

// resolveTarget resolves a relationship target against the directory of the
// part that owns the relationship.
func resolveTarget(dir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(dir, target)
}

func numberedSlides(zr *zip.Reader) []string {
	type numbered struct {
		name string
		n    int
	}
	var found []numbered
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "ppt/slides/slide") || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(f.Name, "ppt/slides/slide"), ".xml"))
		if err != nil {
			continue
		}
		found = append(found, numbered{f.Name, n})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.name
	}
	return out
}

type point struct{ x, y int64 }

type shape struct {
	placeholder string
	phType      string
	phIdx       string
	pos         point
	placed      bool
	// grouped shapes take the position of their placed group.
	grouped bool
}

func (s *shape) positioned() bool { return s != nil && (s.placed || s.grouped) }

// keys identifies the placeholder a layout or master defines for s, most
// specific first.
func (s *shape) keys() []string {
	var keys []string
	if s.phIdx != "" {
		keys = append(keys, "idx:"+s.phIdx)
	}
	return append(keys, "type:"+s.phType)
}

// readsBefore orders positioned shapes top-to-bottom then left-to-right.
// Shapes without a position follow them in document order.
func readsBefore(a, b *shape) bool {
	if a.positioned() != b.positioned() {
		return a.positioned()
	}
	if !a.positioned() {
		return false
	}
	if a.pos.y != b.pos.y {
		return a.pos.y < b.pos.y
	}
	return a.pos.x < b.pos.x
}

// shapeVisitor tracks the shape each paragraph sits in.
type shapeVisitor struct {
	shapes       []*shape
	placeholders []*shape
	owner        map[*ooxml.Paragraph]*shape
}

func newShapeVisitor() *shapeVisitor {
	return &shapeVisitor{owner: map[*ooxml.Paragraph]*shape{}}
}

func isShape(n xml.Name) bool {
	if n.Space != ooxml.NSPresentation {
		return false
	}
	switch n.Local {
	case "sp", "graphicFrame", "grpSp", "cxnSp":
		return true
	}
	return false
}

func (v *shapeVisitor) current() *shape {
	if len(v.shapes) == 0 {
		return nil
	}
	return v.shapes[len(v.shapes)-1]
}

func (v *shapeVisitor) needsLayout() bool {
	for _, s := range v.placeholders {
		if !s.positioned() {
			return true
		}
	}
	return false
}

// inherit places every unpositioned placeholder at the position its layout
// gives it.
func (v *shapeVisitor) inherit(positions map[string]point) {
	for _, s := range v.placeholders {
		if s.positioned() {
			continue
		}
		for _, k := range s.keys() {
			if pos, ok := positions[k]; ok {
				s.pos, s.placed = pos, true
				break
			}
		}
	}
}

func (v *shapeVisitor) Start(el xml.StartElement, para *ooxml.Paragraph) {
	if isShape(el.Name) {
		s := &shape{}
		if parent := v.current(); parent != nil {
			s.pos = parent.pos
			s.grouped = parent.positioned()
		}
		v.shapes = append(v.shapes, s)
		return
	}
	cur := v.current()

	switch {
	case el.Name.Space == ooxml.NSPresentation && el.Name.Local == "ph" && cur != nil:
		cur.phType, _ = ooxml.AttrValue(el, "type")
		if cur.phType == "" {
			cur.phType = "body"
		}
		cur.phIdx, _ = ooxml.AttrValue(el, "idx")
		cur.placeholder = cur.phType
		v.placeholders = append(v.placeholders, cur)

	case el.Name.Space == ooxml.NSDrawing && el.Name.Local == "off" && cur != nil && !cur.placed:
		x, _ := ooxml.AttrValue(el, "x")
		y, _ := ooxml.AttrValue(el, "y")
		cur.pos.x, _ = strconv.ParseInt(x, 10, 64)
		cur.pos.y, _ = strconv.ParseInt(y, 10, 64)
		cur.placed = true

	case el.Name.Space == ooxml.NSDrawing && el.Name.Local == "p" && para != nil:
		if cur == nil {
			return
		}
		v.owner[para] = cur
		if cur.placeholder != "" {
			para.Attrs["placeholder"] = cur.placeholder
		}
		if cur.placeholder == "title" || cur.placeholder == "ctrTitle" {
			para.Attrs["heading"] = "true"
		}

	case el.Name.Space == ooxml.NSDrawing && (el.Name.Local == "rPr" || el.Name.Local == "defRPr") && para != nil:
		sz, ok := ooxml.AttrValue(el, "sz")
		if !ok {
			return
		}
		if n, err := strconv.Atoi(sz); err == nil {
			para.Attrs["size"] = sz
			if n >= headingSize {
				para.Attrs["heading"] = "true"
			}
		}
	}
}

func (v *shapeVisitor) End(name xml.Name) {
	if isShape(name) && len(v.shapes) > 0 {
		v.shapes = v.shapes[:len(v.shapes)-1]
	}
}
