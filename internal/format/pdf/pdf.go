// Package pdf extracts positioned paragraphs from PDF pages and redraws
// translated paragraphs onto fresh pages of the same size.
//
// Reconstruction is approximate: backgrounds, images and multi-column flow
// are not reproduced.
package pdf

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	lpdf "github.com/ledongthuc/pdf"

	"github.com/nguyentantai21042004/transflow/internal/domain"
)

const (
	// A4 in points, used when a page has no readable MediaBox.
	defaultWidth  = 595.0
	defaultHeight = 842.0

	minFontSize = 10.0

	// Guards the Parent walk against cyclic page trees.
	maxTreeDepth = 32
)

// Page is the size of one source page in points.
type Page struct {
	Width  float64
	Height float64
}

// Location is the box a block was read from.
type Location struct {
	BlockID string
	Page    int // 1-based
	X, Y    float64
	Width   float64
	Height  float64
	Size    float64
	Bold    bool
}

// Map is the PDF positional map.
type Map struct {
	Pages     []Page
	Locations []Location
}

func (m *Map) Kind() domain.Kind { return domain.KindPDF }

func (m *Map) BlockIDs() []string {
	ids := make([]string, len(m.Locations))
	for i, l := range m.Locations {
		ids[i] = l.BlockID
	}
	return ids
}

type Codec struct{}

func New() *Codec { return &Codec{} }

func (c *Codec) Kind() domain.Kind { return domain.KindPDF }

// Extract reads every page top-down. Pages without text keep their size in
// the map so the output has the same page count.
func (c *Codec) Extract(ctx context.Context, src domain.Source) (ex *domain.Extraction, err error) {
	// The reader panics on corrupt object graphs.
	defer func() {
		if r := recover(); r != nil {
			ex, err = nil, domain.Extractionf(src.Name(), "corrupt pdf: %v", r)
		}
	}()

	r, err := lpdf.NewReader(src, src.Size())
	if err != nil {
		return nil, domain.ExtractionFailed("open", src.Name(), err)
	}
	n := r.NumPage()
	if n == 0 {
		return nil, domain.Extractionf(src.Name(), "document has no pages")
	}

	m := &Map{}
	var blocks []*domain.Block
	for num := 1; num <= n; num++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(num)
		if page.V.IsNull() {
			return nil, domain.Extractionf(src.Name(), "page %d not found", num)
		}
		size := pageSize(page)
		m.Pages = append(m.Pages, size)

		glyphs, err := pageGlyphs(page, size.Height)
		if err != nil {
			return nil, domain.ExtractionFailed(fmt.Sprintf("read page %d", num), src.Name(), err)
		}
		for i, p := range layout(glyphs) {
			id := fmt.Sprintf("pdf:p%d:b%d", num, i)
			style := domain.StyleHint{
				"font": p.Font,
				"size": strconv.FormatFloat(math.Round(p.Size*10)/10, 'f', -1, 64),
			}
			if p.heading() {
				style["heading"] = "true"
			}
			blocks = append(blocks, domain.NewBlock(id, len(blocks), p.Text, style))
			m.Locations = append(m.Locations, Location{
				BlockID: id,
				Page:    num,
				X:       p.X0,
				Y:       p.Top,
				Width:   p.X1 - p.X0,
				Height:  p.Bottom - p.Top,
				Size:    p.Size,
				Bold:    p.heading() || strings.Contains(strings.ToLower(p.Font), "bold"),
			})
		}
	}

	if len(blocks) == 0 {
		return nil, domain.Extractionf(src.Name(), "document contains no extractable text")
	}
	ex = &domain.Extraction{Kind: domain.KindPDF, Blocks: blocks, Map: m}
	if err := ex.Validate(); err != nil {
		return nil, err
	}
	return ex, nil
}

func pageSize(p lpdf.Page) Page {
	box := inherited(p.V, "MediaBox")
	if box.Len() != 4 {
		return Page{Width: defaultWidth, Height: defaultHeight}
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return Page{Width: defaultWidth, Height: defaultHeight}
	}
	return Page{Width: w, Height: h}
}

// inherited looks key up on the page node and then on its ancestors in the
// page tree.
func inherited(v lpdf.Value, key string) lpdf.Value {
	for depth := 0; !v.IsNull() && depth < maxTreeDepth; depth++ {
		if val := v.Key(key); !val.IsNull() {
			return val
		}
		v = v.Key("Parent")
	}
	return lpdf.Value{}
}

// pageGlyphs converts the page content to top-left coordinates. The reader
// panics on malformed content streams.
func pageGlyphs(p lpdf.Page, height float64) (glyphs []glyph, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed content stream: %v", r)
		}
	}()
	for _, t := range p.Content().Text {
		glyphs = append(glyphs, glyph{
			X:    t.X,
			Top:  height - t.Y - t.FontSize,
			W:    t.W,
			Size: t.FontSize,
			Font: t.Font,
			S:    t.S,
		})
	}
	return glyphs, nil
}

// Reconstruct draws every block's output text at its original box on a new
// page of the original size.
func (c *Codec) Reconstruct(ctx context.Context, src domain.Source, pm domain.PositionalMap, blocks []*domain.Block, w io.Writer) error {
	m, ok := pm.(*Map)
	if !ok {
		return domain.Reconstructionf("pdf codec received a %T positional map", pm)
	}
	byID, err := domain.IndexBlocks(m, blocks)
	if err != nil {
		return err
	}

	byPage := make(map[int][]Location, len(m.Pages))
	for _, loc := range m.Locations {
		if loc.Page < 1 || loc.Page > len(m.Pages) {
			return domain.Reconstructionf("block %q on page %d outside %d pages", loc.BlockID, loc.Page, len(m.Pages))
		}
		byPage[loc.Page] = append(byPage[loc.Page], loc)
	}

	doc := fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt", Size: fpdf.SizeType{Wd: defaultWidth, Ht: defaultHeight}})
	doc.SetMargins(0, 0, 0)
	doc.SetCellMargin(0)
	doc.SetAutoPageBreak(false, 0)
	encode := doc.UnicodeTranslatorFromDescriptor("")

	for num, size := range m.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc.AddPageFormat("P", fpdf.SizeType{Wd: size.Width, Ht: size.Height})
		for _, loc := range byPage[num+1] {
			fontSize := math.Max(loc.Size, minFontSize)
			style := ""
			if loc.Bold {
				style = "B"
			}
			doc.SetFont("Helvetica", style, fontSize)

			width := loc.Width
			if width < fontSize {
				width = size.Width - loc.X
			}
			doc.SetXY(loc.X, loc.Y)
			doc.MultiCell(width, fontSize*1.2, encode(byID[loc.BlockID].Output()), "", "L", false)
		}
	}

	if err := doc.Output(w); err != nil {
		return domain.Reconstruction("write pdf", err)
	}
	return nil
}
