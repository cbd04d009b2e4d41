package pdf

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// Glyphs whose vertical centres are closer than this share a line.
	lineTolerance = 5.0
	// A blank gap taller than this between two lines starts a new paragraph.
	paragraphGap = 15.0
	// Paragraphs with a larger average font size are headings.
	headingSize = 14.0
	// Horizontal gap, relative to font size, read as a word break.
	wordGap = 0.25
)

// glyph is one positioned character in top-left page coordinates.
type glyph struct {
	X, Top, W, Size float64
	Font            string
	S               string
}

func (g glyph) bottom() float64 { return g.Top + g.Size }
func (g glyph) middle() float64 { return g.Top + g.Size/2 }

type line struct {
	glyphs []glyph
	mid    float64
}

func (l *line) top() float64 {
	t := math.Inf(1)
	for _, g := range l.glyphs {
		t = math.Min(t, g.Top)
	}
	return t
}

func (l *line) bottom() float64 {
	b := math.Inf(-1)
	for _, g := range l.glyphs {
		b = math.Max(b, g.bottom())
	}
	return b
}

// text joins the glyphs of a line left to right. Glyphs without a known
// width share the x of their show operator, so any advance between two of
// them separates words.
func (l *line) text() string {
	sort.SliceStable(l.glyphs, func(i, j int) bool { return l.glyphs[i].X < l.glyphs[j].X })

	var b strings.Builder
	for i, g := range l.glyphs {
		if i > 0 {
			prev := l.glyphs[i-1]
			var brk bool
			if prev.W > 0 {
				brk = g.X-(prev.X+prev.W) > wordGap*g.Size
			} else {
				brk = g.X-prev.X > 0.01
			}
			if brk {
				b.WriteByte(' ')
			}
		}
		b.WriteString(g.S)
	}
	return b.String()
}

// paragraph is a laid-out block of one page.
type paragraph struct {
	Text                string
	X0, Top, X1, Bottom float64
	Size                float64
	Font                string
}

func (p paragraph) heading() bool { return p.Size > headingSize }

// layout groups the glyphs of one page into paragraphs in reading order.
func layout(glyphs []glyph) []paragraph {
	var kept []glyph
	for _, g := range glyphs {
		if g.S == "" || g.Size <= 0 {
			continue
		}
		kept = append(kept, g)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].middle() < kept[j].middle() })

	var lines []*line
	for _, g := range kept {
		if n := len(lines); n > 0 && math.Abs(g.middle()-lines[n-1].mid) < lineTolerance {
			lines[n-1].glyphs = append(lines[n-1].glyphs, g)
			continue
		}
		lines = append(lines, &line{glyphs: []glyph{g}, mid: g.middle()})
	}

	var groups [][]*line
	prevBottom := math.NaN()
	for _, l := range lines {
		if len(groups) == 0 || l.top()-prevBottom > paragraphGap {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], l)
		prevBottom = l.bottom()
	}

	var out []paragraph
	for _, group := range groups {
		if p, ok := build(group); ok {
			out = append(out, p)
		}
	}
	return out
}

func build(lines []*line) (paragraph, bool) {
	p := paragraph{X0: math.Inf(1), Top: math.Inf(1), X1: math.Inf(-1), Bottom: math.Inf(-1)}
	var texts []string
	var total float64
	var count int
	fonts := map[string]int{}

	for _, l := range lines {
		texts = append(texts, l.text())
		for _, g := range l.glyphs {
			p.X0 = math.Min(p.X0, g.X)
			p.X1 = math.Max(p.X1, g.X+g.W)
			p.Top = math.Min(p.Top, g.Top)
			p.Bottom = math.Max(p.Bottom, g.bottom())
			total += g.Size
			count++
			if !unicode.IsSpace([]rune(g.S)[0]) {
				fonts[g.Font]++
			}
		}
	}

	p.Text = strings.Join(strings.Fields(norm.NFC.String(strings.Join(texts, " "))), " ")
	if p.Text == "" {
		return p, false
	}
	p.Size = total / float64(count)
	p.Font = commonest(fonts)
	return p, true
}

func commonest(counts map[string]int) string {
	best, n := "", -1
	for name, c := range counts {
		if c > n || (c == n && name < best) {
			best, n = name, c
		}
	}
	return best
}
