package format

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/google/go-cmp/cmp"

	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/storage"
)

func zipParts(t *testing.T, parts [][2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		fw, err := zw.Create(p[0])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(fw, p[1]); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sampleDocx(t *testing.T) []byte {
	const w = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`
	return zipParts(t, [][2]string{
		{"[Content_Types].xml", "<Types/>"},
		{"word/document.xml", `<w:document ` + w + `><w:body>` +
			`<w:p><w:r><w:t>Hello</w:t></w:r></w:p>` +
			`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Cell</w:t></w:r></w:p></w:tc></w:tr></w:tbl>` +
			`<w:p><w:r><w:t>World</w:t></w:r></w:p></w:body></w:document>`},
		{"word/footer1.xml", `<w:ftr ` + w + `><w:p><w:r><w:t>Page</w:t></w:r></w:p></w:ftr>`},
	})
}

func samplePptx(t *testing.T) []byte {
	const ns = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`
	return zipParts(t, [][2]string{
		{"[Content_Types].xml", "<Types/>"},
		{"ppt/presentation.xml", `<p:presentation ` + ns + `/>`},
		{"ppt/slides/slide1.xml", `<p:sld ` + ns + `><p:cSld><p:spTree><p:sp><p:txBody>` +
			`<a:p><a:r><a:t>One</a:t></a:r></a:p><a:p><a:r><a:t>Two</a:t></a:r></a:p>` +
			`</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`},
	})
}

func samplePDF(t *testing.T) []byte {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetXY(72, 72)
	pdf.Cell(300, 24, "Heading")
	pdf.SetFont("Helvetica", "", 12)
	pdf.SetXY(72, 200)
	pdf.Cell(300, 14, "Body text")
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type unit struct {
	Order int
	Text  string
}

func units(ext *domain.Extraction) []unit {
	out := make([]unit, len(ext.Blocks))
	for i, b := range ext.Blocks {
		out[i] = unit{Order: b.OrderIndex, Text: b.SourceText}
	}
	return out
}

func TestExtractionIsIdempotent(t *testing.T) {
	tests := []struct {
		name string
		file string
		data func(*testing.T) []byte
		want int
	}{
		{name: "docx", file: "a.docx", data: sampleDocx, want: 4},
		{name: "pptx", file: "a.pptx", data: samplePptx, want: 2},
		{name: "pdf", file: "a.pdf", data: samplePDF, want: 2},
	}

	reg := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := storage.NewMemory(tt.file, tt.data(t))
			kind, err := Detect(src)
			if err != nil {
				t.Fatal(err)
			}
			codec, err := reg.For(kind)
			if err != nil {
				t.Fatal(err)
			}

			first, err := codec.Extract(context.Background(), src)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			second, err := codec.Extract(context.Background(), src)
			if err != nil {
				t.Fatalf("second Extract() error = %v", err)
			}

			if len(first.Blocks) != tt.want {
				t.Errorf("got %d blocks, want %d: %v", len(first.Blocks), tt.want, units(first))
			}
			if diff := cmp.Diff(units(first), units(second)); diff != "" {
				t.Errorf("extractions differ (-first +second):\n%s", diff)
			}

			seen := map[int]bool{}
			for i, b := range first.Blocks {
				if seen[b.OrderIndex] {
					t.Errorf("duplicate order index %d", b.OrderIndex)
				}
				seen[b.OrderIndex] = true
				if i > 0 && b.OrderIndex <= first.Blocks[i-1].OrderIndex {
					t.Errorf("order index %d does not follow %d", b.OrderIndex, first.Blocks[i-1].OrderIndex)
				}
			}
		})
	}
}
