package ooxml

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nguyentantai21042004/transflow/internal/domain"
)

// OpenPackage opens src as a zip container.
func OpenPackage(src domain.Source) (*zip.Reader, error) {
	zr, err := zip.NewReader(src, src.Size())
	if err != nil {
		return nil, fmt.Errorf("not an office open xml package: %w", err)
	}
	return zr, nil
}

// ReadPart returns the bytes of a named part.
func ReadPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open part %s: %w", name, err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				return nil, fmt.Errorf("read part %s: %w", name, err)
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("part %s not found", name)
}

// HasPart reports whether the package contains name.
func HasPart(zr *zip.Reader, name string) bool {
	for _, f := range zr.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Location is where one block's text lives.
type Location struct {
	BlockID string
	Part    string
	Spans   []Span
}

// Map is the positional map shared by the DOCX and PPTX codecs.
type Map struct {
	ArtifactKind domain.Kind
	Locations    []Location
}

func (m *Map) Kind() domain.Kind { return m.ArtifactKind }

func (m *Map) BlockIDs() []string {
	ids := make([]string, len(m.Locations))
	for i, l := range m.Locations {
		ids[i] = l.BlockID
	}
	return ids
}

// Reconstruct writes a copy of src to w with every mapped paragraph replaced
// by its block's output text. Entries without mapped text are copied raw.
func Reconstruct(ctx context.Context, kind domain.Kind, src domain.Source, pm domain.PositionalMap, blocks []*domain.Block, w io.Writer) error {
	m, ok := pm.(*Map)
	if !ok || m.ArtifactKind != kind {
		return domain.Reconstructionf("%s codec received a %T positional map", kind, pm)
	}
	byID, err := domain.IndexBlocks(m, blocks)
	if err != nil {
		return err
	}

	zr, err := OpenPackage(src)
	if err != nil {
		return domain.Reconstruction("open package", err)
	}

	edits := map[string][]Edit{}
	for _, loc := range m.Locations {
		text := strings.TrimSpace(byID[loc.BlockID].Output())
		edits[loc.Part] = append(edits[loc.Part], ParagraphEdits(loc.Spans, text)...)
	}

	replaced := make(map[string][]byte, len(edits))
	for part, es := range edits {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := ReadPart(zr, part)
		if err != nil {
			return domain.Reconstruction("read part", err)
		}
		out, err := Rewrite(data, es)
		if err != nil {
			return domain.Reconstruction("rewrite "+part, err)
		}
		replaced[part] = out
	}

	if err := CopyPackage(zr, w, replaced); err != nil {
		return domain.Reconstruction("write package", err)
	}
	return nil
}

// CopyPackage writes every entry of zr to w in the original order, using the
// replacement bytes for the named parts.
func CopyPackage(zr *zip.Reader, w io.Writer, replaced map[string][]byte) error {
	zw := zip.NewWriter(w)
	for _, f := range zr.File {
		data, ok := replaced[f.Name]
		if !ok {
			if err := zw.Copy(f); err != nil {
				return fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}

		fh := f.FileHeader
		fh.Method = zip.Deflate
		part, err := zw.CreateHeader(&fh)
		if err != nil {
			return fmt.Errorf("create %s: %w", f.Name, err)
		}
		if _, err := part.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	return zw.Close()
}
