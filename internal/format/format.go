// Package format selects the codec for an artifact.
package format

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/format/docx"
	"github.com/nguyentantai21042004/transflow/internal/format/pdf"
	"github.com/nguyentantai21042004/transflow/internal/format/pptx"
)

// Codec extracts blocks from a document and writes the translated copy.
type Codec interface {
	Kind() domain.Kind
	Extract(ctx context.Context, src domain.Source) (*domain.Extraction, error)
	Reconstruct(ctx context.Context, src domain.Source, m domain.PositionalMap, blocks []*domain.Block, w io.Writer) error
}

// Extensions of audio and video inputs.
var mediaExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".ogg": true, ".flac": true, ".aac": true,
	".mp4": true, ".mkv": true, ".mov": true, ".avi": true, ".webm": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".mov": true, ".avi": true, ".webm": true,
}

var documentExtensions = map[string]domain.Kind{
	".pdf":  domain.KindPDF,
	".docx": domain.KindDOCX,
	".pptx": domain.KindPPTX,
}

// Supported reports whether path has an extension Detect accepts.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, doc := documentExtensions[ext]
	return doc || mediaExtensions[ext]
}

// IsVideo reports whether path names a video container.
func IsVideo(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// Detect picks the artifact kind from the extension, or from the content
// when the extension is unknown.
func Detect(src domain.Source) (domain.Kind, error) {
	ext := strings.ToLower(filepath.Ext(src.Name()))
	switch {
	case ext == ".doc" || ext == ".ppt":
		return "", domain.Extractionf(src.Name(), "legacy binary %s is not supported, save it as %sx", ext, ext)
	case mediaExtensions[ext]:
		return domain.KindAudio, nil
	}
	if kind, ok := documentExtensions[ext]; ok {
		return kind, nil
	}
	return sniff(src)
}

func sniff(src domain.Source) (domain.Kind, error) {
	head := make([]byte, 512)
	n, err := src.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return "", domain.ExtractionFailed("sniff", src.Name(), err)
	}
	mime := http.DetectContentType(head[:n])

	switch {
	case strings.HasPrefix(mime, "application/pdf"):
		return domain.KindPDF, nil
	case strings.HasPrefix(mime, "audio/"), strings.HasPrefix(mime, "video/"), mime == "application/ogg":
		return domain.KindAudio, nil
	case mime == "application/zip":
		zr, err := zip.NewReader(src, src.Size())
		if err != nil {
			return "", domain.ExtractionFailed("sniff", src.Name(), err)
		}
		for _, f := range zr.File {
			switch {
			case f.Name == "word/document.xml":
				return domain.KindDOCX, nil
			case f.Name == "ppt/presentation.xml":
				return domain.KindPPTX, nil
			}
		}
	}
	return "", domain.Extractionf(src.Name(), "unsupported content type %s", mime)
}

// Registry maps document kinds to codecs.
type Registry map[domain.Kind]Codec

// NewRegistry returns a registry of the PDF, DOCX and PPTX codecs.
func NewRegistry() Registry {
	return Registry{
		domain.KindPDF:  pdf.New(),
		domain.KindDOCX: docx.New(),
		domain.KindPPTX: pptx.New(),
	}
}

// For returns the codec of kind.
func (r Registry) For(kind domain.Kind) (Codec, error) {
	c, ok := r[kind]
	if !ok {
		return nil, domain.Extractionf("", "no document codec for %s", kind)
	}
	return c, nil
}

// OutputName returns "<stem>_<target><ext>" for a source path.
func OutputName(source, target string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s_%s%s", strings.TrimSuffix(base, ext), target, ext)
}
