// Package transcript writes a bilingual DOCX transcript of a translated audio
// job.
package transcript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/storage"
)

const (
	fontName   = "Times New Roman"
	fontSize   = 13
	titleSize  = 16
	sourceGrey = "808080"
	black      = "000000"
)

// Name returns the transcript file name for a source file and target language.
func Name(source, target string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "_" + target + "_transcript.docx"
}

// Write saves a transcript to path: a title, then for each segment a grey
// line with the time window and source text followed by the translation.
func Write(ctx context.Context, path, title string, segs []domain.Segment) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("new transcript document: %w", err)
	}

	addRun(doc.AddParagraph(""), title, titleSize, black, true)
	doc.AddParagraph("")

	for i := range segs {
		seg := &segs[i]
		src := doc.AddParagraph("")
		addRun(src, fmt.Sprintf("[%s - %s] ", stamp(seg.Start), stamp(seg.End)), fontSize, sourceGrey, true)
		addRun(src, seg.SourceText, fontSize, sourceGrey, false)

		addRun(doc.AddParagraph(""), seg.Output(), fontSize, black, false)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}

	// godocx only saves to a path, so stage next to the destination and rename.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".transcript-*.docx")
	if err != nil {
		return fmt.Errorf("create temp transcript: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := doc.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return storage.Move(ctx, tmpPath, path)
}

func addRun(p *docx.Paragraph, text string, size uint64, color string, bold bool) {
	run := p.AddText(text).Font(fontName).Size(size).Color(color)
	if bold {
		run.Bold(true)
	}
}

// stamp formats seconds as HH:MM:SS.
func stamp(seconds float64) string {
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}
