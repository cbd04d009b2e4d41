package pptx

import (
	"archive/zip"
	"encoding/xml"
	"path"

	"github.com/nguyentantai21042004/transflow/internal/format/ooxml"
)

const (
	slideLayoutRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"
	slideMasterRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster"
)

// inheritedPositions returns the placeholder positions a slide inherits,
// keyed like shape.keys. The layout wins over the master. A missing or
// unreadable layout yields what was found so far.
func inheritedPositions(zr *zip.Reader, slidePart string) map[string]point {
	out := map[string]point{}
	part := slidePart
	for _, relType := range []string{slideLayoutRelType, slideMasterRelType} {
		next := relatedPart(zr, part, relType)
		if next == "" {
			break
		}
		data, err := ooxml.ReadPart(zr, next)
		if err != nil {
			break
		}
		v := newShapeVisitor()
		if _, err := ooxml.Scan(data, ooxml.Drawing, v); err != nil {
			break
		}
		for _, s := range v.placeholders {
			if !s.placed {
				continue
			}
			for _, k := range s.keys() {
				if _, ok := out[k]; !ok {
					out[k] = s.pos
				}
			}
		}
		part = next
	}
	return out
}

// relatedPart returns the first part of relType that part links to.
func relatedPart(zr *zip.Reader, part, relType string) string {
	relsPart := path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
	if !ooxml.HasPart(zr, relsPart) {
		return ""
	}
	data, err := ooxml.ReadPart(zr, relsPart)
	if err != nil {
		return ""
	}
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return ""
	}
	for _, r := range rels.Items {
		if r.Type == relType {
			target := resolveTarget(path.Dir(part), r.Target)
			if ooxml.HasPart(zr, target) {
				return target
			}
		}
	}
	return ""
}
