package domain

import (
	"errors"
	"fmt"
	"io"
	"sort"
)

// Source is a readable artifact handle.
type Source interface {
	io.ReaderAt
	Size() int64
	Name() string
}

// PositionalMap records where each block's text lives in the source artifact.
// Only the codec that produced it interprets it.
type PositionalMap interface {
	Kind() Kind
	BlockIDs() []string
}

// Extraction is the output of an extractor.
type Extraction struct {
	Kind   Kind
	Blocks []*Block
	Map    PositionalMap
}

// Validate checks ids are unique, order indexes strictly increase, and the
// map and blocks are in bijection.
func (e *Extraction) Validate() error {
	if e.Map == nil {
		return Extractionf("", "%s extraction has no positional map", e.Kind)
	}
	for i, b := range e.Blocks {
		if i > 0 && b.OrderIndex <= e.Blocks[i-1].OrderIndex {
			return Extractionf("", "block %s order index %d does not follow %d", b.ID, b.OrderIndex, e.Blocks[i-1].OrderIndex)
		}
	}
	if _, err := IndexBlocks(e.Map, e.Blocks); err != nil {
		var inner *Error
		if errors.As(err, &inner) {
			err = inner.Err
		}
		return &Error{Kind: ErrExtraction, Op: "validate", Err: err}
	}
	return nil
}

// IndexBlocks keys blocks by id after checking the bijection with m. Any
// mismatch is a ReconstructionError.
func IndexBlocks(m PositionalMap, blocks []*Block) (map[string]*Block, error) {
	byID := make(map[string]*Block, len(blocks))
	for _, b := range blocks {
		if _, dup := byID[b.ID]; dup {
			return nil, Reconstructionf("duplicate block id %q", b.ID)
		}
		byID[b.ID] = b
	}

	seen := make(map[string]bool, len(blocks))
	for _, id := range m.BlockIDs() {
		if seen[id] {
			return nil, Reconstructionf("location for block %q appears twice in %s map", id, m.Kind())
		}
		seen[id] = true
		if _, ok := byID[id]; !ok {
			return nil, Reconstructionf("block %q referenced by %s map is missing", id, m.Kind())
		}
	}
	if len(seen) != len(byID) {
		var extra []string
		for id := range byID {
			if !seen[id] {
				extra = append(extra, id)
			}
		}
		sort.Strings(extra)
		return nil, Reconstructionf("%d block(s) have no location in %s map: %v", len(extra), m.Kind(), extra)
	}
	return byID, nil
}

// SortByOrder sorts blocks by OrderIndex in place.
func SortByOrder(blocks []*Block) {
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].OrderIndex < blocks[j].OrderIndex
	})
}

// Texts returns the reconstruction output of blocks in order-index order.
func Texts(blocks []*Block) []string {
	sorted := append([]*Block(nil), blocks...)
	SortByOrder(sorted)
	out := make([]string, len(sorted))
	for i, b := range sorted {
		out[i] = b.Output()
	}
	return out
}

// IDList is a PositionalMap helper for codecs whose map is a flat id list.
type IDList struct {
	ArtifactKind Kind
	IDs          []string
}

func (l IDList) Kind() Kind         { return l.ArtifactKind }
func (l IDList) BlockIDs() []string { return l.IDs }

func (l IDList) String() string {
	return fmt.Sprintf("%s map (%d locations)", l.ArtifactKind, len(l.IDs))
}
