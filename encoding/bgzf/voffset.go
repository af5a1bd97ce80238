package bgzf

import (
	"fmt"
	"sort"
)

// VOffset is a virtual offset: a stable address of one payload byte in a
// bgzf file.  The upper 48 bits hold the file offset of the start of the
// gzip block containing the byte; the lower 16 bits hold the byte's offset
// within the decompressed block.  Virtual offsets compare in payload order,
// and the zero value addresses the first payload byte of the file.
type VOffset uint64

// MakeVOffset composes a virtual offset from a block's file offset and an
// offset within the decompressed block.
func MakeVOffset(coffset int64, uoffset uint16) VOffset {
	return VOffset(coffset)<<16 | VOffset(uoffset)
}

// File returns the file offset of the start of the block.
func (v VOffset) File() int64 {
	return int64(v >> 16)
}

// Block returns the offset within the decompressed block.
func (v VOffset) Block() uint16 {
	return uint16(v)
}

func (v VOffset) String() string {
	return fmt.Sprintf("%d:%d", v.File(), v.Block())
}

// Chunk is a half-open range [Begin, End) of virtual offsets.  Index
// queries hand out chunks whose boundaries coincide with record boundaries
// in the underlying file.
type Chunk struct {
	Begin, End VOffset
}

func (c Chunk) String() string {
	return fmt.Sprintf("[%v,%v)", c.Begin, c.End)
}

// MergeChunks returns a minimal Begin-sorted list of chunks covering the
// same virtual offsets as chunks.  Chunks that overlap or abut are
// coalesced.  The input is not modified.
func MergeChunks(chunks []Chunk) []Chunk {
	if len(chunks) <= 1 {
		return append([]Chunk(nil), chunks...)
	}
	sorted := append([]Chunk(nil), chunks...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Begin != sorted[j].Begin {
			return sorted[i].Begin < sorted[j].Begin
		}
		return sorted[i].End < sorted[j].End
	})
	merged := sorted[:1]
	for _, c := range sorted[1:] {
		last := &merged[len(merged)-1]
		if c.Begin <= last.End {
			if c.End > last.End {
				last.End = c.End
			}
			continue
		}
		merged = append(merged, c)
	}
	return merged
}
