package binindex

import (
	"github.com/grailbio/htsio/encoding/bgzf"
	"github.com/grailbio/htsio/genomics"
)

// Bin holds the file chunks of the records assigned to one bin.
type Bin struct {
	ID uint32

	// LOffset is the lowest virtual offset of any record overlapping the
	// bin's span.  It is stored by the .csi format in place of a linear
	// index; the .bai format does not carry it.
	LOffset bgzf.VOffset

	// Chunks are Begin-sorted virtual offset ranges that together contain
	// every record assigned to the bin.
	Chunks []bgzf.Chunk
}

// Metadata summarizes the records of one reference sequence.
type Metadata struct {
	// Start and End delimit the virtual offset span of the reference's
	// records in the data file.
	Start, End bgzf.VOffset

	// Mapped and Unmapped count the reference's records by mapping state.
	Mapped, Unmapped uint64
}

// ReferenceIndex indexes the records of one reference sequence.  A
// reference with no records has a nil or empty Bins map.
type ReferenceIndex struct {
	// Bins maps bin id to the bin's chunk list.  Only populated bins are
	// present.
	Bins map[uint32]*Bin

	// Linear holds, for each WindowSize()-wide window of the reference,
	// the lowest virtual offset of any record overlapping the window.
	// Windows before the first record hold zero.  Indexes loaded from
	// .csi files have no linear index; queries then skip linear pruning.
	Linear []bgzf.VOffset

	// Meta, if present, summarizes the reference's records.
	Meta *Metadata
}

// Index is a hierarchical binning index over one position-sorted data
// file.  It is built by a Builder or loaded by ReadBAI or ReadCSI, and is
// safe for concurrent queries once built.
type Index struct {
	Scheme Scheme

	// Refs has one entry per reference sequence of the indexed file, in
	// file order.
	Refs []ReferenceIndex

	// Unplaced counts the records with no reference assignment, if known.
	Unplaced *uint64

	// Aux holds uninterpreted auxiliary data carried by the .csi format.
	Aux []byte
}

// Chunks returns a minimal Begin-sorted list of chunks that together
// contain every record overlapping region.  The chunks may also contain
// some records outside the region: a reader must still filter by position.
// Queries for references the index does not know, or intervals that cover
// no records, return nil rather than an error.  Chunks does not modify the
// index, so concurrent queries are safe.
func (idx *Index) Chunks(region genomics.Region) []bgzf.Chunk {
	if region.RefID < 0 || int(region.RefID) >= len(idx.Refs) {
		return nil
	}
	start, end := region.Start, region.End
	if start < 0 {
		start = 0
	}
	if max := idx.Scheme.MaxPosition(); end > max {
		end = max
	}
	if end <= start {
		return nil
	}
	ref := &idx.Refs[region.RefID]
	if len(ref.Bins) == 0 {
		return nil
	}

	// The linear index gives a lower bound on the virtual offset of any
	// record overlapping the query: chunks that end before it hold only
	// earlier records.
	var minOffset bgzf.VOffset
	if len(ref.Linear) > 0 {
		w := start >> uint(idx.Scheme.MinShift)
		if w >= len(ref.Linear) {
			w = len(ref.Linear) - 1
		}
		minOffset = ref.Linear[w]
	}

	var chunks []bgzf.Chunk
	for _, id := range idx.Scheme.QueryBins(start, end) {
		bin, ok := ref.Bins[id]
		if !ok {
			continue
		}
		for _, c := range bin.Chunks {
			if c.End < minOffset {
				continue
			}
			chunks = append(chunks, c)
		}
	}
	return bgzf.MergeChunks(chunks)
}

// ChunksForRegions returns merged chunks covering every region in the set.
func (idx *Index) ChunksForRegions(set *genomics.RegionSet) []bgzf.Chunk {
	var all []bgzf.Chunk
	for _, r := range set.Regions() {
		all = append(all, idx.Chunks(r)...)
	}
	return bgzf.MergeChunks(all)
}

// MappedSpan returns the virtual offset span of one reference's records,
// if the index carries that metadata.  Everything from the span's End to
// the end of the file belongs to later references or to unplaced records.
func (idx *Index) MappedSpan(refID int32) (bgzf.Chunk, bool) {
	if refID < 0 || int(refID) >= len(idx.Refs) || idx.Refs[refID].Meta == nil {
		return bgzf.Chunk{}, false
	}
	m := idx.Refs[refID].Meta
	return bgzf.Chunk{Begin: m.Start, End: m.End}, true
}
