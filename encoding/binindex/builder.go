package binindex

import (
	"math"

	"github.com/grailbio/htsio/encoding/bgzf"
	"github.com/grailbio/htsio/genomics"
	"github.com/pkg/errors"
)

// ErrOutOfOrder is the cause of errors returned by Builder.Add when records
// arrive out of (reference, start) order.
var ErrOutOfOrder = errors.New("binindex: records out of order")

// unsetVOffset marks a linear index window no record has touched yet.  The
// zero virtual offset cannot serve as the marker because it addresses the
// first payload byte of the file.
const unsetVOffset = bgzf.VOffset(math.MaxUint64)

// Builder assembles an Index from a position-sorted record stream.  Records
// must arrive ordered by (reference, start), with unplaced records, if any,
// after the records of every reference.  Call Add once per record and Build
// once at the end.
//
// A Builder is not safe for concurrent use, and building is strictly
// sequential: feeding it from a single pass over the data file is the
// intended use.
type Builder struct {
	scheme   Scheme
	refs     []ReferenceIndex
	prevSort int32
	prevPos  int
	unplaced uint64
	done     bool
}

// NewBuilder returns a Builder for a data file with numRefs reference
// sequences, assigning bins according to scheme.
func NewBuilder(scheme Scheme, numRefs int) (*Builder, error) {
	if err := scheme.check(); err != nil {
		return nil, err
	}
	if numRefs < 0 {
		return nil, errors.Errorf("binindex: negative reference count %d", numRefs)
	}
	return &Builder{
		scheme: scheme,
		refs:   make([]ReferenceIndex, numRefs),
	}, nil
}

// Add records one record's placement: the reference it is on, its
// zero-based half-open position interval [start, end), the virtual offset
// span of its encoded bytes, and whether it counts as mapped in the
// reference's metadata.  A zero-length interval is treated as covering one
// position.  Records with refID genomics.UnmappedRefID only increment the
// unplaced count; their coordinates are ignored.
//
// Add returns an error wrapping ErrOutOfOrder if the record sorts before
// its predecessor, and a plain error for unknown references or coordinates
// the scheme cannot address.
func (b *Builder) Add(refID int32, start, end int, span bgzf.Chunk, mapped bool) error {
	if b.done {
		return errors.New("binindex: Add after Build")
	}
	if refID == genomics.UnmappedRefID {
		b.prevSort = math.MaxInt32
		b.unplaced++
		return nil
	}
	if refID < 0 || int(refID) >= len(b.refs) {
		return errors.Errorf("binindex: unknown reference %d (index has %d)", refID, len(b.refs))
	}
	if refID < b.prevSort || (refID == b.prevSort && start < b.prevPos) {
		if b.prevSort == math.MaxInt32 {
			return errors.Wrapf(ErrOutOfOrder, "reference %d position %d after unplaced records", refID, start)
		}
		return errors.Wrapf(ErrOutOfOrder, "reference %d position %d after reference %d position %d",
			refID, start, b.prevSort, b.prevPos)
	}
	if start < 0 {
		return errors.Errorf("binindex: negative position %d", start)
	}
	if end <= start {
		end = start + 1
	}
	if end > b.scheme.MaxPosition() {
		return errors.Errorf("binindex: interval [%d,%d) ends beyond the scheme's maximum position %d",
			start, end, b.scheme.MaxPosition())
	}
	b.prevSort = refID
	b.prevPos = start

	ref := &b.refs[refID]
	if ref.Bins == nil {
		ref.Bins = make(map[uint32]*Bin)
	}

	binID := b.scheme.Bin(start, end)
	bin := ref.Bins[binID]
	if bin == nil {
		bin = &Bin{ID: binID}
		ref.Bins[binID] = bin
	}
	// Coalesce eagerly: if the record begins in the compressed block where
	// the bin's last chunk ends, or earlier, extend that chunk instead of
	// starting a new one.
	if n := len(bin.Chunks); n > 0 &&
		(span.Begin <= bin.Chunks[n-1].End || span.Begin.File() == bin.Chunks[n-1].End.File()) {
		if span.End > bin.Chunks[n-1].End {
			bin.Chunks[n-1].End = span.End
		}
	} else {
		bin.Chunks = append(bin.Chunks, span)
	}

	// Track the lowest record offset per linear index window.
	shift := uint(b.scheme.MinShift)
	for w := start >> shift; w <= (end-1)>>shift; w++ {
		for len(ref.Linear) <= w {
			ref.Linear = append(ref.Linear, unsetVOffset)
		}
		if span.Begin < ref.Linear[w] {
			ref.Linear[w] = span.Begin
		}
	}

	if ref.Meta == nil {
		ref.Meta = &Metadata{Start: span.Begin, End: span.End}
	}
	if span.Begin < ref.Meta.Start {
		ref.Meta.Start = span.Begin
	}
	if span.End > ref.Meta.End {
		ref.Meta.End = span.End
	}
	if mapped {
		ref.Meta.Mapped++
	} else {
		ref.Meta.Unmapped++
	}
	return nil
}

// Build finalizes and returns the index.  The Builder must not be used
// afterwards.
func (b *Builder) Build() *Index {
	b.done = true
	for i := range b.refs {
		ref := &b.refs[i]
		// Windows no record overlaps inherit the previous window's offset,
		// so linear pruning stays a sound lower bound on sparse
		// references.  Windows before the first record get zero.
		cur := bgzf.VOffset(0)
		for w := range ref.Linear {
			if ref.Linear[w] == unsetVOffset {
				ref.Linear[w] = cur
			} else {
				cur = ref.Linear[w]
			}
		}
		for _, bin := range ref.Bins {
			w := b.scheme.binStart(bin.ID) >> uint(b.scheme.MinShift)
			if w >= len(ref.Linear) {
				w = len(ref.Linear) - 1
			}
			bin.LOffset = ref.Linear[w]
		}
	}
	unplaced := b.unplaced
	return &Index{Scheme: b.scheme, Refs: b.refs, Unplaced: &unplaced}
}
