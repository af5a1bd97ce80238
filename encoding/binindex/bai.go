package binindex

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/grailbio/htsio/encoding/bgzf"
	"github.com/pkg/errors"
)

var baiMagic = [4]byte{'B', 'A', 'I', 0x1}

// ReadBAI parses a .bai index from r.  The .bai format hard-codes the
// classic binning scheme, so the returned index always has Scheme ==
// Classic.  Per-bin LOffsets are not stored by the format and are left
// zero.
func ReadBAI(r io.Reader) (*Index, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, errors.Wrap(err, "binindex: reading bai magic")
	}
	if magic != baiMagic {
		return nil, errors.Errorf("binindex: invalid bai magic: %v", magic)
	}

	var refCount int32
	if err := binary.Read(r, binary.LittleEndian, &refCount); err != nil {
		return nil, errors.Wrap(err, "binindex: reading reference count")
	}
	if refCount < 0 {
		return nil, errors.Errorf("binindex: negative reference count %d", refCount)
	}
	idx := &Index{
		Scheme: Classic,
		Refs:   make([]ReferenceIndex, 0, prealloc(refCount)),
	}
	metaBin := Classic.MetadataBinID()

	for refID := 0; int32(refID) < refCount; refID++ {
		var binCount int32
		if err := binary.Read(r, binary.LittleEndian, &binCount); err != nil {
			return nil, errors.Wrapf(err, "binindex: reading bin count of reference %d", refID)
		}
		ref := ReferenceIndex{}
		if binCount > 0 {
			ref.Bins = make(map[uint32]*Bin, prealloc(binCount))
		}
		for b := 0; int32(b) < binCount; b++ {
			var binNum uint32
			if err := binary.Read(r, binary.LittleEndian, &binNum); err != nil {
				return nil, errors.Wrapf(err, "binindex: reading bin of reference %d", refID)
			}
			chunks, err := readChunks(r)
			if err != nil {
				return nil, errors.Wrapf(err, "binindex: reading bin %d of reference %d", binNum, refID)
			}

			if binNum == metaBin {
				// The metadata pseudo-bin carries counts, not chunks.
				if len(chunks) != 2 {
					return nil, errors.Errorf("binindex: metadata pseudo-bin has %d chunks, should have 2", len(chunks))
				}
				ref.Meta = &Metadata{
					Start:    chunks[0].Begin,
					End:      chunks[0].End,
					Mapped:   uint64(chunks[1].Begin),
					Unmapped: uint64(chunks[1].End),
				}
				continue
			}
			if binNum >= metaBin {
				return nil, errors.Errorf("binindex: bin id %d out of range for reference %d", binNum, refID)
			}
			ref.Bins[binNum] = &Bin{ID: binNum, Chunks: chunks}
		}

		var intervalCount int32
		if err := binary.Read(r, binary.LittleEndian, &intervalCount); err != nil {
			return nil, errors.Wrapf(err, "binindex: reading interval count of reference %d", refID)
		}
		if intervalCount > 0 {
			ref.Linear = make([]bgzf.VOffset, 0, prealloc(intervalCount))
			for i := int32(0); i < intervalCount; i++ {
				var v bgzf.VOffset
				if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
					return nil, errors.Wrapf(err, "binindex: reading linear index of reference %d", refID)
				}
				ref.Linear = append(ref.Linear, v)
			}
		}
		idx.Refs = append(idx.Refs, ref)
	}

	// The trailing count of unplaced records is optional.
	var unplaced uint64
	if err := binary.Read(r, binary.LittleEndian, &unplaced); err == nil {
		idx.Unplaced = &unplaced
	} else if err != io.EOF {
		return nil, errors.Wrap(err, "binindex: reading unplaced record count")
	}
	return idx, nil
}

// WriteBAI writes idx to w in the .bai format.  The format hard-codes the
// classic binning scheme; indexes built with any other scheme must use
// WriteCSI instead.  Bins are written in ascending id order with the
// metadata pseudo-bin, when present, last.
func WriteBAI(w io.Writer, idx *Index) error {
	if idx.Scheme != Classic {
		return errors.Errorf("binindex: the bai format requires the classic scheme %+v, index has %+v",
			Classic, idx.Scheme)
	}
	if _, err := w.Write(baiMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(len(idx.Refs))); err != nil {
		return err
	}
	for refID := range idx.Refs {
		ref := &idx.Refs[refID]
		binCount := int32(len(ref.Bins))
		if ref.Meta != nil {
			binCount++
		}
		if err := binary.Write(w, binary.LittleEndian, binCount); err != nil {
			return err
		}
		for _, bin := range sortedBins(ref.Bins) {
			if err := binary.Write(w, binary.LittleEndian, bin.ID); err != nil {
				return err
			}
			if err := writeChunks(w, bin.Chunks); err != nil {
				return errors.Wrapf(err, "binindex: writing bin %d of reference %d", bin.ID, refID)
			}
		}
		if ref.Meta != nil {
			if err := binary.Write(w, binary.LittleEndian, Classic.MetadataBinID()); err != nil {
				return err
			}
			pseudo := []bgzf.Chunk{
				{Begin: ref.Meta.Start, End: ref.Meta.End},
				{Begin: bgzf.VOffset(ref.Meta.Mapped), End: bgzf.VOffset(ref.Meta.Unmapped)},
			}
			if err := writeChunks(w, pseudo); err != nil {
				return errors.Wrapf(err, "binindex: writing metadata of reference %d", refID)
			}
		}
		if err := binary.Write(w, binary.LittleEndian, int32(len(ref.Linear))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, ref.Linear); err != nil {
			return err
		}
	}
	if idx.Unplaced != nil {
		if err := binary.Write(w, binary.LittleEndian, *idx.Unplaced); err != nil {
			return err
		}
	}
	return nil
}

// preallocLimit caps slice and map preallocation driven by counts read
// from an index file.  A corrupt count then fails on a short read
// instead of demanding gigabytes up front.
const preallocLimit = 1 << 16

func prealloc(count int32) int {
	if count > preallocLimit {
		return preallocLimit
	}
	return int(count)
}

func readChunks(r io.Reader) ([]bgzf.Chunk, error) {
	var chunkCount int32
	if err := binary.Read(r, binary.LittleEndian, &chunkCount); err != nil {
		return nil, errors.Wrap(err, "reading chunk count")
	}
	if chunkCount < 0 {
		return nil, errors.Errorf("negative chunk count %d", chunkCount)
	}
	chunks := make([]bgzf.Chunk, 0, prealloc(chunkCount))
	for i := int32(0); i < chunkCount; i++ {
		var c bgzf.Chunk
		if err := binary.Read(r, binary.LittleEndian, &c); err != nil {
			return nil, errors.Wrap(err, "reading chunks")
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func writeChunks(w io.Writer, chunks []bgzf.Chunk) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(chunks))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, chunks)
}

// sortedBins returns the map's bins in ascending id order, the order the
// persistence formats use.
func sortedBins(bins map[uint32]*Bin) []*Bin {
	sorted := make([]*Bin, 0, len(bins))
	for _, bin := range bins {
		sorted = append(sorted, bin)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}
