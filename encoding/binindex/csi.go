package binindex

import (
	"encoding/binary"
	"io"
	"io/ioutil"

	"github.com/grailbio/htsio/encoding/bgzf"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

var csiMagic = [4]byte{'C', 'S', 'I', 0x1}

// ReadCSI parses a .csi index from r.  Unlike .bai, the .csi format
// carries its binning scheme in the header and can address positions
// beyond 2^29, and its payload is itself a bgzf stream.  The format
// stores a per-bin LOffset instead of a linear index, so the returned
// index has empty Linear slices and queries on it skip linear pruning.
func ReadCSI(r io.Reader) (idx *Index, err error) {
	cr := bgzf.NewReader(r)
	defer func() {
		if cerr := cr.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var magic [4]byte
	if _, err := io.ReadFull(cr, magic[:]); err != nil {
		return nil, errors.Wrap(err, "binindex: reading csi magic")
	}
	if magic != csiMagic {
		return nil, errors.Errorf("binindex: invalid csi magic: %v", magic)
	}

	var minShift, depth, auxLen int32
	for _, v := range []*int32{&minShift, &depth, &auxLen} {
		if err := binary.Read(cr, binary.LittleEndian, v); err != nil {
			return nil, errors.Wrap(err, "binindex: reading csi header")
		}
	}
	scheme := Scheme{MinShift: minShift, Depth: depth}
	if err := scheme.check(); err != nil {
		return nil, err
	}
	if auxLen < 0 {
		return nil, errors.Errorf("binindex: negative aux length %d", auxLen)
	}
	idx = &Index{Scheme: scheme}
	if auxLen > 0 {
		aux, err := ioutil.ReadAll(io.LimitReader(cr, int64(auxLen)))
		if err != nil {
			return nil, errors.Wrap(err, "binindex: reading csi aux data")
		}
		if int32(len(aux)) != auxLen {
			return nil, errors.Wrap(io.ErrUnexpectedEOF, "binindex: reading csi aux data")
		}
		idx.Aux = aux
	}

	var refCount int32
	if err := binary.Read(cr, binary.LittleEndian, &refCount); err != nil {
		return nil, errors.Wrap(err, "binindex: reading reference count")
	}
	if refCount < 0 {
		return nil, errors.Errorf("binindex: negative reference count %d", refCount)
	}
	idx.Refs = make([]ReferenceIndex, 0, prealloc(refCount))
	metaBin := scheme.MetadataBinID()

	for refID := 0; int32(refID) < refCount; refID++ {
		var binCount int32
		if err := binary.Read(cr, binary.LittleEndian, &binCount); err != nil {
			return nil, errors.Wrapf(err, "binindex: reading bin count of reference %d", refID)
		}
		ref := ReferenceIndex{}
		if binCount > 0 {
			ref.Bins = make(map[uint32]*Bin, prealloc(binCount))
		}
		for b := 0; int32(b) < binCount; b++ {
			var binNum uint32
			if err := binary.Read(cr, binary.LittleEndian, &binNum); err != nil {
				return nil, errors.Wrapf(err, "binindex: reading bin of reference %d", refID)
			}
			var loffset uint64
			if err := binary.Read(cr, binary.LittleEndian, &loffset); err != nil {
				return nil, errors.Wrapf(err, "binindex: reading loffset of bin %d of reference %d", binNum, refID)
			}
			chunks, err := readChunks(cr)
			if err != nil {
				return nil, errors.Wrapf(err, "binindex: reading bin %d of reference %d", binNum, refID)
			}

			if binNum == metaBin {
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
			ref.Bins[binNum] = &Bin{ID: binNum, LOffset: bgzf.VOffset(loffset), Chunks: chunks}
		}
		idx.Refs = append(idx.Refs, ref)
	}

	var unplaced uint64
	if err := binary.Read(cr, binary.LittleEndian, &unplaced); err == nil {
		idx.Unplaced = &unplaced
	} else if err != io.EOF {
		return nil, errors.Wrap(err, "binindex: reading unplaced record count")
	}
	return idx, nil
}

// WriteCSI writes idx to w in the .csi format, compressing the payload
// with bgzf.  Any scheme is accepted.  The linear index, if the index has
// one, is not stored: .csi readers prune with the per-bin LOffset instead.
func WriteCSI(w io.Writer, idx *Index) error {
	if err := idx.Scheme.check(); err != nil {
		return err
	}
	cw, err := bgzf.NewWriter(w, gzip.DefaultCompression)
	if err != nil {
		return err
	}
	if err := writeCSIBody(cw, idx); err != nil {
		return err
	}
	return cw.Close()
}

func writeCSIBody(w io.Writer, idx *Index) error {
	if _, err := w.Write(csiMagic[:]); err != nil {
		return err
	}
	hdr := []int32{idx.Scheme.MinShift, idx.Scheme.Depth, int32(len(idx.Aux))}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if _, err := w.Write(idx.Aux); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(len(idx.Refs))); err != nil {
		return err
	}
	metaBin := idx.Scheme.MetadataBinID()
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
			if err := binary.Write(w, binary.LittleEndian, uint64(bin.LOffset)); err != nil {
				return err
			}
			if err := writeChunks(w, bin.Chunks); err != nil {
				return errors.Wrapf(err, "binindex: writing bin %d of reference %d", bin.ID, refID)
			}
		}
		if ref.Meta != nil {
			if err := binary.Write(w, binary.LittleEndian, metaBin); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, uint64(0)); err != nil {
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
	}
	if idx.Unplaced != nil {
		if err := binary.Write(w, binary.LittleEndian, *idx.Unplaced); err != nil {
			return err
		}
	}
	return nil
}
