package bgzf

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Reader decompresses data in .bgzf format.  It reads the underlying
// stream one gzip block at a time and verifies each block's framing and
// checksum before surfacing any of its payload, so callers never observe
// bytes from a block that later turns out to be damaged.
//
// Reader implements io.Reader and io.ByteReader over the concatenated
// block payloads.  VOffset reports the virtual offset of the next payload
// byte, and Seek repositions the reader at an arbitrary virtual offset;
// Seek requires the underlying reader to implement io.ReadSeeker.
//
// A Reader is not safe for concurrent use.  To read several file regions
// in parallel, open one Reader per goroutine over separate handles of the
// same file.
type Reader struct {
	r  io.Reader
	rs io.ReadSeeker // non-nil iff r supports seeking

	coffset    int64  // file offset of the block after the current one
	blockStart int64  // file offset of the current block
	block      []byte // decompressed payload of the current block
	pos        int    // read cursor within block

	raw        []byte // staging buffer for one compressed block
	payloadBuf []byte // backing store for block
	blockRd    bytes.Reader
	gz         *gzip.Reader

	atMarker bool // the last parsed block was the EOF terminator
	err      error
}

// NewReader returns a Reader that decompresses the bgzf stream r.  If r
// implements io.ReadSeeker, the returned Reader supports Seek.
func NewReader(r io.Reader) *Reader {
	rd := &Reader{
		r:          r,
		raw:        make([]byte, compressedBlockSize),
		payloadBuf: make([]byte, MaxUncompressedBlockSize),
	}
	if rs, ok := r.(io.ReadSeeker); ok {
		rd.rs = rs
	}
	return rd
}

// Read fills p with decompressed payload bytes.  At the end of the stream
// it returns io.EOF if the EOF terminator block was present, and
// ErrTruncated otherwise.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	for r.pos == len(r.block) {
		if err := r.readBlock(); err != nil {
			r.err = err
			return 0, err
		}
	}
	n := copy(p, r.block[r.pos:])
	r.pos += n
	return n, nil
}

// ReadByte returns the next decompressed payload byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.err != nil {
		return 0, r.err
	}
	for r.pos == len(r.block) {
		if err := r.readBlock(); err != nil {
			r.err = err
			return 0, err
		}
	}
	b := r.block[r.pos]
	r.pos++
	return b, nil
}

// VOffset returns the virtual offset of the next byte Read will return.
// Before the first Read it is zero, the address of the first payload byte.
func (r *Reader) VOffset() VOffset {
	if r.pos == len(r.block) {
		return MakeVOffset(r.coffset, 0)
	}
	return MakeVOffset(r.blockStart, uint16(r.pos))
}

// Seek repositions the reader so that the next Read returns the byte at
// virtual offset v.  The underlying reader must implement io.ReadSeeker.
// Seeking to the virtual offset of the end of the file is allowed; the
// next Read then reports the end of the stream.
func (r *Reader) Seek(v VOffset) error {
	if r.rs == nil {
		return errors.New("bgzf: underlying reader does not support seeking")
	}
	if _, err := r.rs.Seek(v.File(), io.SeekStart); err != nil {
		return errors.Wrapf(err, "bgzf: seeking to %v", v)
	}
	r.err = nil
	r.coffset = v.File()
	r.blockStart = v.File()
	r.block = nil
	r.pos = 0
	r.atMarker = false
	if v.Block() != 0 {
		if err := r.readBlock(); err != nil {
			r.err = err
			return err
		}
		if int(v.Block()) > len(r.block) {
			err := errors.Errorf("bgzf: virtual offset %v points beyond the %d byte block payload",
				v, len(r.block))
			r.err = err
			return err
		}
		r.pos = int(v.Block())
	}
	return nil
}

// Close releases the reader's decompression state.  It does not close the
// underlying reader.
func (r *Reader) Close() error {
	if r.gz == nil {
		return nil
	}
	err := r.gz.Close()
	r.gz = nil
	return err
}

// readBlock reads and validates the next gzip block, replacing the current
// payload.  Blocks with empty payloads, including the EOF terminator, are
// skipped.  At the end of the stream readBlock returns io.EOF if the last
// block was the terminator and ErrTruncated otherwise.
func (r *Reader) readBlock() error {
	for {
		start := r.coffset
		hdr := r.raw[:baseHeaderSize]
		if _, err := io.ReadFull(r.r, hdr); err != nil {
			if err == io.EOF {
				if !r.atMarker {
					return ErrTruncated
				}
				return io.EOF
			}
			if err == io.ErrUnexpectedEOF {
				return ErrTruncated
			}
			return err
		}
		if hdr[0] != 0x1f || hdr[1] != 0x8b {
			return corruptf(start, "bad gzip magic %#02x%02x", hdr[0], hdr[1])
		}
		if hdr[2] != 8 {
			return corruptf(start, "unsupported compression method %d", hdr[2])
		}
		if hdr[3]&0x04 == 0 {
			return corruptf(start, "gzip FLG %#02x lacks the extra-field bit", hdr[3])
		}
		xlen := int(binary.LittleEndian.Uint16(hdr[10:12]))
		if baseHeaderSize+xlen+footerSize > compressedBlockSize {
			return corruptf(start, "gzip extra field of %d bytes leaves no room for a block", xlen)
		}
		if _, err := io.ReadFull(r.r, r.raw[baseHeaderSize:baseHeaderSize+xlen]); err != nil {
			return truncOr(err)
		}

		blockSize, err := bcBlockSize(start, r.raw[baseHeaderSize:baseHeaderSize+xlen])
		if err != nil {
			return err
		}
		if blockSize < baseHeaderSize+xlen+footerSize {
			return corruptf(start, "block size %d smaller than its own framing", blockSize)
		}
		if _, err := io.ReadFull(r.r, r.raw[baseHeaderSize+xlen:blockSize]); err != nil {
			return truncOr(err)
		}
		r.coffset += int64(blockSize)

		isize := binary.LittleEndian.Uint32(r.raw[blockSize-4 : blockSize])
		if isize > MaxUncompressedBlockSize {
			return corruptf(start, "decompressed block size %d exceeds %d", isize, MaxUncompressedBlockSize)
		}
		payload, err := r.inflate(r.raw[:blockSize], int(isize), start)
		if err != nil {
			return err
		}
		if isize == 0 {
			r.atMarker = bytes.Equal(r.raw[:blockSize], terminator)
			continue
		}
		r.atMarker = false
		r.blockStart = start
		r.block = payload
		r.pos = 0
		return nil
	}
}

// bcBlockSize extracts the total block size from the BC subfield of the
// gzip extra field.
func bcBlockSize(start int64, extra []byte) (int, error) {
	for i := 0; i+4 <= len(extra); {
		si1, si2 := extra[i], extra[i+1]
		slen := int(binary.LittleEndian.Uint16(extra[i+2 : i+4]))
		if si1 == 'B' && si2 == 'C' {
			if slen != 2 || i+6 > len(extra) {
				return 0, corruptf(start, "malformed BC subfield of length %d", slen)
			}
			return int(binary.LittleEndian.Uint16(extra[i+4:i+6])) + 1, nil
		}
		i += 4 + slen
	}
	return 0, corruptf(start, "no BC subfield in the gzip extra field")
}

// inflate decompresses one complete gzip member into r.payloadBuf and
// verifies its CRC32 and size trailer.
func (r *Reader) inflate(raw []byte, isize int, start int64) ([]byte, error) {
	r.blockRd.Reset(raw)
	if r.gz == nil {
		gz, err := gzip.NewReader(&r.blockRd)
		if err != nil {
			return nil, corruptf(start, "reading gzip header: %v", err)
		}
		r.gz = gz
	} else if err := r.gz.Reset(&r.blockRd); err != nil {
		return nil, corruptf(start, "reading gzip header: %v", err)
	}
	r.gz.Multistream(false)

	payload := r.payloadBuf[:isize]
	if _, err := io.ReadFull(r.gz, payload); err != nil {
		return nil, corruptf(start, "inflating block: %v", err)
	}
	// Drain the member to force the trailer check, and to catch payloads
	// longer than ISIZE claims.
	var tail [1]byte
	switch n, err := r.gz.Read(tail[:]); {
	case n != 0:
		return nil, corruptf(start, "block payload longer than its ISIZE %d", isize)
	case err == gzip.ErrChecksum:
		return nil, corruptf(start, "checksum mismatch")
	case err != io.EOF:
		return nil, corruptf(start, "finishing block: %v", err)
	}
	return payload, nil
}

func truncOr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrTruncated
	}
	return err
}
