// Package blockio defines narrow reader and writer interfaces over
// positionable block containers, so that code handling records does not
// care which container holds them.  Two containers implement the
// interfaces: the bgzf compressed container and a plain uncompressed
// file.
//
// Records never straddle a container block, and a virtual offset taken
// from a Writer is meaningful to any Reader over the resulting file, so
// the index machinery works unchanged over either variant.  An index
// file itself stays bound to the container file whose offsets it
// records.
package blockio

import (
	"io"

	"github.com/grailbio/htsio/encoding/bgzf"
)

// Reader reads a block container sequentially and supports repositioning
// by virtual offset.  Implementations are not safe for concurrent use;
// open one Reader per goroutine instead.
type Reader interface {
	// Read fills p with payload bytes.  A single call returns bytes from
	// at most one container block.
	io.Reader
	io.ByteReader

	// Seek repositions the reader.
	//
	// REQUIRES: v was produced by a Writer or Reader over the same file.
	Seek(v bgzf.VOffset) error

	// VOffset returns the virtual offset of the next byte Read will
	// return.
	VOffset() bgzf.VOffset

	// Close releases the reader's resources.  It does not close the
	// underlying stream.
	Close() error
}

// Writer appends payload bytes to a block container.  Implementations
// are not safe for concurrent use.
type Writer interface {
	io.Writer

	// Flush ends the current block.  Calling it on a record boundary
	// keeps later records addressable from the block's start.
	Flush() error

	// VOffset returns the virtual offset the next written byte will have.
	// A record's span is the pair of offsets taken before and after
	// writing it.
	VOffset() bgzf.VOffset

	// Close flushes buffered data and finalizes the container.  It does
	// not close the underlying stream.
	Close() error
}

// NewReader returns a Reader over a bgzf container.  If r also implements
// io.ReadSeeker, the Reader supports Seek.
func NewReader(r io.Reader) Reader {
	return bgzf.NewReader(r)
}

// NewWriter returns a Writer producing a bgzf container with the given
// compression level.
func NewWriter(w io.Writer, level int) (Writer, error) {
	return bgzf.NewWriter(w, level)
}
