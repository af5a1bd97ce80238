package blockio

import (
	"bufio"
	"io"

	"github.com/grailbio/htsio/encoding/bgzf"
	"github.com/pkg/errors"
)

// The plain container stores the payload uncompressed and treats each
// aligned 64 KiB span of the file as one block.  A byte at offset o has
// virtual offset (o &^ 0xffff, o & 0xffff), which orders the same way as
// o itself.
const pageSize = 1 << 16

type plainReader struct {
	rs  io.ReadSeeker
	br  *bufio.Reader
	pos int64
}

// NewPlainReader returns a Reader over an uncompressed file.
//
// REQUIRES: rs is positioned at the start of the file.
func NewPlainReader(rs io.ReadSeeker) Reader {
	return &plainReader{rs: rs, br: bufio.NewReader(rs)}
}

func (r *plainReader) Read(p []byte) (int, error) {
	if rem := pageSize - int(r.pos&(pageSize-1)); len(p) > rem {
		p = p[:rem]
	}
	n, err := r.br.Read(p)
	r.pos += int64(n)
	return n, err
}

func (r *plainReader) ReadByte() (byte, error) {
	b, err := r.br.ReadByte()
	if err == nil {
		r.pos++
	}
	return b, err
}

func (r *plainReader) Seek(v bgzf.VOffset) error {
	pos := v.File() + int64(v.Block())
	if _, err := r.rs.Seek(pos, io.SeekStart); err != nil {
		return errors.Wrapf(err, "blockio: seeking to %v", v)
	}
	r.br.Reset(r.rs)
	r.pos = pos
	return nil
}

func (r *plainReader) VOffset() bgzf.VOffset {
	return bgzf.MakeVOffset(r.pos&^(pageSize-1), uint16(r.pos&(pageSize-1)))
}

func (r *plainReader) Close() error { return nil }

type plainWriter struct {
	bw  *bufio.Writer
	pos int64
}

// NewPlainWriter returns a Writer that stores the payload uncompressed.
func NewPlainWriter(w io.Writer) Writer {
	return &plainWriter{bw: bufio.NewWriter(w)}
}

func (w *plainWriter) Write(p []byte) (int, error) {
	n, err := w.bw.Write(p)
	w.pos += int64(n)
	return n, err
}

func (w *plainWriter) Flush() error { return w.bw.Flush() }

func (w *plainWriter) VOffset() bgzf.VOffset {
	return bgzf.MakeVOffset(w.pos&^(pageSize-1), uint16(w.pos&(pageSize-1)))
}

func (w *plainWriter) Close() error { return w.bw.Flush() }
