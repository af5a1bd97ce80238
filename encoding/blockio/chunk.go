package blockio

import (
	"io"
	"io/ioutil"
	"runtime"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/htsio/encoding/bgzf"
)

// ChunkReader bounds a Reader to one chunk of its container: Read and
// ReadByte return io.EOF once the reader's virtual offset reaches the
// chunk's end.  When the chunk ends on a record boundary, as index
// chunks do, the bounded stream holds whole records.  The bound holds
// across empty blocks inside the chunk, such as the mid-stream
// terminators of concatenated containers.
//
// The ChunkReader does not own the Reader; the caller may rebound the
// same Reader by constructing a new ChunkReader over it.
type ChunkReader struct {
	r   Reader
	end bgzf.VOffset
}

// NewChunkReader seeks r to the chunk's begin offset and bounds it to
// the chunk's end.
func NewChunkReader(r Reader, c bgzf.Chunk) (*ChunkReader, error) {
	if err := r.Seek(c.Begin); err != nil {
		return nil, err
	}
	return &ChunkReader{r: r, end: c.End}, nil
}

func (c *ChunkReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	cur := c.r.VOffset()
	if cur >= c.end {
		return 0, io.EOF
	}
	// Reads never span blocks, so only the chunk's final block needs a
	// cap.
	inLast := cur.File() == c.end.File()
	if inLast {
		if rem := int(c.end.Block() - cur.Block()); len(p) > rem {
			p = p[:rem]
		}
	}
	n, err := c.r.Read(p)
	// Skipped empty blocks can land a read in the chunk's final block,
	// or past it, without the cap above having applied.  Such a read
	// starts at its block's first byte, so exactly end.Block() of its
	// bytes precede the bound.
	if !inLast && n > 0 && c.r.VOffset() > c.end {
		if valid := int(c.end.Block()); n > valid {
			n = valid
		}
		if n == 0 {
			return 0, io.EOF
		}
	}
	return n, err
}

func (c *ChunkReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := c.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// VOffset returns the virtual offset of the next byte, letting callers
// record the spans of records they scan out of the chunk.
func (c *ChunkReader) VOffset() bgzf.VOffset { return c.r.VOffset() }

// ReadChunksOpts controls ReadChunks.
type ReadChunksOpts struct {
	// Parallelism bounds the number of concurrent readers.  Zero means
	// runtime.NumCPU().
	Parallelism int
}

// ReadChunks materializes the payload bytes of every chunk, in parallel.
// Chunks are divided among up to opts.Parallelism workers, each reading
// through its own Reader from opener, so the chunks may come from an
// index query against a file being read by others.  The result has one
// entry per chunk, in chunk order.
func ReadChunks(opener func() (Reader, error), chunks []bgzf.Chunk, opts ReadChunksOpts) ([][]byte, error) {
	bufs := make([][]byte, len(chunks))
	if len(chunks) == 0 {
		return bufs, nil
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > len(chunks) {
		parallelism = len(chunks)
	}
	log.Debug.Printf("reading %d chunks with %d readers", len(chunks), parallelism)
	err := traverse.Each(parallelism, func(job int) error {
		r, err := opener()
		if err != nil {
			return err
		}
		defer r.Close() // nolint: errcheck
		for i := job * len(chunks) / parallelism; i < (job+1)*len(chunks)/parallelism; i++ {
			cr, err := NewChunkReader(r, chunks[i])
			if err != nil {
				return err
			}
			if bufs[i], err = ioutil.ReadAll(cr); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bufs, nil
}
