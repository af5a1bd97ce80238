package bgzf

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	// DefaultUncompressedBlockSize is the default bgzf
	// uncompressedBlockSize chosen by both sambamba and biogo.  See
	// the SAM/BAM specification for details.
	DefaultUncompressedBlockSize = 0x0ff00

	// MaxUncompressedBlockSize is the largest legal value for
	// uncompressedBlockSize.  Illumina's Nextseq machines use this
	// value when creating .bcl.bgzf files.
	MaxUncompressedBlockSize = 0x10000

	// compressedBlockSize is the maximum size of the compressed data
	// for a bgzf block.  See the SAM/BAM specification for details.
	compressedBlockSize = 0x10000

	// baseHeaderSize is the size of the fixed gzip header fields, up to
	// and including XLEN.
	baseHeaderSize = 12

	// footerSize is the size of the gzip footer: CRC32 plus ISIZE.
	footerSize = 8
)

var (
	// bgzfExtra goes into the gzip's Extra subfield, with subfield
	// ids: 66, 67, and length 2.  See the SAM/BAM spec.
	bgzfExtra       = [...]byte{66, 67, 2, 0, 0, 0}
	bgzfExtraPrefix = [...]byte{66, 67, 2, 0}

	// terminator is the bgzf EOF terminator.  It belongs at the end
	// of a valid bgzf file.  See the SAM/BAM spec.
	terminator = []byte{
		0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0x06, 0x00, 0x42, 0x43,
		0x02, 0x00, 0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
)

// ErrTruncated is returned by Reader when the stream ends before the EOF
// terminator block, for example when a partially written file is read to
// its end. Data returned before this error is still intact.
var ErrTruncated = errors.New("bgzf: truncated file")

// CorruptionError reports a malformed or checksum-failing block.  Offset is
// the file offset of the start of the bad block.
type CorruptionError struct {
	Offset int64
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("bgzf: corrupt block at offset %d: %s", e.Offset, e.Reason)
}

func corruptf(offset int64, format string, args ...interface{}) error {
	return &CorruptionError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// IsCorruption returns true if err (or its cause) reports block corruption
// rather than truncation or an I/O failure.
func IsCorruption(err error) bool {
	_, ok := errors.Cause(err).(*CorruptionError)
	return ok
}
