package bgzf

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storedHelloBlock is a complete bgzf block holding the payload "hello" in
// a stored (uncompressed) deflate block, the kind of block other tools
// emit for incompressible data.
var storedHelloBlock = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, // gzip header
	0x06, 0x00, 0x42, 0x43, 0x02, 0x00, 0x23, 0x00, // BC subfield, BSIZE=35
	0x01, 0x05, 0x00, 0xfa, 0xff, 'h', 'e', 'l', 'l', 'o', // stored deflate
	0x86, 0xa6, 0x10, 0x36, // CRC32("hello")
	0x05, 0x00, 0x00, 0x00, // ISIZE=5
}

func writeFile(t *testing.T, payload []byte, blockSize int) []byte {
	var buf bytes.Buffer
	w, err := NewWriterParams(&buf, gzip.DefaultCompression, blockSize)
	require.Nil(t, err)
	n, err := w.Write(payload)
	require.Nil(t, err)
	require.Equal(t, len(payload), n)
	require.Nil(t, w.Close())
	return buf.Bytes()
}

func TestReaderRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for _, length := range []int{0, 1, 100, 65279, 65280, 65281, 500000} {
		for _, blockSize := range []int{64, DefaultUncompressedBlockSize, MaxUncompressedBlockSize} {
			input := make([]byte, length)
			_, err := rnd.Read(input)
			require.Nil(t, err)

			file := writeFile(t, input, blockSize)
			r := NewReader(bytes.NewReader(file))
			actual, err := ioutil.ReadAll(r)
			require.Nil(t, err, "length %d blockSize %d", length, blockSize)
			assert.Equal(t, 0, bytes.Compare(input, actual), "length %d blockSize %d", length, blockSize)

			// After EOF the virtual offset addresses the end of the file.
			assert.Equal(t, MakeVOffset(int64(len(file)), 0), r.VOffset())
			require.Nil(t, r.Close())
		}
	}
}

func TestReaderByteAtATime(t *testing.T) {
	input := []byte("The quick brown fox jumps over the lazy dog")
	r := NewReader(bytes.NewReader(writeFile(t, input, 8)))
	var got []byte
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		require.Nil(t, err)
		got = append(got, b)
	}
	assert.Equal(t, input, got)
	// The error is sticky.
	_, err := r.ReadByte()
	assert.Equal(t, io.EOF, err)
}

func TestReaderStoredBlock(t *testing.T) {
	var file bytes.Buffer
	file.Write(storedHelloBlock)
	file.Write(terminator)

	r := NewReader(bytes.NewReader(file.Bytes()))
	got, err := ioutil.ReadAll(r)
	require.Nil(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestReaderConcatenated(t *testing.T) {
	// Complete files laid end to end form one valid stream; the
	// mid-stream terminators read as empty blocks and are skipped.
	var buf bytes.Buffer
	parts := []string{"hello", "world", "wide web"}
	var starts []int64
	for _, part := range parts {
		starts = append(starts, int64(buf.Len()))
		buf.Write(writeFile(t, []byte(part), 16))
	}

	r := NewReader(bytes.NewReader(buf.Bytes()))
	got, err := ioutil.ReadAll(r)
	require.Nil(t, err)
	assert.Equal(t, "helloworldwide web", string(got))
	assert.Equal(t, MakeVOffset(int64(buf.Len()), 0), r.VOffset())

	// Offsets into any constituent file work as usual.
	require.Nil(t, r.Seek(MakeVOffset(starts[1], 3)))
	rest, err := ioutil.ReadAll(r)
	require.Nil(t, err)
	assert.Equal(t, "ldwide web", string(rest))
	require.Nil(t, r.Close())
}

func TestReaderSeek(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriterParams(&buf, gzip.DefaultCompression, 16)
	require.Nil(t, err)
	var offsets []VOffset
	var records [][]byte
	for i := 0; i < 50; i++ {
		rec := []byte(fmt.Sprintf("record-%02d|", i))
		offsets = append(offsets, w.VOffset())
		_, err = w.Write(rec)
		require.Nil(t, err)
		records = append(records, rec)
		if i%7 == 0 {
			require.Nil(t, w.Flush())
		}
	}
	end := w.VOffset()
	require.Nil(t, w.Close())

	r := NewReader(bytes.NewReader(buf.Bytes()))
	perm := rand.New(rand.NewSource(2)).Perm(len(offsets))
	for _, i := range perm {
		require.Nil(t, r.Seek(offsets[i]), "record %d at %v", i, offsets[i])
		assert.Equal(t, offsets[i], r.VOffset())
		got := make([]byte, len(records[i]))
		_, err := io.ReadFull(r, got)
		require.Nil(t, err)
		assert.Equal(t, records[i], got, "record %d at %v", i, offsets[i])
	}

	// Seeking to the end-of-payload offset yields a clean EOF.
	require.Nil(t, r.Seek(end))
	_, err = r.ReadByte()
	assert.Equal(t, io.EOF, err)

	// An intra-block offset beyond the block payload is rejected.
	err = r.Seek(MakeVOffset(offsets[0].File(), 0xffff))
	assert.NotNil(t, err)
}

func TestReaderSeekUnsupported(t *testing.T) {
	file := writeFile(t, []byte("abc"), 16)
	r := NewReader(struct{ io.Reader }{bytes.NewReader(file)})
	err := r.Seek(MakeVOffset(0, 1))
	assert.NotNil(t, err)
	// Sequential reading still works.
	got, err := ioutil.ReadAll(r)
	require.Nil(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestReaderTruncated(t *testing.T) {
	file := writeFile(t, []byte("some payload that spans a few blocks"), 8)

	// Missing terminator.
	r := NewReader(bytes.NewReader(file[:len(file)-len(terminator)]))
	got, err := readAllBytes(r)
	assert.Equal(t, ErrTruncated, err)
	assert.Equal(t, "some payload that spans a few blocks", string(got))

	// Cut in the middle of a block.
	r = NewReader(bytes.NewReader(file[:len(file)-len(terminator)-3]))
	_, err = readAllBytes(r)
	assert.Equal(t, ErrTruncated, err)
	assert.False(t, IsCorruption(err))

	// Empty input has no terminator either.
	r = NewReader(bytes.NewReader(nil))
	_, err = r.ReadByte()
	assert.Equal(t, ErrTruncated, err)
}

func TestReaderCorrupt(t *testing.T) {
	// Flipping a payload byte of a stored block leaves the framing valid
	// and trips the checksum.
	var file bytes.Buffer
	file.Write(storedHelloBlock)
	file.Write(terminator)
	corrupt := append([]byte(nil), file.Bytes()...)
	corrupt[23] = 'x' // the 'h' of "hello"
	r := NewReader(bytes.NewReader(corrupt))
	_, err := r.ReadByte()
	require.NotNil(t, err)
	assert.True(t, IsCorruption(err), "%v", err)
	assert.Contains(t, err.Error(), "checksum")

	// Bad gzip magic.
	corrupt = append([]byte(nil), file.Bytes()...)
	corrupt[0] = 0x42
	r = NewReader(bytes.NewReader(corrupt))
	_, err = r.ReadByte()
	require.NotNil(t, err)
	assert.True(t, IsCorruption(err))

	// The error names the offset of the bad block, not the file start.
	multi := writeFile(t, bytes.Repeat([]byte("0123456789abcdef"), 64), 64)
	rr := NewReader(bytes.NewReader(multi))
	var one [1]byte
	for rr.VOffset().File() == 0 { // consume the first block
		_, err = rr.Read(one[:])
		require.Nil(t, err)
	}
	secondBlock := rr.VOffset().File()

	corrupt = append([]byte(nil), multi...)
	corrupt[int(secondBlock)+1] = 0x00 // damage the second block's magic
	rr = NewReader(bytes.NewReader(corrupt))
	_, err = readAllBytes(rr)
	require.NotNil(t, err)
	cerr, ok := err.(*CorruptionError)
	require.True(t, ok, "%v", err)
	assert.Equal(t, secondBlock, cerr.Offset)
}

// readAllBytes reads r to its end, returning the bytes read and the
// terminal error (unlike ioutil.ReadAll, which hides io.EOF).
func readAllBytes(r io.Reader) ([]byte, error) {
	var got []byte
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			return got, nil
		}
		if err != nil {
			return got, err
		}
	}
}
