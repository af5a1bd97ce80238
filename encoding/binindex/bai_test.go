package binindex

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/grailbio/htsio/encoding/bgzf"
	"github.com/grailbio/htsio/genomics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTestIndex returns an index with populated and empty references,
// multiple bin levels, per-reference metadata and an unplaced count.
func buildTestIndex(t *testing.T) *Index {
	b, err := NewBuilder(Classic, 3)
	require.NoError(t, err)
	require.NoError(t, b.Add(0, 100, 200, makeChunk(0, 0, 0, 100), true))
	require.NoError(t, b.Add(0, 16383, 16385, makeChunk(0, 100, 0, 200), true))
	require.NoError(t, b.Add(0, 50000, 50100, makeChunk(4000, 0, 4100, 0), false))
	require.NoError(t, b.Add(2, 123456, 123500, makeChunk(8000, 10, 8000, 500), true))
	require.NoError(t, b.Add(genomics.UnmappedRefID, 0, 0, bgzf.Chunk{}, false))
	return b.Build()
}

// packLE returns the little-endian serialization of parts: byte slices
// verbatim, everything else through encoding/binary.
func packLE(t *testing.T, parts ...interface{}) *bytes.Buffer {
	buf := &bytes.Buffer{}
	for _, p := range parts {
		if b, ok := p.([]byte); ok {
			buf.Write(b)
			continue
		}
		require.NoError(t, binary.Write(buf, binary.LittleEndian, p))
	}
	return buf
}

func TestBAIRoundTrip(t *testing.T) {
	idx := buildTestIndex(t)
	var buf bytes.Buffer
	require.NoError(t, WriteBAI(&buf, idx))

	got, err := ReadBAI(&buf)
	require.NoError(t, err)
	// The format does not carry per-bin LOffsets.
	for _, ref := range idx.Refs {
		for _, bin := range ref.Bins {
			bin.LOffset = 0
		}
	}
	assert.Equal(t, idx, got)
}

func TestBAINonClassicScheme(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBAI(&buf, &Index{Scheme: Scheme{MinShift: 15, Depth: 5}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classic")
}

func TestBAIBadInput(t *testing.T) {
	_, err := ReadBAI(bytes.NewReader([]byte{'B', 'A', 'M', 0x1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")

	_, err = ReadBAI(packLE(t, baiMagic[:], int32(-1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference count")

	// The metadata pseudo-bin must carry exactly two pseudo-chunks.
	_, err = ReadBAI(packLE(t, baiMagic[:], int32(1), int32(1),
		uint32(37450), int32(1), uint64(0), uint64(0), int32(0)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata pseudo-bin")

	// Bin ids beyond the pseudo-bin are invalid.
	_, err = ReadBAI(packLE(t, baiMagic[:], int32(1), int32(1),
		uint32(37460), int32(0), int32(0)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	// Counts claiming far more data than the stream holds fail on the
	// short read instead of sizing an allocation.
	_, err = ReadBAI(packLE(t, baiMagic[:], int32(0x7fffffff)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bin count")

	_, err = ReadBAI(packLE(t, baiMagic[:], int32(1), int32(1),
		uint32(4681), int32(0x7fffffff), uint64(0)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading chunks")

	_, err = ReadBAI(packLE(t, baiMagic[:], int32(1), int32(0),
		int32(0x7fffffff), uint64(0)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "linear index")
}

func TestBAITruncated(t *testing.T) {
	idx := buildTestIndex(t)
	var buf bytes.Buffer
	require.NoError(t, WriteBAI(&buf, idx))
	full := buf.Bytes()

	// The only place a .bai may legally end early is before the optional
	// trailing unplaced count.
	for _, n := range []int{0, 3, 7, 11, len(full) / 2, len(full) - 1} {
		_, err := ReadBAI(bytes.NewReader(full[:n]))
		require.Error(t, err, "prefix of %d bytes", n)
	}
	got, err := ReadBAI(bytes.NewReader(full[:len(full)-8]))
	require.NoError(t, err)
	assert.Nil(t, got.Unplaced)
}
