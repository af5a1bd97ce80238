package binindex

import (
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/htsio/genomics"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteFile(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()
	idx := buildTestIndex(t)
	region := genomics.Region{RefID: 0, Start: 140, End: 160}

	baiPath := filepath.Join(tempDir, "test.bam.bai")
	require.NoError(t, WriteFile(ctx, baiPath, idx))
	fromBAI, err := ReadFile(ctx, baiPath)
	require.NoError(t, err)
	assert.Equal(t, idx.Chunks(region), fromBAI.Chunks(region))

	csiPath := filepath.Join(tempDir, "test.bam.csi")
	require.NoError(t, WriteFile(ctx, csiPath, idx))
	fromCSI, err := ReadFile(ctx, csiPath)
	require.NoError(t, err)
	assert.Equal(t, idx.Scheme, fromCSI.Scheme)
	assert.Equal(t, idx.Chunks(region), fromCSI.Chunks(region))

	_, err = ReadFile(ctx, filepath.Join(tempDir, "missing.bai"))
	require.Error(t, err)
}
