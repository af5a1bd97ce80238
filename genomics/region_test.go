package genomics_test

import (
	"testing"

	"github.com/grailbio/htsio/genomics"
	"github.com/stretchr/testify/assert"
)

func TestRegionCompare(t *testing.T) {
	tests := []struct {
		r0, r1 genomics.Region
		want   int
	}{
		{genomics.Region{0, 100, 200}, genomics.Region{0, 100, 200}, 0},
		{genomics.Region{0, 100, 200}, genomics.Region{0, 150, 200}, -1},
		{genomics.Region{0, 100, 200}, genomics.Region{0, 100, 300}, -1},
		{genomics.Region{1, 0, 10}, genomics.Region{0, 100, 200}, 1},
		// Unmapped sorts after every valid reference.
		{genomics.Region{genomics.UnmappedRefID, 0, 10}, genomics.Region{500, 0, 10}, 1},
	}
	for _, test := range tests {
		got := test.r0.Compare(test.r1)
		switch {
		case test.want < 0:
			assert.True(t, got < 0, "%v vs %v", test.r0, test.r1)
			assert.True(t, test.r1.Compare(test.r0) > 0)
		case test.want > 0:
			assert.True(t, got > 0, "%v vs %v", test.r0, test.r1)
			assert.True(t, test.r1.Compare(test.r0) < 0)
		default:
			assert.Equal(t, 0, got, "%v vs %v", test.r0, test.r1)
		}
	}
}

func TestRegionPredicates(t *testing.T) {
	r := genomics.Region{RefID: 2, Start: 100, End: 200}
	assert.True(t, r.Valid())
	assert.False(t, r.Empty())
	assert.True(t, r.Contains(100))
	assert.True(t, r.Contains(199))
	assert.False(t, r.Contains(200))
	assert.False(t, r.Contains(99))

	assert.True(t, r.Intersects(genomics.Region{2, 150, 250}))
	assert.True(t, r.Intersects(genomics.Region{2, 199, 500}))
	assert.False(t, r.Intersects(genomics.Region{2, 200, 300}))
	assert.False(t, r.Intersects(genomics.Region{3, 150, 250}))
	assert.True(t, r.Abuts(genomics.Region{2, 200, 300}))
	assert.True(t, r.Abuts(genomics.Region{2, 0, 100}))
	assert.False(t, r.Abuts(genomics.Region{2, 150, 250}))

	assert.False(t, genomics.Region{RefID: genomics.InvalidRefID}.Valid())
	assert.False(t, genomics.Region{RefID: 0, Start: 10, End: 5}.Valid())
	assert.True(t, genomics.Region{RefID: 0, Start: 10, End: 10}.Empty())
	assert.Equal(t, "2:100-200", r.String())
}
