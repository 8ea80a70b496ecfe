package vma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anekoique/axvma/pkg/memaddr"
)

func TestRegion_SplitAt_NoOverlap(t *testing.T) {
	t.Parallel()

	r := mustRegion(t, memaddr.NewRange(0x1000, 0x4000), patternFile(3), 0)

	tests := []struct {
		name   string
		target memaddr.Range
	}{
		{name: "fully before", target: memaddr.NewRange(0x0, 0x1000)},
		{name: "fully after", target: memaddr.NewRange(0x5000, 0x6000)},
		{name: "touching end", target: memaddr.NewRange(0x4000, 0x5000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			before, overlap, after := r.SplitAt(tt.target)

			assert.Nil(t, before)
			assert.Nil(t, overlap)
			assert.Nil(t, after)
		})
	}
}

func TestRegion_SplitAt_Middle(t *testing.T) {
	t.Parallel()

	r := mustRegion(t, memaddr.NewRange(0x1000, 0x4000), patternFile(3), 0)

	before, overlap, after := r.SplitAt(memaddr.NewRange(0x2000, 0x3000))

	require.NotNil(t, before)
	require.NotNil(t, overlap)
	require.NotNil(t, after)

	assert.Equal(t, memaddr.NewRange(0x1000, 0x2000), before.Range)
	assert.Equal(t, int64(0x0), before.Offset)

	assert.Equal(t, memaddr.NewRange(0x2000, 0x3000), overlap.Range)
	assert.Equal(t, int64(0x1000), overlap.Offset)

	assert.Equal(t, memaddr.NewRange(0x3000, 0x4000), after.Range)
	assert.Equal(t, int64(0x2000), after.Offset)

	// Segments keep the backing file handle and page size of the parent.
	assert.Equal(t, r.File, overlap.File)
	assert.Equal(t, r.PageSize, overlap.PageSize)
}

func TestRegion_SplitAt_Head(t *testing.T) {
	t.Parallel()

	r := mustRegion(t, memaddr.NewRange(0x1000, 0x4000), patternFile(3), 0)

	before, overlap, after := r.SplitAt(memaddr.NewRange(0x0, 0x2000))

	assert.Nil(t, before)
	require.NotNil(t, overlap)
	require.NotNil(t, after)

	assert.Equal(t, memaddr.NewRange(0x1000, 0x2000), overlap.Range)
	assert.Equal(t, int64(0x0), overlap.Offset)

	assert.Equal(t, memaddr.NewRange(0x2000, 0x4000), after.Range)
	assert.Equal(t, int64(0x1000), after.Offset)
}

func TestRegion_SplitAt_Tail(t *testing.T) {
	t.Parallel()

	r := mustRegion(t, memaddr.NewRange(0x1000, 0x4000), patternFile(3), 0)

	before, overlap, after := r.SplitAt(memaddr.NewRange(0x3000, 0x5000))

	require.NotNil(t, before)
	require.NotNil(t, overlap)
	assert.Nil(t, after)

	assert.Equal(t, memaddr.NewRange(0x1000, 0x3000), before.Range)
	assert.Equal(t, int64(0x0), before.Offset)

	assert.Equal(t, memaddr.NewRange(0x3000, 0x4000), overlap.Range)
	assert.Equal(t, int64(0x2000), overlap.Offset)
}

func TestRegion_SplitAt_Covering(t *testing.T) {
	t.Parallel()

	r := mustRegion(t, memaddr.NewRange(0x1000, 0x4000), patternFile(3), 0x1000)

	before, overlap, after := r.SplitAt(memaddr.NewRange(0x0, 0x5000))

	assert.Nil(t, before)
	require.NotNil(t, overlap)
	assert.Nil(t, after)

	// The overlap is the whole region with its original offset.
	assert.Equal(t, r.Range, overlap.Range)
	assert.Equal(t, r.Offset, overlap.Offset)
}

func TestRegion_SplitAt_ExactMatch(t *testing.T) {
	t.Parallel()

	r := mustRegion(t, memaddr.NewRange(0x1000, 0x4000), patternFile(3), 0)

	before, overlap, after := r.SplitAt(memaddr.NewRange(0x1000, 0x4000))

	assert.Nil(t, before)
	require.NotNil(t, overlap)
	assert.Nil(t, after)
	assert.Equal(t, r.Range, overlap.Range)
}

func TestRegion_SplitAt_EmptyTargetInside(t *testing.T) {
	t.Parallel()

	// An empty target strictly inside the region carves it in two
	// without producing an overlap segment.
	r := mustRegion(t, memaddr.NewRange(0x1000, 0x4000), patternFile(3), 0)

	before, overlap, after := r.SplitAt(memaddr.NewRange(0x2000, 0x2000))

	require.NotNil(t, before)
	assert.Nil(t, overlap)
	require.NotNil(t, after)

	assert.Equal(t, memaddr.NewRange(0x1000, 0x2000), before.Range)
	assert.Equal(t, memaddr.NewRange(0x2000, 0x4000), after.Range)
	assert.Equal(t, int64(0x1000), after.Offset)
}

func TestRegion_SplitAt_PopulationPartition(t *testing.T) {
	t.Parallel()

	r := mustRegion(t, memaddr.NewRange(0x1000, 0x4000), patternFile(3), 0)

	// Populate all three pages before splitting.
	for _, addr := range []memaddr.VirtAddr{0x1000, 0x2000, 0x3000} {
		_, err := r.LoadPage(addr)
		require.NoError(t, err)
	}

	before, overlap, after := r.SplitAt(memaddr.NewRange(0x2000, 0x3000))

	// Every populated page lands in exactly the segment covering it.
	assert.Equal(t, []memaddr.VirtAddr{0x1000}, collectPages(before))
	assert.Equal(t, []memaddr.VirtAddr{0x2000}, collectPages(overlap))
	assert.Equal(t, []memaddr.VirtAddr{0x3000}, collectPages(after))

	// The segments know their pages are resident.
	_, err := before.LoadPage(0x1000)
	assert.ErrorAs(t, err, &AlreadyPopulatedError{})

	_, err = after.LoadPage(0x3000)
	assert.ErrorAs(t, err, &AlreadyPopulatedError{})
}

func TestRegion_SplitAt_PartialPopulation(t *testing.T) {
	t.Parallel()

	r := mustRegion(t, memaddr.NewRange(0x1000, 0x4000), patternFile(3), 0)

	_, err := r.LoadPage(0x2000)
	require.NoError(t, err)

	before, overlap, after := r.SplitAt(memaddr.NewRange(0x2000, 0x3000))

	assert.Empty(t, collectPages(before))
	assert.Equal(t, []memaddr.VirtAddr{0x2000}, collectPages(overlap))
	assert.Empty(t, collectPages(after))

	// Unpopulated segments still load on demand.
	buf, err := after.LoadPage(0x3000)
	require.NoError(t, err)
	assert.Equal(t, byte('C'), buf[0])
}

func TestRegion_SplitAt_SegmentsLoadCorrectBytes(t *testing.T) {
	t.Parallel()

	r := mustRegion(t, memaddr.NewRange(0x1000, 0x4000), patternFile(3), 0)

	_, overlap, after := r.SplitAt(memaddr.NewRange(0x2000, 0x3000))
	require.NotNil(t, overlap)
	require.NotNil(t, after)

	// The shifted offsets keep each virtual page mapped to the same
	// file byte as in the parent.
	buf, err := overlap.LoadPage(0x2000)
	require.NoError(t, err)
	assert.Equal(t, byte('B'), buf[0])

	buf, err = after.LoadPage(0x3000)
	require.NoError(t, err)
	assert.Equal(t, byte('C'), buf[0])
}

func TestRegion_SplitAt_ParentUntouched(t *testing.T) {
	t.Parallel()

	r := mustRegion(t, memaddr.NewRange(0x1000, 0x4000), patternFile(3), 0)

	_, err := r.LoadPage(0x1000)
	require.NoError(t, err)

	before, _, _ := r.SplitAt(memaddr.NewRange(0x2000, 0x3000))
	require.NotNil(t, before)

	// Splitting mutates nothing in the parent; loading through the
	// parent afterwards still works.
	assert.Equal(t, memaddr.NewRange(0x1000, 0x4000), r.Range)
	assert.Equal(t, uint(1), r.PopulatedCount())

	_, err = r.LoadPage(0x3000)
	require.NoError(t, err)
}
