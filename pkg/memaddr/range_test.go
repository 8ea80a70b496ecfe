package memaddr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRange(t *testing.T) {
	t.Parallel()

	r := NewRange(0x1000, 0x4000)
	assert.Equal(t, VirtAddr(0x1000), r.Start)
	assert.Equal(t, VirtAddr(0x4000), r.End)
	assert.Equal(t, uint64(0x3000), r.Size())

	assert.Panics(t, func() {
		NewRange(0x4000, 0x1000)
	})
}

func TestRangeFromSize(t *testing.T) {
	t.Parallel()

	r := RangeFromSize(0x1000, 0x3000)
	assert.Equal(t, NewRange(0x1000, 0x4000), r)
}

func TestRange_IsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, NewRange(0x1000, 0x1000).IsEmpty())
	assert.False(t, NewRange(0x1000, 0x1001).IsEmpty())
}

func TestRange_Contains(t *testing.T) {
	t.Parallel()

	r := NewRange(0x1000, 0x4000)

	tests := []struct {
		name     string
		addr     VirtAddr
		expected bool
	}{
		{name: "before start", addr: 0xfff, expected: false},
		{name: "at start", addr: 0x1000, expected: true},
		{name: "interior", addr: 0x2abc, expected: true},
		{name: "last byte", addr: 0x3fff, expected: true},
		{name: "at end", addr: 0x4000, expected: false},
		{name: "past end", addr: 0x5000, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, r.Contains(tt.addr))
		})
	}
}

func TestRange_Overlaps(t *testing.T) {
	t.Parallel()

	r := NewRange(0x2000, 0x5000)

	tests := []struct {
		name     string
		other    Range
		expected bool
	}{
		{name: "fully before", other: NewRange(0x0, 0x1000), expected: false},
		{name: "touching start", other: NewRange(0x1000, 0x2000), expected: false},
		{name: "overlapping head", other: NewRange(0x1000, 0x3000), expected: true},
		{name: "contained", other: NewRange(0x3000, 0x4000), expected: true},
		{name: "containing", other: NewRange(0x1000, 0x6000), expected: true},
		{name: "overlapping tail", other: NewRange(0x4000, 0x6000), expected: true},
		{name: "touching end", other: NewRange(0x5000, 0x6000), expected: false},
		{name: "fully after", other: NewRange(0x6000, 0x7000), expected: false},
		{name: "identical", other: NewRange(0x2000, 0x5000), expected: true},
		{name: "empty at interior point", other: NewRange(0x3000, 0x3000), expected: true},
		{name: "empty at start", other: NewRange(0x2000, 0x2000), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, r.Overlaps(tt.other))
			assert.Equal(t, tt.expected, tt.other.Overlaps(r))
		})
	}
}

func TestRange_Intersect(t *testing.T) {
	t.Parallel()

	r := NewRange(0x2000, 0x5000)

	assert.Equal(t, NewRange(0x2000, 0x3000), r.Intersect(NewRange(0x1000, 0x3000)))
	assert.Equal(t, NewRange(0x3000, 0x4000), r.Intersect(NewRange(0x3000, 0x4000)))
	assert.Equal(t, NewRange(0x2000, 0x5000), r.Intersect(NewRange(0x0, 0x10000)))

	disjoint := r.Intersect(NewRange(0x6000, 0x7000))
	assert.True(t, disjoint.IsEmpty())
}

func TestRange_Pages(t *testing.T) {
	t.Parallel()

	r := NewRange(0x1000, 0x4000)

	var pages []VirtAddr
	for page := range r.Pages(Size4K) {
		pages = append(pages, page)
	}

	require.Equal(t, []VirtAddr{0x1000, 0x2000, 0x3000}, pages)
}

func TestRange_Pages_UnalignedStart(t *testing.T) {
	t.Parallel()

	r := NewRange(0x1800, 0x3800)

	var pages []VirtAddr
	for page := range r.Pages(Size4K) {
		pages = append(pages, page)
	}

	require.Equal(t, []VirtAddr{0x1000, 0x2000, 0x3000}, pages)
}

func TestRange_Pages_Break(t *testing.T) {
	t.Parallel()

	r := NewRange(0x0, 0x10000)

	count := 0
	for range r.Pages(Size4K) {
		count++
		if count == 3 {
			break
		}
	}

	assert.Equal(t, 3, count)
}

func TestRange_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[0x1000, 0x4000)", NewRange(0x1000, 0x4000).String())
}
