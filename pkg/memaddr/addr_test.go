package memaddr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVirtAddr_AlignDown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		addr     VirtAddr
		pageSize PageSize
		expected VirtAddr
	}{
		{
			name:     "already aligned",
			addr:     0x2000,
			pageSize: Size4K,
			expected: 0x2000,
		},
		{
			name:     "inside page",
			addr:     0x2abc,
			pageSize: Size4K,
			expected: 0x2000,
		},
		{
			name:     "last byte of page",
			addr:     0x2fff,
			pageSize: Size4K,
			expected: 0x2000,
		},
		{
			name:     "huge page",
			addr:     0x2f_ffff,
			pageSize: Size2M,
			expected: 0x20_0000,
		},
		{
			name:     "zero",
			addr:     0,
			pageSize: Size4K,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, tt.addr.AlignDown(tt.pageSize))
		})
	}
}

func TestVirtAddr_AlignUp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, VirtAddr(0x3000), VirtAddr(0x2001).AlignUp(Size4K))
	assert.Equal(t, VirtAddr(0x2000), VirtAddr(0x2000).AlignUp(Size4K))
	assert.Equal(t, VirtAddr(0x40_0000), VirtAddr(0x20_0001).AlignUp(Size2M))
}

func TestVirtAddr_IsAligned(t *testing.T) {
	t.Parallel()

	assert.True(t, VirtAddr(0x1000).IsAligned(Size4K))
	assert.False(t, VirtAddr(0x1001).IsAligned(Size4K))
	assert.True(t, VirtAddr(0).IsAligned(Size1G))
	assert.False(t, VirtAddr(0x1000).IsAligned(Size2M))
}

func TestVirtAddr_Sub(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(0x500), VirtAddr(0x1500).Sub(0x1000))
	assert.Equal(t, int64(-0x500), VirtAddr(0x1000).Sub(0x1500))
	assert.Equal(t, int64(0), VirtAddr(0x1000).Sub(0x1000))
}

func TestVirtAddr_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0x1000", VirtAddr(0x1000).String())
	assert.Equal(t, "0x0", VirtAddr(0).String())
}

func TestPageSize_IsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, Size4K.IsValid())
	assert.True(t, Size2M.IsValid())
	assert.True(t, Size1G.IsValid())
	assert.False(t, PageSize(0).IsValid())
	assert.False(t, PageSize(0x2000).IsValid())
}

func TestPageSize_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "4K", Size4K.String())
	assert.Equal(t, "2M", Size2M.String())
	assert.Equal(t, "1G", Size1G.String())
	assert.Equal(t, "12345", PageSize(12345).String())
}

func TestTotalPages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(0), TotalPages(0, Size4K))
	assert.Equal(t, uint64(1), TotalPages(1, Size4K))
	assert.Equal(t, uint64(1), TotalPages(0x1000, Size4K))
	assert.Equal(t, uint64(2), TotalPages(0x1001, Size4K))
	assert.Equal(t, uint64(3), TotalPages(0x3000, Size4K))
}

func TestPageIdxOffset(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(0), PageIdx(0xfff, Size4K))
	assert.Equal(t, uint64(2), PageIdx(0x2abc, Size4K))
	assert.Equal(t, uint64(0x2000), PageOffset(2, Size4K))
}
