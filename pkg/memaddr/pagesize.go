package memaddr

import (
	"fmt"
	"strings"
)

// PageSize is the granularity at which a mapping is populated. Only the
// translation granules of the paging hardware are supported.
type PageSize uint64

const (
	Size4K PageSize = 1 << 12
	Size2M PageSize = 1 << 21
	Size1G PageSize = 1 << 30
)

// IsValid reports whether the size is one of the supported granules.
func (s PageSize) IsValid() bool {
	switch s {
	case Size4K, Size2M, Size1G:
		return true
	}

	return false
}

func (s PageSize) String() string {
	switch s {
	case Size4K:
		return "4K"
	case Size2M:
		return "2M"
	case Size1G:
		return "1G"
	}

	return fmt.Sprintf("%d", uint64(s))
}

// ParsePageSize converts a granule label such as "4K" into a PageSize.
// It is the inverse of PageSize.String and plugs into env parsing.
func ParsePageSize(label string) (any, error) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "4K":
		return Size4K, nil
	case "2M":
		return Size2M, nil
	case "1G":
		return Size1G, nil
	}

	return nil, fmt.Errorf("unknown page size %q, expected 4K, 2M or 1G", label)
}

// TotalPages returns the number of pages needed to cover size bytes.
func TotalPages(size uint64, pageSize PageSize) uint64 {
	return (size + uint64(pageSize) - 1) / uint64(pageSize)
}

// PageIdx returns the index of the page covering off bytes past the start of
// a region.
func PageIdx(off uint64, pageSize PageSize) uint64 {
	return off / uint64(pageSize)
}

// PageOffset returns the byte offset of the page with the given index.
func PageOffset(idx uint64, pageSize PageSize) uint64 {
	return idx * uint64(pageSize)
}
