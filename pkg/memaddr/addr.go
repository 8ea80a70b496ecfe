package memaddr

import (
	"fmt"
	"strconv"
)

// VirtAddr is a virtual address in the managed address space.
type VirtAddr uintptr

// ParseVirtAddr converts a numeric literal such as "0x7f0000000000" into
// a VirtAddr. It plugs into env parsing.
func ParseVirtAddr(literal string) (any, error) {
	v, err := strconv.ParseUint(literal, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse address %s: %w", literal, err)
	}

	return VirtAddr(v), nil
}

// AlignDown rounds the address down to the nearest multiple of size.
func (a VirtAddr) AlignDown(size PageSize) VirtAddr {
	return a &^ VirtAddr(size-1)
}

// AlignUp rounds the address up to the nearest multiple of size.
func (a VirtAddr) AlignUp(size PageSize) VirtAddr {
	return (a + VirtAddr(size-1)) &^ VirtAddr(size-1)
}

// IsAligned reports whether the address is a multiple of size.
func (a VirtAddr) IsAligned(size PageSize) bool {
	return a&VirtAddr(size-1) == 0
}

// Add returns the address shifted up by n bytes.
func (a VirtAddr) Add(n uint64) VirtAddr {
	return a + VirtAddr(n)
}

// Sub returns the signed distance from base to a in bytes.
func (a VirtAddr) Sub(base VirtAddr) int64 {
	return int64(a) - int64(base)
}

func (a VirtAddr) String() string {
	return fmt.Sprintf("0x%x", uintptr(a))
}
