package memaddr

import (
	"fmt"
	"iter"
)

// Range is a half-open interval [Start, End) of virtual addresses.
type Range struct {
	// Start is the first address of the interval. Start is inclusive.
	Start VirtAddr
	// End is the first address past the interval. End is exclusive.
	End VirtAddr
}

// NewRange builds the interval [start, end). It panics when end < start;
// an inverted range is a programming error, not runtime input.
func NewRange(start, end VirtAddr) Range {
	if end < start {
		panic(fmt.Sprintf("inverted address range [%s, %s)", start, end))
	}

	return Range{Start: start, End: end}
}

// RangeFromSize builds the interval [start, start+size).
func RangeFromSize(start VirtAddr, size uint64) Range {
	return Range{Start: start, End: start.Add(size)}
}

// Size returns the length of the range in bytes.
func (r Range) Size() uint64 {
	return uint64(r.End - r.Start)
}

func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// Contains reports whether addr falls inside the range.
func (r Range) Contains(addr VirtAddr) bool {
	return addr >= r.Start && addr < r.End
}

// Overlaps reports whether the two ranges share at least one address.
func (r Range) Overlaps(other Range) bool {
	return r.Start < other.End && other.Start < r.End
}

// Intersect returns the common part of the two ranges. The result is empty
// when they do not overlap.
func (r Range) Intersect(other Range) Range {
	start := max(r.Start, other.Start)
	end := min(r.End, other.End)
	if end < start {
		return Range{Start: start, End: start}
	}

	return Range{Start: start, End: end}
}

// Pages returns the page-aligned addresses covering the range. The first
// address is Start aligned down to pageSize, so an unaligned Start is covered
// by the page that contains it.
func (r Range) Pages(pageSize PageSize) iter.Seq[VirtAddr] {
	return func(yield func(VirtAddr) bool) {
		for p := r.Start.AlignDown(pageSize); p < r.End; p += VirtAddr(pageSize) {
			if !yield(p) {
				return
			}
		}
	}
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start, r.End)
}
