package vma

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/Anekoique/axvma/pkg/memaddr"
	"github.com/Anekoique/axvma/pkg/vmfile"
)

// Region is one contiguous virtual address range backed by a window of
// a file. It tracks which of its pages have been populated. The range
// and offset never change after construction; reshaping the address
// space replaces a region with segments produced by SplitAt.
type Region struct {
	// Range is the virtual address interval this region covers. The end
	// may fall inside the last page when the backing window is not a
	// whole number of pages.
	Range memaddr.Range
	// File is the shared handle to the backing file.
	File vmfile.File
	// Offset is the byte offset into the file that Range.Start maps to.
	// It is signed so that split arithmetic cannot underflow before the
	// bounds check in LoadPage rejects the result.
	Offset int64
	// PageSize is the load granularity for this region.
	PageSize memaddr.PageSize

	populated *Tracker
}

func NewRegion(rng memaddr.Range, file vmfile.File, offset int64, pageSize memaddr.PageSize) (*Region, error) {
	if file == nil {
		return nil, fmt.Errorf("region %s has no backing file", rng)
	}

	if !pageSize.IsValid() {
		return nil, fmt.Errorf("invalid page size %d for region %s", pageSize, rng)
	}

	if !rng.Start.IsAligned(pageSize) {
		return nil, fmt.Errorf("region %s does not start on a %s boundary", rng, pageSize)
	}

	return &Region{
		Range:     rng,
		File:      file,
		Offset:    offset,
		PageSize:  pageSize,
		populated: NewTracker(rng.Start, pageSize),
	}, nil
}

// Contains reports whether the address lies inside the region.
func (r *Region) Contains(addr memaddr.VirtAddr) bool {
	return r.Range.Contains(addr)
}

// Overlaps reports whether the region shares at least one address with
// the given range.
func (r *Region) Overlaps(rng memaddr.Range) bool {
	return r.Range.Overlaps(rng)
}

// LoadPage reads the backing bytes for the page containing addr and
// marks the page populated.
//
// The page must not have been populated before; re-faulting a resident
// page is a contract violation reported as AlreadyPopulatedError. The
// returned buffer is freshly allocated and sized min(page size, bytes
// remaining in the range), so the tail page of a region whose end falls
// inside a page comes back short. A read past the end of the backing
// file leaves the remainder of the buffer zeroed.
//
// The caller owns copying the buffer into a physical frame and
// installing the translation.
func (r *Region) LoadPage(addr memaddr.VirtAddr) ([]byte, error) {
	if !r.Contains(addr) {
		return nil, fmt.Errorf("address %s is outside region %s", addr, r.Range)
	}

	page := addr.AlignDown(r.PageSize)
	if r.populated.Has(page) {
		return nil, AlreadyPopulatedError{Page: page}
	}

	fileSize, err := r.File.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get backing file size: %w", err)
	}

	fileOffset := r.Offset + page.Sub(r.Range.Start)
	if fileOffset < 0 || fileOffset >= fileSize {
		return nil, OutOfBoundsError{
			Page:       page,
			FileOffset: fileOffset,
			FileSize:   fileSize,
		}
	}

	bufSize := min(int64(r.PageSize), r.Range.End.Sub(page))
	buf := make([]byte, bufSize)

	_, err = r.File.ReadAt(buf, fileOffset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read page %s at file offset %d: %w", page, fileOffset, err)
	}

	r.populated.Add(page)

	return buf, nil
}

// IsPopulated reports whether the page containing addr has been loaded.
func (r *Region) IsPopulated(addr memaddr.VirtAddr) bool {
	return r.populated.Has(addr.AlignDown(r.PageSize))
}

// PopulatedPages iterates over the populated page addresses in
// ascending order.
func (r *Region) PopulatedPages() iter.Seq[memaddr.VirtAddr] {
	return r.populated.Pages()
}

// PopulatedCount returns the number of populated pages.
func (r *Region) PopulatedCount() uint {
	return r.populated.Count()
}

// PageCount returns the total number of pages the region spans,
// counting a partial tail page as a whole one.
func (r *Region) PageCount() uint64 {
	return memaddr.TotalPages(r.Range.Size(), r.PageSize)
}

// Clone returns a region sharing the backing file handle but owning an
// independent copy of the populated set.
func (r *Region) Clone() *Region {
	return &Region{
		Range:     r.Range,
		File:      r.File,
		Offset:    r.Offset,
		PageSize:  r.PageSize,
		populated: r.populated.Clone(),
	}
}

func (r *Region) String() string {
	return fmt.Sprintf("%s offset %#x align %s", r.Range, r.Offset, r.PageSize)
}

// Format returns a table row for the region as:
//
//	[start, end) := file[offset, offset+size) @ align, populated/total pages
//
// It is used for debugging and visualization.
func (r *Region) Format() string {
	return fmt.Sprintf(
		"%-24s := file[%#10x, %#10x) @ %-2s, %d/%d pages",
		r.Range,
		r.Offset, r.Offset+int64(r.Range.Size()),
		r.PageSize,
		r.PopulatedCount(), r.PageCount(),
	)
}
