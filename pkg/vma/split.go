package vma

import (
	"github.com/Anekoique/axvma/pkg/memaddr"
)

// SplitAt partitions the region against a target range into up to three
// disjoint segments:
//
//   - before: the part of the region strictly left of the target
//   - overlap: the intersection of the region and the target
//   - after: the part strictly right of the target
//
// Segments that would be empty are nil. When the region does not
// overlap the target at all, every segment is nil and the region is
// unchanged; this is the no-op signal, not an error.
//
// Each segment shares the backing file handle and page size. Its offset
// is shifted by the segment's distance from the region start, so the
// virtual-address-to-file-byte mapping is preserved. The populated
// pages are divided among the segments by interval, from one snapshot,
// so population state is neither lost nor duplicated.
func (r *Region) SplitAt(target memaddr.Range) (before, overlap, after *Region) {
	if !r.Overlaps(target) {
		return nil, nil, nil
	}

	// One snapshot feeds every segment so a page observed by one is
	// never observed by another.
	snapshot := r.populated.Clone()

	segment := func(rng memaddr.Range) *Region {
		populated := NewTracker(rng.Start, r.PageSize)
		for page := range snapshot.Pages() {
			if rng.Contains(page) {
				populated.Add(page)
			}
		}

		return &Region{
			Range:     rng,
			File:      r.File,
			Offset:    r.Offset + rng.Start.Sub(r.Range.Start),
			PageSize:  r.PageSize,
			populated: populated,
		}
	}

	// The part of the region before the target.
	if r.Range.Start < target.Start {
		before = segment(memaddr.NewRange(r.Range.Start, target.Start))
	}

	// The part of the region after the target.
	if target.End < r.Range.End {
		after = segment(memaddr.NewRange(target.End, r.Range.End))
	}

	// The intersection. It can be empty even though the ranges overlap,
	// when the target is an empty range strictly inside the region; the
	// split then carves the region in two and removes nothing.
	if isect := r.Range.Intersect(target); !isect.IsEmpty() {
		overlap = segment(isect)
	}

	return before, overlap, after
}
