package vma

import (
	"iter"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/Anekoique/axvma/pkg/memaddr"
)

// Tracker records which pages of a region have been populated.
// Bits are keyed by page index relative to the region start, so a
// tracker built for a split segment starts from a clean index zero.
type Tracker struct {
	b  *bitset.BitSet
	mu sync.RWMutex

	base     memaddr.VirtAddr
	pageSize memaddr.PageSize
}

func NewTracker(base memaddr.VirtAddr, pageSize memaddr.PageSize) *Tracker {
	return &Tracker{
		// The bitset resizes automatically based on the maximum set bit.
		b: bitset.New(0),
		// Align the base down so indices map back to aligned page
		// addresses even when the owning range starts mid-page.
		base:     base.AlignDown(pageSize),
		pageSize: pageSize,
	}
}

// pageIdx maps an aligned page address to its bit index.
// The page must not be below the tracker base.
func (t *Tracker) pageIdx(page memaddr.VirtAddr) uint {
	return uint(memaddr.PageIdx(uint64(page.Sub(t.base)), t.pageSize))
}

func (t *Tracker) Has(page memaddr.VirtAddr) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.b.Test(t.pageIdx(page))
}

// Add marks a page as populated. It reports false when the page was
// already tracked.
func (t *Tracker) Add(page memaddr.VirtAddr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.pageIdx(page)
	if t.b.Test(idx) {
		return false
	}

	t.b.Set(idx)

	return true
}

func (t *Tracker) Count() uint {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.b.Count()
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.b.ClearAll()
}

func (t *Tracker) Base() memaddr.VirtAddr {
	return t.base
}

func (t *Tracker) PageSize() memaddr.PageSize {
	return t.pageSize
}

func (t *Tracker) Clone() *Tracker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return &Tracker{
		b:        t.b.Clone(),
		base:     t.base,
		pageSize: t.pageSize,
	}
}

// Pages iterates over the populated page addresses in ascending order.
// The iteration works on a snapshot, so the tracker may be modified
// while it runs.
func (t *Tracker) Pages() iter.Seq[memaddr.VirtAddr] {
	t.mu.RLock()
	b := t.b.Clone()
	t.mu.RUnlock()

	return func(yield func(memaddr.VirtAddr) bool) {
		for idx := range b.EachSet() {
			page := t.base.Add(memaddr.PageOffset(uint64(idx), t.pageSize))
			if !yield(page) {
				return
			}
		}
	}
}
