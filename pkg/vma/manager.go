package vma

import (
	"fmt"
	"strings"

	"github.com/Anekoique/axvma/pkg/memaddr"
)

// Manager owns an ordered collection of regions that never overlap in
// virtual address space. The collection itself is not synchronized;
// callers serialize structural operations, typically under the address
// space lock of the owning process.
type Manager struct {
	regions []*Region
}

func NewManager() *Manager {
	return &Manager{}
}

// Add appends a region. It does not check for overlap with existing
// regions; callers carve out the target range with RemoveOverlapped
// first. The error is reserved for future validation and is always nil
// today.
func (m *Manager) Add(region *Region) error {
	m.regions = append(m.regions, region)

	return nil
}

// Find returns the region containing the address. Regions are kept
// disjoint, so the first match is the only one.
func (m *Manager) Find(addr memaddr.VirtAddr) (*Region, bool) {
	for _, r := range m.regions {
		if r.Contains(addr) {
			return r, true
		}
	}

	return nil, false
}

// RemoveOverlapped splits every region crossing the target range,
// removes the overlapping segments and keeps the outside segments in
// place. It returns the removed segments so the caller can release the
// resources tied to them.
func (m *Manager) RemoveOverlapped(target memaddr.Range) []*Region {
	var removed []*Region
	retained := make([]*Region, 0, len(m.regions))

	for _, region := range m.regions {
		if !region.Overlaps(target) {
			retained = append(retained, region)

			continue
		}

		before, overlap, after := region.SplitAt(target)

		if overlap != nil {
			removed = append(removed, overlap)
		}

		if before != nil {
			retained = append(retained, before)
		}

		if after != nil {
			retained = append(retained, after)
		}
	}

	m.regions = retained

	return removed
}

// Clear discards all regions on address space teardown.
func (m *Manager) Clear() {
	m.regions = nil
}

// Clone returns a manager with deep copies of every region, for
// duplicating an address space. The copies share the backing file
// handles but own independent populated sets.
func (m *Manager) Clone() *Manager {
	regions := make([]*Region, len(m.regions))
	for i, r := range m.regions {
		regions[i] = r.Clone()
	}

	return &Manager{regions: regions}
}

func (m *Manager) Len() int {
	return len(m.regions)
}

// Regions returns the regions in insertion order. The slice is shared
// with the manager; callers must not modify it.
func (m *Manager) Regions() []*Region {
	return m.regions
}

// Validate checks the bookkeeping invariants: every region starts on a
// page boundary, every populated page lies inside its region, and no
// two regions overlap. It is used by tests and debugging tools.
func (m *Manager) Validate() error {
	for i, r := range m.regions {
		if !r.PageSize.IsValid() {
			return fmt.Errorf("region validation failed: the following region\n- %s\nhas an unsupported page size: %d", r.Format(), r.PageSize)
		}

		if !r.Range.Start.IsAligned(r.PageSize) {
			return fmt.Errorf("region validation failed: the following region\n- %s\ndoes not start on a %s boundary", r.Format(), r.PageSize)
		}

		for page := range r.PopulatedPages() {
			if !r.Range.Contains(page) {
				return fmt.Errorf("region validation failed: the following region\n- %s\ntracks populated page %s outside its range", r.Format(), page)
			}
		}

		for _, other := range m.regions[i+1:] {
			if r.Overlaps(other.Range) {
				return fmt.Errorf("region validation failed: the following regions overlap\n- %s\n- %s", r.Format(), other.Format())
			}
		}
	}

	return nil
}

const (
	UnmappedPageChar  = '░'
	MappedPageChar    = '▓'
	PopulatedPageChar = '█'
)

// Visualize returns the window of address space as a grid with one rune
// per page, wrapped to cols columns: unmapped pages are blank, mapped
// pages show whether they have been populated. It is used for debugging
// and visualization.
func (m *Manager) Visualize(window memaddr.Range, pageSize memaddr.PageSize, cols uint64) string {
	output := make([]rune, memaddr.TotalPages(window.Size(), pageSize))

	for outputIdx := range output {
		output[outputIdx] = UnmappedPageChar
	}

	for _, r := range m.regions {
		for page := range r.Range.Pages(pageSize) {
			if !window.Contains(page) {
				continue
			}

			outputIdx := memaddr.PageIdx(uint64(page.Sub(window.Start)), pageSize)

			if r.IsPopulated(page) {
				output[outputIdx] = PopulatedPageChar
			} else {
				output[outputIdx] = MappedPageChar
			}
		}
	}

	lineOutput := make([]string, 0)

	for i := uint64(0); i < uint64(len(output)); i += cols {
		if i+cols <= uint64(len(output)) {
			lineOutput = append(lineOutput, string(output[i:i+cols]))
		} else {
			lineOutput = append(lineOutput, string(output[i:]))
		}
	}

	return strings.Join(lineOutput, "\n")
}
