package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/dustin/go-humanize"

	"github.com/Anekoique/axvma/pkg/memaddr"
	"github.com/Anekoique/axvma/pkg/vma"
	"github.com/Anekoique/axvma/pkg/vmfile"
)

func main() {
	filePath := flag.String("file", "", "backing file to map")
	pageSizeLabel := flag.String("page-size", "4K", "page size ('4K', '2M' or '1G')")
	baseLiteral := flag.String("base", "0x400000", "base address of the mapping")
	unmapStart := flag.String("unmap-start", "", "start address of a range to unmap")
	unmapEnd := flag.String("unmap-end", "", "end address of a range to unmap (exclusive)")
	prefault := flag.Bool("prefault", false, "load every mapped page before inspecting")
	useMmap := flag.Bool("mmap", false, "memory-map the backing file instead of reading it")
	cols := flag.Uint64("cols", 64, "pages per row in the grid")

	flag.Parse()

	if *filePath == "" {
		log.Fatalf("missing -file")
	}

	parsedSize, err := memaddr.ParsePageSize(*pageSizeLabel)
	if err != nil {
		log.Fatalf("invalid page size: %s", err)
	}
	pageSize := parsedSize.(memaddr.PageSize)

	parsedBase, err := memaddr.ParseVirtAddr(*baseLiteral)
	if err != nil {
		log.Fatalf("invalid base address: %s", err)
	}
	base := parsedBase.(memaddr.VirtAddr)

	if !base.IsAligned(pageSize) {
		log.Fatalf("base address %s is not aligned to %s", base, pageSize)
	}

	var file vmfile.File

	if *useMmap {
		m, err := vmfile.NewMmap(*filePath)
		if err != nil {
			log.Fatalf("failed to mmap file: %s", err)
		}
		defer m.Close()

		file = m
	} else {
		l, err := vmfile.NewLocal(*filePath)
		if err != nil {
			log.Fatalf("failed to open file: %s", err)
		}
		defer l.Close()

		file = l
	}

	size, err := file.Size()
	if err != nil {
		log.Fatalf("failed to get file size: %s", err)
	}

	if empty, err := vmfile.IsEmpty(file); err != nil {
		log.Fatalf("failed to check file: %s", err)
	} else if empty {
		log.Fatalf("file %s is empty, nothing to map", *filePath)
	}

	totalPages := memaddr.TotalPages(uint64(size), pageSize)
	window := memaddr.RangeFromSize(base, totalPages*uint64(pageSize))

	region, err := vma.NewRegion(window, file, 0, pageSize)
	if err != nil {
		log.Fatalf("failed to create region: %s", err)
	}

	manager := vma.NewManager()
	if err := manager.Add(region); err != nil {
		log.Fatalf("failed to add region: %s", err)
	}

	removedSegments := 0

	if *unmapStart != "" || *unmapEnd != "" {
		parsedStart, err := memaddr.ParseVirtAddr(*unmapStart)
		if err != nil {
			log.Fatalf("invalid unmap start: %s", err)
		}

		parsedEnd, err := memaddr.ParseVirtAddr(*unmapEnd)
		if err != nil {
			log.Fatalf("invalid unmap end: %s", err)
		}

		start := parsedStart.(memaddr.VirtAddr)
		end := parsedEnd.(memaddr.VirtAddr)

		if end.Sub(start) <= 0 {
			log.Fatalf("unmap start %s is not below unmap end %s", start, end)
		}

		removedSegments = len(manager.RemoveOverlapped(memaddr.NewRange(start, end)))
	}

	if *prefault {
		for _, r := range manager.Regions() {
			for page := range r.Range.Pages(r.PageSize) {
				// A segment produced by an unaligned unmap can start
				// mid-page; the page containing its start belongs to
				// the removed range.
				if !r.Contains(page) {
					continue
				}

				if _, err := r.LoadPage(page); err != nil {
					log.Fatalf("failed to load page %s: %s", page, err)
				}
			}
		}
	}

	if err := manager.Validate(); err != nil {
		log.Fatalf("mapping is inconsistent: %s", err)
	}

	fmt.Printf("\nMETADATA\n")
	fmt.Printf("========\n")
	fmt.Printf("File               %s\n", *filePath)
	fmt.Printf("Size               %s (%d B)\n", humanize.IBytes(uint64(size)), size)
	fmt.Printf("Page size          %s\n", pageSize)
	fmt.Printf("Mapped window      %s\n", window)
	fmt.Printf("Mmap backed        %t\n", *useMmap)

	fmt.Printf("\nREGIONS\n")
	fmt.Printf("=======\n")

	for _, r := range manager.Regions() {
		fmt.Printf("%s\n", r.Format())
	}

	fmt.Printf("\nGRID\n")
	fmt.Printf("====\n")
	fmt.Printf("%s\n", manager.Visualize(window, pageSize, *cols))
	fmt.Printf("(%c unmapped, %c mapped, %c populated)\n", vma.UnmappedPageChar, vma.MappedPageChar, vma.PopulatedPageChar)

	populatedPages := uint64(0)
	mappedPages := uint64(0)

	for _, r := range manager.Regions() {
		populatedPages += uint64(r.PopulatedCount())
		mappedPages += r.PageCount()
	}

	fmt.Printf("\nSUMMARY\n")
	fmt.Printf("=======\n")
	fmt.Printf("Regions: %d\n", manager.Len())
	fmt.Printf("Removed segments: %d\n", removedSegments)
	fmt.Printf("Window pages: %d\n", totalPages)
	fmt.Printf("Mapped pages: %d\n", mappedPages)
	fmt.Printf("Populated pages: %d\n", populatedPages)
	fmt.Printf("Populated size: %s (%d B)\n", humanize.IBytes(populatedPages*uint64(pageSize)), populatedPages*uint64(pageSize))
}
