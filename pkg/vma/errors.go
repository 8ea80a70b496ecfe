package vma

import (
	"fmt"

	"github.com/Anekoique/axvma/pkg/memaddr"
)

// AlreadyPopulatedError reports a load for a page that was already
// populated by an earlier fault. Re-faulting a resident page is a
// caller contract violation, not a retry path.
type AlreadyPopulatedError struct {
	Page memaddr.VirtAddr
}

func (e AlreadyPopulatedError) Error() string {
	return fmt.Sprintf("page %s is already populated", e.Page)
}

// OutOfBoundsError reports a page whose computed file offset falls
// outside the backing file. No bytes are read in this case.
type OutOfBoundsError struct {
	Page       memaddr.VirtAddr
	FileOffset int64
	FileSize   int64
}

func (e OutOfBoundsError) Error() string {
	return fmt.Sprintf("page %s maps to file offset %d outside file of size %d", e.Page, e.FileOffset, e.FileSize)
}
