package vmfile

import (
	"fmt"
	"io"
)

// File is the capability a mapped region needs from its backing file:
// random-access reads and a length query. Implementations must be safe
// for concurrent use because splitting a region shares its handle
// between the produced segments.
type File interface {
	io.ReaderAt
	Size() (int64, error)
}

// IsEmpty reports whether the file has no content.
func IsEmpty(f File) (bool, error) {
	size, err := f.Size()
	if err != nil {
		return false, err
	}

	return size == 0, nil
}

type FileClosedError struct {
	path string
}

func NewFileClosedError(path string) *FileClosedError {
	return &FileClosedError{
		path: path,
	}
}

func (e *FileClosedError) Error() string {
	return fmt.Sprintf("backing file already closed for path %s", e.path)
}
