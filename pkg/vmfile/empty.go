package vmfile

import "io"

// Empty is a file of fixed size whose content reads as zeros. It backs
// regions that should fault in as untouched memory.
type Empty struct {
	size int64
}

var _ File = (*Empty)(nil)

func NewEmpty(size int64) *Empty {
	return &Empty{size: size}
}

func (e *Empty) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= e.size {
		return 0, io.EOF
	}

	n := len(p)
	if off+int64(n) > e.size {
		n = int(e.size - off)
	}

	// There is no data to copy, the requested window reads as zeros.
	clear(p[:n])

	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

func (e *Empty) Size() (int64, error) {
	return e.size, nil
}
