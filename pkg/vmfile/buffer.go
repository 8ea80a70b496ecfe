package vmfile

import "bytes"

// Buffer is an in-memory file. It backs regions in tests and in the
// traffic simulator, where the content is generated on the fly.
type Buffer struct {
	r    *bytes.Reader
	size int64
}

var _ File = (*Buffer)(nil)

func NewBuffer(data []byte) *Buffer {
	return &Buffer{
		r:    bytes.NewReader(data),
		size: int64(len(data)),
	}
}

func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	return b.r.ReadAt(p, off)
}

func (b *Buffer) Size() (int64, error) {
	return b.size, nil
}
