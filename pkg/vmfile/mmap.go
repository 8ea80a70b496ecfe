package vmfile

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

// Mmap is a backing file mapped read-only into memory. Page loads copy
// straight out of the page cache instead of issuing read syscalls.
type Mmap struct {
	path string
	size int64
	mmap *mmap.MMap

	mu     sync.RWMutex
	closed atomic.Bool
}

var _ File = (*Mmap)(nil)
var _ io.Closer = (*Mmap)(nil)

func NewMmap(path string) (*Mmap, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	size := info.Size()
	if size == 0 {
		// A zero-length mapping is invalid, use Local for empty files.
		return nil, fmt.Errorf("cannot map empty file %s", path)
	}

	if size > math.MaxInt {
		return nil, fmt.Errorf("size too big: %d > %d", size, math.MaxInt)
	}

	mm, err := mmap.MapRegion(f, int(size), unix.PROT_READ, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("error mapping file: %w", err)
	}

	return &Mmap{
		mmap: &mm,
		path: path,
		size: size,
	}, nil
}

func (m *Mmap) isClosed() bool {
	return m.closed.Load()
}

func (m *Mmap) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.isClosed() {
		return 0, NewFileClosedError(m.path)
	}

	if off < 0 {
		return 0, fmt.Errorf("invalid offset %d for file %s", off, m.path)
	}

	if off >= m.size {
		return 0, io.EOF
	}

	end := off + int64(len(p))
	if end > m.size {
		end = m.size
	}

	n := copy(p, (*m.mmap)[off:end])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// Slice returns a view of the mapping for [off, off+length) without
// copying. The view aliases the mapping and must not be used after
// Close. A view reaching past the end of the file is clamped.
func (m *Mmap) Slice(off, length int64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.isClosed() {
		return nil, NewFileClosedError(m.path)
	}

	if off < 0 || off >= m.size {
		return nil, fmt.Errorf("invalid offset %d for file %s of size %d", off, m.path, m.size)
	}

	end := min(off+length, m.size)

	return (*m.mmap)[off:end], nil
}

func (m *Mmap) Size() (int64, error) {
	if m.isClosed() {
		return 0, NewFileClosedError(m.path)
	}

	return m.size, nil
}

func (m *Mmap) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed.CompareAndSwap(false, true) {
		return NewFileClosedError(m.path)
	}

	err := m.mmap.Unmap()
	if err != nil {
		return fmt.Errorf("error unmapping file: %w", err)
	}

	return nil
}

func (m *Mmap) Path() string {
	return m.path
}
