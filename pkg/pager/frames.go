package pager

import (
	"context"
	"sync"

	"github.com/Anekoique/axvma/pkg/memaddr"
)

// FrameInstaller receives the bytes of a loaded page and installs them
// into the address space. Implementations cover the page-table/MMU
// layer, which lives outside this module.
type FrameInstaller interface {
	Install(ctx context.Context, page memaddr.VirtAddr, data []byte) error
}

// FrameStore is an in-memory FrameInstaller. It stands in for the MMU
// layer in tests and in the traffic simulator and keeps the installed
// bytes addressable so content can be checked after a fault.
type FrameStore struct {
	mu     sync.RWMutex
	frames map[memaddr.VirtAddr][]byte
	bytes  uint64
}

var _ FrameInstaller = (*FrameStore)(nil)

func NewFrameStore() *FrameStore {
	return &FrameStore{
		frames: make(map[memaddr.VirtAddr][]byte),
	}
}

func (s *FrameStore) Install(ctx context.Context, page memaddr.VirtAddr, data []byte) error {
	frame := make([]byte, len(data))
	copy(frame, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.frames[page]; ok {
		s.bytes -= uint64(len(prev))
	}

	s.frames[page] = frame
	s.bytes += uint64(len(frame))

	return nil
}

// Frame returns the installed bytes for a page.
func (s *FrameStore) Frame(page memaddr.VirtAddr) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	frame, ok := s.frames[page]

	return frame, ok
}

// Drop releases the frame for a page, typically after the page was
// unmapped.
func (s *FrameStore) Drop(page memaddr.VirtAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.frames[page]; ok {
		s.bytes -= uint64(len(prev))
		delete(s.frames, page)
	}
}

func (s *FrameStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.frames)
}

// Bytes returns the total size of all installed frames.
func (s *FrameStore) Bytes() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.bytes
}
