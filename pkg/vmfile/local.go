package vmfile

import (
	"fmt"
	"io"
	"os"
)

// Local is a backing file read directly through the OS file descriptor.
type Local struct {
	f    *os.File
	path string
}

var _ File = (*Local)(nil)
var _ io.Closer = (*Local)(nil)

func NewLocal(path string) (*Local, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return &Local{
		f:    f,
		path: path,
	}, nil
}

func (l *Local) Path() string {
	return l.path
}

func (l *Local) ReadAt(p []byte, off int64) (int, error) {
	return l.f.ReadAt(p, off)
}

// Size stats the file on every call so growth of the backing file is
// observed by later loads.
func (l *Local) Size() (int64, error) {
	info, err := l.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to get file info: %w", err)
	}

	return info.Size(), nil
}

func (l *Local) Close() error {
	err := l.f.Close()
	if err != nil {
		return fmt.Errorf("error closing file: %w", err)
	}

	return nil
}
