package vmfile

// Faulty is a file whose reads always fail with a fixed error. The size
// query succeeds so a region passes offset validation and reaches the
// read failure path. It exists for tests.
type Faulty struct {
	size int64
	err  error
}

var _ File = (*Faulty)(nil)

func NewFaulty(size int64, err error) *Faulty {
	return &Faulty{
		size: size,
		err:  err,
	}
}

func (f *Faulty) ReadAt(p []byte, off int64) (int, error) {
	return 0, f.err
}

func (f *Faulty) Size() (int64, error) {
	return f.size, nil
}
