package nvs

import "fmt"

// Default geometry of flash devices.
const (
	DefaultWordSize = 4
	DefaultPageSize = 4096
)

type memBacking []byte

func (m memBacking) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, m[off:]), nil
}

func (m memBacking) WriteAt(p []byte, off int64) (int, error) {
	return copy(m[off:], p), nil
}

// MemFlash is a Flash in memory.
type MemFlash struct {
	norFlash
}

// NewMemFlash creates an erased MemFlash.
func NewMemFlash(size int64, wordSize, pageSize int) (*MemFlash, error) {
	if err := validateGeometry(size, wordSize, pageSize); err != nil {
		return nil, err
	}
	data := make(memBacking, size)
	for i := range data {
		data[i] = Erased
	}
	return &MemFlash{norFlash: norFlash{
		data:     data,
		size:     size,
		wordSize: wordSize,
		pageSize: pageSize,
		erases:   make(map[int64]int),
	}}, nil
}

// MustNewMemFlash creates a MemFlash or panics.
func MustNewMemFlash(size int64, wordSize, pageSize int) *MemFlash {
	f, err := NewMemFlash(size, wordSize, pageSize)
	if err != nil {
		panic(fmt.Sprintf("nvs: %v", err))
	}
	return f
}

// Bytes exposes the raw content, for tests to inspect or damage.
func (f *MemFlash) Bytes() []byte {
	return f.data.(memBacking)
}
