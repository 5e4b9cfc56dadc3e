package nvs

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	// ErrOutOfBounds indicates an access beyond the device.
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrUnaligned indicates an access not aligned to word or page.
	ErrUnaligned = errors.New("unaligned access")
	// ErrNotErased indicates a write over words which are not erased.
	ErrNotErased = errors.New("write over non-erased word")
)

// Erased is the value of every byte after erase.
const Erased byte = 0xff

// Flash is a NOR flash device. Erase sets all bytes of whole pages to
// Erased, WriteAt programs words which must be erased.
type Flash interface {
	io.ReaderAt
	io.WriterAt
	// Erase erases pages in [from, to), both page aligned.
	Erase(from, to int64) error
	Size() int64
	WordSize() int
	PageSize() int
}

// Range is a region of a Flash.
type Range struct {
	Offset int64
	Length int64
}

// DefaultRange is the region reserved for configuration.
var DefaultRange = Range{Offset: 0x9000, Length: 0x4000}

// End returns the offset after the range.
func (r Range) End() int64 {
	return r.Offset + r.Length
}

// Overlaps checks if two ranges share any byte.
func (r Range) Overlaps(o Range) bool {
	return r.Offset < o.End() && o.Offset < r.End()
}

func (r Range) String() string {
	return fmt.Sprintf("[0x%x, 0x%x)", r.Offset, r.End())
}

type backing interface {
	io.ReaderAt
	io.WriterAt
}

// norFlash enforces NOR semantics over a randomly accessible backing.
type norFlash struct {
	data     backing
	size     int64
	wordSize int
	pageSize int

	lock   sync.Mutex
	erases map[int64]int
}

func (f *norFlash) Size() int64   { return f.size }
func (f *norFlash) WordSize() int { return f.wordSize }
func (f *norFlash) PageSize() int { return f.pageSize }

func (f *norFlash) check(off int64, n int, align int) error {
	if off < 0 || off+int64(n) > f.size {
		return fmt.Errorf("%w: 0x%x+%d", ErrOutOfBounds, off, n)
	}
	if off%int64(align) != 0 || n%align != 0 {
		return fmt.Errorf("%w: 0x%x+%d", ErrUnaligned, off, n)
	}
	return nil
}

func (f *norFlash) ReadAt(p []byte, off int64) (int, error) {
	if err := f.check(off, len(p), 1); err != nil {
		return 0, err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.data.ReadAt(p, off)
}

func (f *norFlash) WriteAt(p []byte, off int64) (int, error) {
	if err := f.check(off, len(p), f.wordSize); err != nil {
		return 0, err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	current := make([]byte, len(p))
	if _, err := f.data.ReadAt(current, off); err != nil {
		return 0, err
	}
	for i, b := range current {
		if b != Erased {
			w := off + int64(i-i%f.wordSize)
			return 0, fmt.Errorf("%w: 0x%x", ErrNotErased, w)
		}
	}
	return f.data.WriteAt(p, off)
}

func (f *norFlash) Erase(from, to int64) error {
	if to < from {
		return fmt.Errorf("%w: 0x%x > 0x%x", ErrOutOfBounds, from, to)
	}
	if err := f.check(from, int(to-from), f.pageSize); err != nil {
		return err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	page := make([]byte, f.pageSize)
	for i := range page {
		page[i] = Erased
	}
	for off := from; off < to; off += int64(f.pageSize) {
		if _, err := f.data.WriteAt(page, off); err != nil {
			return err
		}
		f.erases[off]++
	}
	return nil
}

// EraseCount returns how many times the page at off has been erased by this
// instance.
func (f *norFlash) EraseCount(off int64) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.erases[off-off%int64(f.pageSize)]
}

func validateGeometry(size int64, wordSize, pageSize int) error {
	if wordSize <= 0 || pageSize <= 0 || pageSize%wordSize != 0 {
		return fmt.Errorf("%w: word %d, page %d", ErrUnaligned, wordSize, pageSize)
	}
	if size <= 0 || size%int64(pageSize) != 0 {
		return fmt.Errorf("%w: size %d, page %d", ErrUnaligned, size, pageSize)
	}
	return nil
}
