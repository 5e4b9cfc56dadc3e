package link

// AccumulateResult indicates the result after pushing one byte.
type AccumulateResult struct {
	// Frame is a complete frame including the delimiter.
	Frame []byte
	// Truncated is set when the frame's beginning was lost to an overflow,
	// only its tail may be decoded.
	Truncated bool
	// Err is set to an AccumulationOverflow error the first time the
	// window overflows since the last delimiter.
	Err *FrameError
}

// Accumulator collects bytes until the delimiter into a fixed-capacity
// window. When the window is full, the oldest bytes are discarded.
type Accumulator struct {
	buf        [MaxFrameSize - 1]byte
	n          int
	overflowed bool
}

// Len returns the number of bytes currently accumulated.
func (a *Accumulator) Len() int {
	return a.n
}

// Reset drops all accumulated bytes.
func (a *Accumulator) Reset() {
	a.n, a.overflowed = 0, false
}

// Push consumes one byte.
func (a *Accumulator) Push(b byte) (r AccumulateResult) {
	if b == Delimiter {
		if a.n == 0 && !a.overflowed {
			return
		}
		r.Frame = make([]byte, a.n+1)
		copy(r.Frame, a.buf[:a.n])
		r.Frame[a.n] = Delimiter
		r.Truncated = a.overflowed
		a.Reset()
		return
	}
	if a.n == len(a.buf) {
		copy(a.buf[:], a.buf[1:])
		a.n--
		if !a.overflowed {
			a.overflowed = true
			r.Err = &FrameError{Kind: AccumulationOverflow}
		}
	}
	a.buf[a.n] = b
	a.n++
	return
}
