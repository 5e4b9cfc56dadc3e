package link

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameTooLarge indicates the serialized message exceeds MaxPayloadSize.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrLinkClosed indicates the link stopped before a reply is received.
	ErrLinkClosed = errors.New("link closed")
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

// FrameErrorKinds
const (
	ChecksumMismatch FrameErrorKind = iota
	Malformed
	AccumulationOverflow
)

func (k FrameErrorKind) String() string {
	switch k {
	case ChecksumMismatch:
		return "checksum mismatch"
	case Malformed:
		return "malformed"
	case AccumulationOverflow:
		return "accumulation overflow"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FrameError is the error of receiving a frame. It's always recoverable by
// dropping the frame.
type FrameError struct {
	Kind FrameErrorKind
	Err  error
}

// Error implements error.
func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("frame %s: %v", e.Kind, e.Err)
	}
	return "frame " + e.Kind.String()
}

// Unwrap returns the underlying error.
func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFrameError checks err is a FrameError of kind.
func IsFrameError(err error, kind FrameErrorKind) bool {
	var fe *FrameError
	return errors.As(err, &fe) && fe.Kind == kind
}

func malformed(format string, args ...interface{}) *FrameError {
	return &FrameError{Kind: Malformed, Err: fmt.Errorf(format, args...)}
}
