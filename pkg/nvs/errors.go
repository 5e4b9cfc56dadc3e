package nvs

import (
	"errors"
	"fmt"
)

// ErrorKind classifies storage errors.
type ErrorKind int

// ErrorKinds
const (
	// Storage is a failure of the underlying flash device.
	Storage ErrorKind = iota
	// FullStorage means no space is left even after reclaiming.
	FullStorage
	// Corrupted means the flash content is not a valid log.
	Corrupted
	// BufferTooBig means a configured size can't be represented.
	BufferTooBig
	// BufferTooSmall means a buffer must be at least Needed bytes.
	BufferTooSmall
	// SerializationError means a key or value can't be encoded or decoded.
	SerializationError
	// ItemTooBig means a value exceeds MaxValueLen.
	ItemTooBig
)

var kindNames = map[ErrorKind]string{
	Storage:            "storage",
	FullStorage:        "full storage",
	Corrupted:          "corrupted",
	BufferTooBig:       "buffer too big",
	BufferTooSmall:     "buffer too small",
	SerializationError: "serialization error",
	ItemTooBig:         "item too big",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// StorageError is the error returned by Store operations.
type StorageError struct {
	Kind   ErrorKind
	Needed int // set for BufferTooSmall
	Err    error
}

// Error implements error.
func (e *StorageError) Error() string {
	msg := "nvs: " + e.Kind.String()
	if e.Kind == BufferTooSmall {
		msg += fmt.Sprintf(" (need %d bytes)", e.Needed)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsKind checks err is a StorageError of kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Kind == kind
}

func newError(kind ErrorKind, format string, args ...interface{}) *StorageError {
	return &StorageError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func deviceError(err error) *StorageError {
	return &StorageError{Kind: Storage, Err: err}
}
