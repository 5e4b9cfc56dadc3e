package connectivity

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials indicates no wifi credentials are stored. Retrying
// doesn't help until the host provisions them.
var ErrMissingCredentials = errors.New("missing wifi credentials")

// AttemptError is a failed connection attempt, retried after backoff.
type AttemptError struct {
	Attempt int
	Err     error
}

// Error implements error.
func (e *AttemptError) Error() string {
	return fmt.Sprintf("attempt %d: %v", e.Attempt, e.Err)
}

// Unwrap returns the underlying error.
func (e *AttemptError) Unwrap() error {
	return e.Err
}
