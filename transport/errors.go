package transport

import (
	"errors"
	"fmt"
)

// ErrNotAttached is returned by a send when the other end is not present.
// Callers treat it as a silent no-op.
var ErrNotAttached = errors.New("transport: not attached")

// ErrClosed is returned by a send on a closed end.
var ErrClosed = errors.New("transport: closed")

// LoadError is returned when the document resource fails to load.
type LoadError struct {
	URL   string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("transport: load %s: %v", e.URL, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// IsUnavailable reports whether err only means the channel is not ready.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrNotAttached) || errors.Is(err, ErrClosed)
}
