package protocol

import (
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned when a script frame is not a single
// window.<name>(<literal>);true; invocation.
var ErrMalformedFrame = errors.New("protocol: malformed frame")

// DecodeError is returned when a command argument or notification payload
// cannot be decoded with the encoding its name implies.
type DecodeError struct {
	Name  string // command name or notification type
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: decode %s: %v", e.Name, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }
