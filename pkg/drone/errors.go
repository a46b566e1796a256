package drone

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrUnsupportedCommand is returned when input does not decode to a
	// command, or the backend cannot perform it.
	ErrUnsupportedCommand = errors.New("drone: unsupported command")

	// ErrNotStarted is returned for commands issued before Start.
	ErrNotStarted = errors.New("drone: controller not started")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("drone: controller already started")

	// ErrConnectionLost is returned when the drone does not answer or the
	// link has been closed.
	ErrConnectionLost = errors.New("drone: connection lost")

	// ErrCommandRejected is returned when the drone answers with an error.
	ErrCommandRejected = errors.New("drone: command rejected")

	// ErrNoFrame is returned by Snapshot before the first frame is encoded.
	ErrNoFrame = errors.New("drone: no frame available")
)

// CommandError wraps a failure with the command that caused it.
type CommandError struct {
	Command Command
	Err     error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("drone: %s: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}
