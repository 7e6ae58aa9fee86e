package door

import "errors"

var (
	// ErrHardwareFault wraps a Drive, Stop or light failure reported by the
	// port. State is not advanced when it is returned.
	ErrHardwareFault = errors.New("hardware fault")

	// ErrInvalidCommand is returned for a command that conflicts with the
	// current motion, or a malformed direction or speed.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrNotStarted is returned for commands issued before Start or after the
	// control loop has shut down.
	ErrNotStarted = errors.New("controller not started")

	// ErrAlreadyStarted is returned by a second call to Start or Run.
	ErrAlreadyStarted = errors.New("controller already started")
)
