package transcoder

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrToolUnavailable is returned when the encoder process cannot be spawned.
	ErrToolUnavailable = errors.New("encoder unavailable")

	// ErrNonZeroExit is returned when the encoder exits with a failure status.
	ErrNonZeroExit = errors.New("encoder exited with failure status")

	// ErrMissingOutput is returned when the encoder reports success but the
	// expected output file is absent.
	ErrMissingOutput = errors.New("encoder output missing")
)

// ExitError describes a failed encoder run and keeps the tail of its stderr
// for diagnostics. It matches ErrNonZeroExit with errors.Is.
type ExitError struct {
	ExitCode int
	Tail     []string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("encoder exited with code %d", e.ExitCode)
	if len(e.Tail) > 0 {
		msg += ": " + strings.TrimSpace(e.Tail[len(e.Tail)-1])
	}
	return msg
}

func (e *ExitError) Unwrap() []error {
	return []error{ErrNonZeroExit, e.Err}
}

// Diagnostic returns the captured stderr tail joined by newlines.
func (e *ExitError) Diagnostic() string {
	return strings.Join(e.Tail, "\n")
}
