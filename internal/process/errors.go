package process

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown job IDs.
	ErrNotFound = errors.New("job not found")

	// ErrDuplicateID is returned when registering an ID twice.
	ErrDuplicateID = errors.New("job already registered")
)

// EncodingError describes an encoder that failed after being spawned.
type EncodingError struct {
	ID       string
	ExitCode int
	Stderr   string // last lines of stderr, newline separated
	Err      error
}

func (e *EncodingError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("encoder %s exited with code %d: %s", e.ID, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("encoder %s exited with code %d: %v", e.ID, e.ExitCode, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Diagnostics returns the text worth showing to a viewer.
func (e *EncodingError) Diagnostics() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.ExitCode)
}
