package ffmpeg

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrResolution matches every *ResolutionError.
	ErrResolution = errors.New("ffmpeg binary could not be resolved")

	// ErrCapabilityNotFound means no known capture format is supported.
	ErrCapabilityNotFound = errors.New("no supported screen capture format")

	// ErrProbeStart means the format query could not be started at all.
	ErrProbeStart = errors.New("format query failed to start")
)

// ResolutionError reports a failed encoder path lookup.
type ResolutionError struct {
	Strategy Strategy
	Path     string
	Err      error
}

func (e *ResolutionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("resolve ffmpeg (%s) %q: %v", e.Strategy, e.Path, e.Err)
	}
	return fmt.Sprintf("resolve ffmpeg (%s): %v", e.Strategy, e.Err)
}

func (e *ResolutionError) Unwrap() []error {
	return []error{ErrResolution, e.Err}
}

// ProbeStartError reports a format query that never ran.
type ProbeStartError struct {
	Format Capability
	Path   string
	Err    error
}

func (e *ProbeStartError) Error() string {
	return fmt.Sprintf("probe %s with %q: %v", e.Format, e.Path, e.Err)
}

func (e *ProbeStartError) Unwrap() []error {
	return []error{ErrProbeStart, e.Err}
}

// CapabilityError is returned when probing finds no usable capture format.
// Attempts holds one entry per candidate in probe order.
type CapabilityError struct {
	Path     string
	Attempts []Attempt
}

func (e *CapabilityError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s=%s", a.Format, a.Outcome))
	}
	return fmt.Sprintf("%v with %q [%s]", ErrCapabilityNotFound, e.Path, strings.Join(parts, " "))
}

// Unwrap exposes ErrCapabilityNotFound and, when no query could be started,
// the first *ProbeStartError.
func (e *CapabilityError) Unwrap() []error {
	errs := []error{ErrCapabilityNotFound}
	if len(e.Attempts) == 0 {
		return errs
	}
	for _, a := range e.Attempts {
		if a.Outcome != OutcomeStartFailed {
			return errs
		}
	}
	return append(errs, e.Attempts[0].Err)
}
