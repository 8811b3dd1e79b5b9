package process

import "time"

// State represents the lifecycle state of an encoding job.
type State string

// Job states.
const (
	StateStarting  State = "starting"  // Spawned, no output yet
	StateStreaming State = "streaming" // First stdout bytes read
	StateExited    State = "exited"    // Clean exit or caller stop
	StateFailed    State = "failed"    // Non-zero exit or start failure
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateExited || s == StateFailed
}

// JobInfo is a point-in-time snapshot of a job.
type JobInfo struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	BytesRead int64     `json:"bytes_read"`
	ExitCode  int       `json:"exit_code"`
	LastError string    `json:"last_error,omitempty"`
}
