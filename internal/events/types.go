package events

// Event type constants for kelindar/event.
const (
	TypeEncoderResolved uint32 = iota + 1
	TypeEncoderFailed
	TypeSessionStarted
	TypeSessionEnded
	TypeJobStateChanged
	TypeSessionMetrics
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// EncoderResolvedEvent is published after a successful negotiation.
type EncoderResolvedEvent struct {
	Path       string `json:"path" example:"/usr/bin/ffmpeg" doc:"Resolved ffmpeg binary"`
	Capability string `json:"capability" example:"xcbgrab" doc:"Negotiated capture format"`
	Source     string `json:"source" example:"local" doc:"Resolution strategy: explicit, local or bundled"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for EncoderResolvedEvent.
func (e EncoderResolvedEvent) Type() uint32 { return TypeEncoderResolved }

// EncoderFailedEvent is published when a negotiation fails.
type EncoderFailedEvent struct {
	Kind      string `json:"kind" example:"capability" doc:"Failure kind: resolution or capability"`
	Error     string `json:"error" doc:"Error message"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for EncoderFailedEvent.
func (e EncoderFailedEvent) Type() uint32 { return TypeEncoderFailed }

// SessionStartedEvent is published when a viewer connects.
type SessionStartedEvent struct {
	SessionID  string `json:"session_id" example:"3f1c..." doc:"Session identifier"`
	RemoteAddr string `json:"remote_addr" example:"192.168.1.20:51234" doc:"Viewer address"`
	Capability string `json:"capability" example:"x11grab" doc:"Capture format in use"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStartedEvent.
func (e SessionStartedEvent) Type() uint32 { return TypeSessionStarted }

// SessionEndedEvent is published after a session's encoder has been reaped.
type SessionEndedEvent struct {
	SessionID    string `json:"session_id" doc:"Session identifier"`
	Reason       string `json:"reason" example:"client-gone" doc:"encoder-exited, encoder-failed or client-gone"`
	BytesWritten int64  `json:"bytes_written" doc:"Bytes relayed to the viewer"`
	Duration     string `json:"duration" example:"1m12s" doc:"Session duration"`
	Error        string `json:"error,omitempty" doc:"Encoder diagnostics for failed sessions"`
	Timestamp    string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionEndedEvent.
func (e SessionEndedEvent) Type() uint32 { return TypeSessionEnded }

// JobStateChangedEvent mirrors encoder job state transitions.
type JobStateChangedEvent struct {
	JobID     string `json:"job_id" doc:"Job (session) identifier"`
	OldState  string `json:"old_state" example:"starting" doc:"Previous state"`
	NewState  string `json:"new_state" example:"streaming" doc:"New state"`
	Error     string `json:"error,omitempty" doc:"Failure detail"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for JobStateChangedEvent.
func (e JobStateChangedEvent) Type() uint32 { return TypeJobStateChanged }

// SessionMetricsEvent carries periodic encoder progress for a session.
type SessionMetricsEvent struct {
	SessionID       string `json:"session_id" doc:"Session identifier"`
	FPS             string `json:"fps" example:"25.00" doc:"Current encoding FPS"`
	Speed           string `json:"speed" example:"1.00" doc:"Encoding speed multiplier"`
	DroppedFrames   string `json:"dropped_frames" example:"0" doc:"Dropped frames"`
	DuplicateFrames string `json:"duplicate_frames" example:"0" doc:"Duplicated frames"`
}

// Type returns the event type identifier for SessionMetricsEvent.
func (e SessionMetricsEvent) Type() uint32 { return TypeSessionMetrics }
