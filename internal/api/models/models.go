// Package models holds request and response types of the admin API.
package models

import (
	"time"

	"github.com/smazurov/screenrelay/internal/display"
	"github.com/smazurov/screenrelay/internal/process"
	"github.com/smazurov/screenrelay/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"encoder ready" doc:"Status message"`
	Ready   bool   `json:"ready" doc:"Whether an encoder has been negotiated"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionResponse struct {
	Body version.BuildInfo
}

// Encoder models

// AttemptData is one probed capture format.
type AttemptData struct {
	Format   string `json:"format" example:"xcbgrab" doc:"Capture format"`
	Outcome  string `json:"outcome" example:"supported" doc:"supported, unsupported, inconclusive or start-failed"`
	ExitCode int    `json:"exit_code,omitempty" doc:"Exit code of the format query"`
	Error    string `json:"error,omitempty" doc:"Why the attempt failed"`
}

type EncoderData struct {
	Ready      bool          `json:"ready" doc:"Whether an encoder has been negotiated"`
	Path       string        `json:"path,omitempty" example:"/usr/bin/ffmpeg" doc:"Resolved ffmpeg binary"`
	Capability string        `json:"capability,omitempty" example:"xcbgrab" doc:"Negotiated capture format"`
	Source     string        `json:"source,omitempty" example:"local" doc:"explicit, local or bundled"`
	ProbedAt   *time.Time    `json:"probed_at,omitempty" doc:"When the capability was probed"`
	Attempts   []AttemptData `json:"attempts,omitempty" doc:"Per-format probe attempts"`
}

type EncoderResponse struct {
	Body EncoderData
}

// Session models
type SessionsData struct {
	Sessions []process.JobInfo `json:"sessions" doc:"Active viewer sessions"`
	Count    int            `json:"count" example:"2" doc:"Number of active sessions"`
}

type SessionsResponse struct {
	Body SessionsData
}

type SessionIDInput struct {
	ID string `path:"id" doc:"Session identifier"`
}

type DisplayResponse struct {
	Body display.ScreenInfo
}
