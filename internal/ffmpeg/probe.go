package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Capability is an ffmpeg screen capture input format.
type Capability string

const (
	CapabilityXCBGrab Capability = "xcbgrab"
	CapabilityX11Grab Capability = "x11grab"
)

// Candidates lists capture formats in preference order.
var Candidates = []Capability{CapabilityXCBGrab, CapabilityX11Grab}

// Outcome classifies a single probe attempt.
type Outcome string

const (
	OutcomeSupported    Outcome = "supported"
	OutcomeUnsupported  Outcome = "unsupported"
	OutcomeInconclusive Outcome = "inconclusive"
	OutcomeStartFailed  Outcome = "start-failed"
)

// Attempt records how one candidate fared.
type Attempt struct {
	Format   Capability `json:"format"`
	Outcome  Outcome    `json:"outcome"`
	ExitCode int        `json:"exit_code,omitempty"`
	Err      error      `json:"-"`
	Stderr   string     `json:"stderr,omitempty"`
}

// ProbeResult is the outcome of a successful probe.
type ProbeResult struct {
	Capability Capability
	Attempts   []Attempt
	Duration   time.Duration
}

const stderrTailBytes = 2048

// Prober asks an ffmpeg binary which capture formats it supports.
type Prober struct {
	candidates []Capability
	logger     *slog.Logger
}

// NewProber creates a prober over Candidates.
func NewProber(logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{candidates: Candidates, logger: logger}
}

// Probe tests each candidate in order with one format query apiece and
// returns the first one listed by ffmpeg. Failed queries are recorded and
// probing moves on; only context cancellation aborts early.
func (p *Prober) Probe(ctx context.Context, path string) (ProbeResult, error) {
	start := time.Now()
	result := ProbeResult{}

	for _, format := range p.candidates {
		p.logger.Debug("Checking capture format", "format", format, "path", path)

		attempt := p.check(ctx, path, format)
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Attempts = append(result.Attempts, attempt)

		switch attempt.Outcome {
		case OutcomeSupported:
			result.Capability = format
			result.Duration = time.Since(start)
			p.logger.Info("Capture format supported", "format", format)
			return result, nil
		case OutcomeUnsupported:
			p.logger.Debug("Capture format not listed", "format", format)
		default:
			p.logger.Warn("Format query failed",
				"format", format,
				"outcome", attempt.Outcome,
				"exit_code", attempt.ExitCode,
				"error", attempt.Err,
				"stderr", attempt.Stderr)
		}
	}

	result.Duration = time.Since(start)
	return result, &CapabilityError{Path: path, Attempts: result.Attempts}
}

func (p *Prober) check(ctx context.Context, path string, format Capability) Attempt {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, FormatsQueryArgs()...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	attempt := Attempt{Format: format}

	if err := cmd.Start(); err != nil {
		attempt.Outcome = OutcomeStartFailed
		attempt.Err = &ProbeStartError{Format: format, Path: path, Err: err}
		return attempt
	}

	err := cmd.Wait()
	attempt.Stderr = tail(stderr.String(), stderrTailBytes)
	if err != nil {
		attempt.Outcome = OutcomeInconclusive
		attempt.Err = err
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			attempt.ExitCode = exitErr.ExitCode()
		}
		return attempt
	}

	if strings.Contains(stdout.String(), string(format)) {
		attempt.Outcome = OutcomeSupported
	} else {
		attempt.Outcome = OutcomeUnsupported
	}
	return attempt
}

// tail returns at most n trailing bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}
