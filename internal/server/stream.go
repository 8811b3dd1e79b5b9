package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/screenrelay/internal/events"
	"github.com/smazurov/screenrelay/internal/ffmpeg"
	"github.com/smazurov/screenrelay/internal/metrics"
	"github.com/smazurov/screenrelay/internal/process"
	"github.com/smazurov/screenrelay/internal/relay"
)

// handleStream runs one viewer session: spawn ffmpeg, relay its stdout,
// and return only after the process has been reaped.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	enc, err := s.encoderFor(ctx)
	if err != nil {
		s.logger.Error("No encoder for viewer", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "FFmpeg error: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	id := uuid.NewString()
	logger := s.logger.With("session_id", id)

	opts := []process.Option{
		process.WithLogger(s.encoderLogger.With("session_id", id)),
		process.WithLogParser(s.ffmpegLogger.With("session_id", id), ffmpeg.ParseLogLevel),
		process.WithStateChange(s.publishJobState),
		process.WithGracefulTimeout(s.cfg.StopTimeout),
	}
	if s.deps.Progress != nil {
		opts = append(opts, process.WithOutputHandler(s.deps.Progress))
		defer s.deps.Progress.Forget(id)
	}

	job, err := process.Start(ctx, process.Spec{
		ID:   id,
		Path: enc.Path,
		Args: s.cfg.Params.Args(enc.Capability),
	}, opts...)
	if err != nil {
		metrics.EncoderFailed()
		logger.Error("Failed to start encoder", "error", err)
		http.Error(w, "FFmpeg error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.deps.Registry.Add(job); err != nil {
		job.Stop()
		job.Close()
		logger.Error("Failed to register session", "error", err)
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}
	defer s.deps.Registry.Remove(id)

	logger.Info("Viewer connected",
		"remote_addr", r.RemoteAddr,
		"pid", job.PID(),
		"capability", enc.Capability)
	metrics.SessionStarted()
	s.deps.EventBus.Publish(events.SessionStartedEvent{
		SessionID:  id,
		RemoteAddr: r.RemoteAddr,
		Capability: string(enc.Capability),
		Timestamp:  time.Now().Format(time.RFC3339),
	})

	res := relay.Serve(ctx, w, job, s.relayLogger.With("session_id", id))

	metrics.SessionEnded(string(res.Reason), res.BytesWritten)
	if res.Reason == relay.ReasonEncoderFailed {
		metrics.EncoderFailed()
	}

	ended := events.SessionEndedEvent{
		SessionID:    id,
		Reason:       string(res.Reason),
		BytesWritten: res.BytesWritten,
		Duration:     res.Duration.Round(time.Millisecond).String(),
		Timestamp:    time.Now().Format(time.RFC3339),
	}
	if res.Reason == relay.ReasonEncoderFailed && res.Err != nil {
		ended.Error = res.Err.Error()
	}
	s.deps.EventBus.Publish(ended)

	logger.Info("Viewer session ended",
		"reason", res.Reason,
		"bytes", res.BytesWritten,
		"duration", res.Duration)
}

// encoderFor returns the cached encoder, or a freshly negotiated one when
// ProbePerRequest is set.
func (s *Server) encoderFor(ctx context.Context) (*ffmpeg.Encoder, error) {
	if s.cfg.ProbePerRequest {
		enc, err := s.deps.Negotiator.Fresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("negotiate encoder: %w", err)
		}
		return enc, nil
	}
	if enc := s.deps.Negotiator.Current(); enc != nil {
		return enc, nil
	}
	return nil, errors.New("encoder not negotiated")
}

func (s *Server) publishJobState(id string, oldState, newState process.State, err error) {
	ev := events.JobStateChangedEvent{
		JobID:     id,
		OldState:  string(oldState),
		NewState:  string(newState),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.deps.EventBus.Publish(ev)
}

// NegotiationObserver records probe metrics and publishes encoder events
// for every negotiation. Pass it as ffmpeg.NegotiatorOptions.OnNegotiated.
func NegotiationObserver(bus *events.Bus) ffmpeg.NegotiatedCallback {
	return func(enc *ffmpeg.Encoder, probeDuration time.Duration, err error) {
		now := time.Now().Format(time.RFC3339)
		if err != nil {
			if probeDuration > 0 {
				metrics.ObserveProbe(probeDuration, false)
			}
			kind := "other"
			switch {
			case errors.Is(err, ffmpeg.ErrResolution):
				kind = "resolution"
			case errors.Is(err, ffmpeg.ErrCapabilityNotFound):
				kind = "capability"
			}
			bus.Publish(events.EncoderFailedEvent{Kind: kind, Error: err.Error(), Timestamp: now})
			return
		}

		metrics.ObserveProbe(probeDuration, true)
		bus.Publish(events.EncoderResolvedEvent{
			Path:       enc.Path,
			Capability: string(enc.Capability),
			Source:     string(enc.Source),
			Timestamp:  now,
		})
	}
}
