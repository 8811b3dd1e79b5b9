// Package logging provides structured logging with per-module log levels.
//
// Loggers are plain *slog.Logger values tagged with a "module" attribute.
// Initialize once at startup, then ask for a logger per component:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"relay":  "debug",
//			"ffmpeg": "warn",
//		},
//	})
//
//	logger := logging.GetLogger("relay").With("session_id", id)
//	logger.Info("Session started")
//
// Loggers obtained before Initialize keep working and pick up the configured
// level when Initialize runs.
//
// # Output
//
// Records go to stdout when it is a terminal, pipe, socket or regular file, and
// to the systemd journal when journald is reachable. With both available the
// records are fanned out through a MultiHandler. Journal entries carry
// SYSLOG_IDENTIFIER=screenrelay and one upper-cased field per attribute, so
//
//	journalctl -t screenrelay MODULE=relay
//
// shows only relay logs.
package logging
