package process

import (
	"io"
	"log/slog"
	"time"
)

// OutputHandler inspects encoder stderr lines before they are logged.
// Returning true consumes the line: it is neither logged nor kept for
// diagnostics. Progress collectors use this to swallow stats lines.
type OutputHandler interface {
	HandleLine(jobID, line string) (consumed bool)
}

// LogParser extracts a level and message from a stderr line.
type LogParser func(line string) (level, msg string)

// StateChangeCallback is called on every state transition.
type StateChangeCallback func(id string, oldState, newState State, err error)

// Option configures a Job.
type Option func(*options)

type options struct {
	logger          *slog.Logger
	outputLogger    *slog.Logger
	logParser       LogParser
	outputHandler   OutputHandler
	onStateChange   StateChangeCallback
	gracefulTimeout time.Duration
	killTimeout     time.Duration
	tailLines       int
}

func defaultOptions() options {
	return options{
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		gracefulTimeout: DefaultGracefulTimeout,
		killTimeout:     DefaultKillTimeout,
		tailLines:       defaultTailLines,
	}
}

// WithLogger sets the logger for lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLogParser routes stderr through parser and logs it on logger
// (e.g. the "ffmpeg" module logger).
func WithLogParser(logger *slog.Logger, parser LogParser) Option {
	return func(o *options) {
		o.outputLogger = logger
		o.logParser = parser
	}
}

// WithOutputHandler installs a stderr line handler.
func WithOutputHandler(h OutputHandler) Option {
	return func(o *options) { o.outputHandler = h }
}

// WithStateChange installs a transition callback.
func WithStateChange(cb StateChangeCallback) Option {
	return func(o *options) { o.onStateChange = cb }
}

// WithGracefulTimeout sets how long Stop waits after SIGINT.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.gracefulTimeout = d
		}
	}
}

// WithKillTimeout sets how long Stop waits after SIGKILL.
func WithKillTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.killTimeout = d
		}
	}
}

// WithStderrTail sets how many stderr lines are kept for diagnostics.
func WithStderrTail(lines int) Option {
	return func(o *options) {
		if lines > 0 {
			o.tailLines = lines
		}
	}
}
