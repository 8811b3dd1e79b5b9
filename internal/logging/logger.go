package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger is satisfied by *slog.Logger. Packages that only emit logs accept
// this instead of the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

type moduleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

var (
	mutex       sync.RWMutex
	modules     = make(map[string]*moduleLogger)
	current     = Config{Level: "info", Format: "text"}
	initialized bool
	output      io.Writer = os.Stdout
)

// Initialize applies cfg to every existing and future module logger and
// installs a matching slog default logger.
func Initialize(cfg Config) {
	mutex.Lock()
	defer mutex.Unlock()

	current = cfg
	initialized = true

	// Existing loggers keep their handler; only the level moves.
	for name, ml := range modules {
		ml.level.Set(levelFor(name))
	}

	global := &slog.LevelVar{}
	global.Set(parseLevelOr(cfg.Level, slog.LevelInfo))
	slog.SetDefault(slog.New(newHandler(cfg.Format, global)))
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	ml, ok := modules[module]
	mutex.RUnlock()
	if ok {
		return ml.logger
	}

	mutex.Lock()
	defer mutex.Unlock()

	if ml, ok := modules[module]; ok {
		return ml.logger
	}

	level := &slog.LevelVar{}
	level.Set(levelFor(module))

	format := "text"
	if initialized {
		format = current.Format
	}

	ml = &moduleLogger{
		logger: slog.New(newHandler(format, level)).With("module", module),
		level:  level,
	}
	modules[module] = ml
	return ml.logger
}

// SetModuleLevel changes a module's level at runtime. Unknown levels are ignored.
func SetModuleLevel(module, level string) {
	parsed, ok := parseLevel(level)
	if !ok {
		return
	}
	GetLogger(module)

	mutex.Lock()
	defer mutex.Unlock()
	modules[module].level.Set(parsed)
	if current.Modules == nil {
		current.Modules = make(map[string]string)
	}
	current.Modules[module] = level
}

// levelFor resolves the effective level of a module (must hold lock).
func levelFor(module string) slog.Level {
	if !initialized {
		return slog.LevelInfo
	}
	if override, ok := current.Modules[module]; ok {
		if l, ok := parseLevel(override); ok {
			return l
		}
	}
	return parseLevelOr(current.Level, slog.LevelInfo)
}

// newHandler builds the handler chain for the given format and level.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(output, opts)
	} else {
		stdout = slog.NewTextHandler(output, opts)
	}

	var handlers []slog.Handler
	if output != os.Stdout || isStdoutAvailable() {
		handlers = append(handlers, stdout)
	}
	if output == os.Stdout && IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}

	switch len(handlers) {
	case 0:
		return stdout
	case 1:
		return handlers[0]
	default:
		return NewMultiHandler(handlers...)
	}
}

// isStdoutAvailable reports whether stdout is a terminal, pipe, socket or file.
// /dev/null is a device and is treated as unavailable.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}

func parseLevelOr(level string, fallback slog.Level) slog.Level {
	if l, ok := parseLevel(level); ok {
		return l
	}
	return fallback
}
