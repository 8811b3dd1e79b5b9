// Package collectors turns encoder output into metrics.
package collectors

import (
	"log/slog"
	"sync"

	"github.com/smazurov/screenrelay/internal/ffmpeg"
	"github.com/smazurov/screenrelay/internal/metrics"
)

// ProgressCollector parses ffmpeg stats lines from encoder stderr and
// publishes them as per-session metrics. It satisfies process.OutputHandler.
type ProgressCollector struct {
	logger *slog.Logger

	mu       sync.Mutex
	progress map[string]ffmpeg.Progress
}

// NewProgressCollector creates a collector.
func NewProgressCollector(logger *slog.Logger) *ProgressCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressCollector{
		logger:   logger.With("component", "progress_collector"),
		progress: make(map[string]ffmpeg.Progress),
	}
}

// HandleLine consumes progress lines and lets everything else through.
func (c *ProgressCollector) HandleLine(sessionID, line string) bool {
	c.mu.Lock()
	p, ok := ffmpeg.ParseProgress(line, c.progress[sessionID])
	if ok {
		c.progress[sessionID] = p
	}
	c.mu.Unlock()

	if !ok {
		return false
	}

	metrics.SetEncoderMetrics(sessionID, metrics.EncoderMetrics{
		FPS:             p.FPS,
		Speed:           p.Speed,
		DroppedFrames:   float64(p.Dropped),
		DuplicateFrames: float64(p.Dup),
	})
	return true
}

// Forget drops a session's state and metric series.
func (c *ProgressCollector) Forget(sessionID string) {
	c.mu.Lock()
	delete(c.progress, sessionID)
	c.mu.Unlock()
	metrics.DeleteEncoderMetrics(sessionID)
}
