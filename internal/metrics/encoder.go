package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	encoderFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "fps",
		Help:      "Current encoding FPS",
	}, []string{"session_id"})

	encoderSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "speed",
		Help:      "Encoding speed multiplier",
	}, []string{"session_id"})

	encoderDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "dropped_frames",
		Help:      "Frames dropped by the encoder",
	}, []string{"session_id"})

	encoderDuplicateFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "duplicate_frames",
		Help:      "Frames duplicated by the encoder",
	}, []string{"session_id"})

	// Local cache for SSE exporter access.
	encoderCache   = make(map[string]*EncoderMetrics)
	encoderCacheMu sync.RWMutex
)

// EncoderMetrics holds the latest progress values for a session.
type EncoderMetrics struct {
	FPS             float64
	Speed           float64
	DroppedFrames   float64
	DuplicateFrames float64
}

// SetEncoderMetrics publishes the latest progress values for a session.
func SetEncoderMetrics(sessionID string, m EncoderMetrics) {
	encoderFPS.WithLabelValues(sessionID).Set(m.FPS)
	encoderSpeed.WithLabelValues(sessionID).Set(m.Speed)
	encoderDroppedFrames.WithLabelValues(sessionID).Set(m.DroppedFrames)
	encoderDuplicateFrames.WithLabelValues(sessionID).Set(m.DuplicateFrames)

	encoderCacheMu.Lock()
	encoderCache[sessionID] = &m
	encoderCacheMu.Unlock()
}

// DeleteEncoderMetrics removes all series for a session.
func DeleteEncoderMetrics(sessionID string) {
	encoderFPS.DeleteLabelValues(sessionID)
	encoderSpeed.DeleteLabelValues(sessionID)
	encoderDroppedFrames.DeleteLabelValues(sessionID)
	encoderDuplicateFrames.DeleteLabelValues(sessionID)

	encoderCacheMu.Lock()
	delete(encoderCache, sessionID)
	encoderCacheMu.Unlock()
}

// GetEncoderMetrics returns a copy of a session's values, or nil.
func GetEncoderMetrics(sessionID string) *EncoderMetrics {
	encoderCacheMu.RLock()
	defer encoderCacheMu.RUnlock()
	if m, ok := encoderCache[sessionID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllEncoderMetrics returns copies of every session's values.
func GetAllEncoderMetrics() map[string]*EncoderMetrics {
	encoderCacheMu.RLock()
	defer encoderCacheMu.RUnlock()
	result := make(map[string]*EncoderMetrics, len(encoderCache))
	for id, m := range encoderCache {
		dup := *m
		result[id] = &dup
	}
	return result
}
