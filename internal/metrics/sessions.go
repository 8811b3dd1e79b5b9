// Package metrics provides Prometheus metrics for relay sessions and the
// encoders behind them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "screenrelay"

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Number of viewers currently streaming",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Finished sessions by termination reason",
	}, []string{"reason"})

	bytesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bytes_relayed_total",
		Help:      "MPEG-TS bytes written to viewers",
	})

	encoderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "encoder_failures_total",
		Help:      "Encoder processes that failed to start or exited non-zero",
	})

	probeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "probe_duration_seconds",
		Help:      "Time spent probing ffmpeg for a capture format",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"})
)

// SessionStarted records a new viewer.
func SessionStarted() {
	sessionsActive.Inc()
}

// SessionEnded records a finished session and the bytes it relayed.
func SessionEnded(reason string, bytes int64) {
	sessionsActive.Dec()
	sessionsTotal.WithLabelValues(reason).Inc()
	if bytes > 0 {
		bytesRelayed.Add(float64(bytes))
	}
}

// EncoderFailed counts a failed encoder.
func EncoderFailed() {
	encoderFailures.Inc()
}

// ObserveProbe records a probe duration. ok selects the result label.
func ObserveProbe(d time.Duration, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	probeDuration.WithLabelValues(result).Observe(d.Seconds())
}
