package exporters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/screenrelay/internal/events"
	"github.com/smazurov/screenrelay/internal/metrics"
)

type mockEventBus struct {
	mu        sync.Mutex
	events    []events.Event
	published chan struct{}
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{published: make(chan struct{}, 100)}
}

func (m *mockEventBus) Publish(ev events.Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	select {
	case m.published <- struct{}{}:
	default:
	}
}

func (m *mockEventBus) getEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

func TestSSEExporterPublishesMetrics(t *testing.T) {
	id := "sse-test-session"
	metrics.SetEncoderMetrics(id, metrics.EncoderMetrics{FPS: 30, Speed: 1.5, DroppedFrames: 5, DuplicateFrames: 2})
	defer metrics.DeleteEncoderMetrics(id)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 20 * time.Millisecond

	exporter.Start(context.Background())
	select {
	case <-mock.published:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for metrics publish")
	}
	exporter.Stop()

	var found bool
	for _, ev := range mock.getEvents() {
		sme, ok := ev.(events.SessionMetricsEvent)
		if !ok || sme.SessionID != id {
			continue
		}
		found = true
		if sme.FPS != "30.00" || sme.Speed != "1.50" || sme.DroppedFrames != "5" || sme.DuplicateFrames != "2" {
			t.Errorf("unexpected event %+v", sme)
		}
		break
	}
	if !found {
		t.Error("expected SessionMetricsEvent for test session")
	}
}

func TestSSEExporterStopIdempotent(t *testing.T) {
	id := "sse-idempotent-session"
	metrics.SetEncoderMetrics(id, metrics.EncoderMetrics{FPS: 30})
	defer metrics.DeleteEncoderMetrics(id)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 10 * time.Millisecond

	exporter.Stop()
	exporter.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	exporter.Stop()
	exporter.Stop()

	count := len(mock.getEvents())
	time.Sleep(30 * time.Millisecond)
	if got := len(mock.getEvents()); got != count {
		t.Errorf("events published after stop: %d, want %d", got, count)
	}
}
