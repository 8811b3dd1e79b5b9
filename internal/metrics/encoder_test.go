package metrics

import (
	"sync"
	"testing"
)

func TestEncoderMetricsCache(t *testing.T) {
	id := "test-session-1"
	DeleteEncoderMetrics(id)

	if m := GetEncoderMetrics(id); m != nil {
		t.Error("expected nil for unknown session")
	}

	SetEncoderMetrics(id, EncoderMetrics{FPS: 25, Speed: 1.01, DroppedFrames: 3, DuplicateFrames: 1})

	m := GetEncoderMetrics(id)
	if m == nil {
		t.Fatal("expected non-nil metrics")
	}
	if m.FPS != 25 || m.Speed != 1.01 || m.DroppedFrames != 3 || m.DuplicateFrames != 1 {
		t.Errorf("unexpected values %+v", m)
	}

	m.FPS = 999
	if GetEncoderMetrics(id).FPS != 25 {
		t.Error("returned copy must not alias the cache")
	}

	DeleteEncoderMetrics(id)
	if GetEncoderMetrics(id) != nil {
		t.Error("expected nil after delete")
	}
}

func TestGetAllEncoderMetrics(t *testing.T) {
	DeleteEncoderMetrics("session-a")
	DeleteEncoderMetrics("session-b")
	defer DeleteEncoderMetrics("session-a")
	defer DeleteEncoderMetrics("session-b")

	SetEncoderMetrics("session-a", EncoderMetrics{FPS: 25})
	SetEncoderMetrics("session-b", EncoderMetrics{FPS: 12})

	all := GetAllEncoderMetrics()
	if all["session-a"] == nil || all["session-a"].FPS != 25 {
		t.Errorf("session-a = %v", all["session-a"])
	}
	if all["session-b"] == nil || all["session-b"].FPS != 12 {
		t.Errorf("session-b = %v", all["session-b"])
	}
}

func TestEncoderMetricsConcurrency(t *testing.T) {
	id := "concurrent-session"
	defer DeleteEncoderMetrics(id)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			SetEncoderMetrics(id, EncoderMetrics{FPS: v})
			_ = GetEncoderMetrics(id)
			_ = GetAllEncoderMetrics()
		}(float64(i))
	}
	wg.Wait()

	if GetEncoderMetrics(id) == nil {
		t.Error("expected metrics after concurrent writes")
	}
}
