package relay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/screenrelay/internal/process"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startJob(t *testing.T, script string) *process.Job {
	t.Helper()
	job, err := process.Start(context.Background(),
		process.Spec{ID: t.Name(), Path: "sh", Args: []string{"-c", script}},
		process.WithLogger(testLogger()),
		process.WithGracefulTimeout(100*time.Millisecond),
		process.WithKillTimeout(500*time.Millisecond))
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { job.Close() })
	return job
}

// streamWriter records writes and signals after the first body bytes.
type streamWriter struct {
	mu       sync.Mutex
	header   http.Header
	status   int
	body     bytes.Buffer
	flushes  int
	first    chan struct{}
	once     sync.Once
	failWith error
}

func newStreamWriter() *streamWriter {
	return &streamWriter{header: make(http.Header), first: make(chan struct{})}
}

func (w *streamWriter) Header() http.Header { return w.header }

func (w *streamWriter) WriteHeader(status int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failWith != nil && w.body.Len() > 0 {
		return 0, w.failWith
	}
	w.once.Do(func() { close(w.first) })
	return w.body.Write(p)
}

func (w *streamWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

func (w *streamWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.body.String()
}

func TestServeRelaysChunksInOrder(t *testing.T) {
	job := startJob(t, "for c in one two three four; do printf \"[$c]\"; sleep 0.02; done")
	rec := httptest.NewRecorder()

	res := Serve(context.Background(), rec, job, testLogger())

	if res.Reason != ReasonEncoderExited || res.Err != nil {
		t.Errorf("Result = %+v, want clean exit", res)
	}
	if got := rec.Body.String(); got != "[one][two][three][four]" {
		t.Errorf("body = %q", got)
	}
	if res.BytesWritten != int64(rec.Body.Len()) {
		t.Errorf("BytesWritten = %d, body has %d", res.BytesWritten, rec.Body.Len())
	}
	if job.State() != process.StateExited {
		t.Errorf("job state = %s, want %s", job.State(), process.StateExited)
	}
}

func TestServeHeaders(t *testing.T) {
	job := startJob(t, "true")
	rec := httptest.NewRecorder()

	Serve(context.Background(), rec, job, testLogger())

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	want := map[string]string{
		"Content-Type":        "video/mp2t",
		"Connection":          "keep-alive",
		"Content-Disposition": "inline",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}
	if !rec.Flushed {
		t.Error("headers should be flushed immediately")
	}
}

func TestServeEncoderFailureAppendsDiagnostics(t *testing.T) {
	job := startJob(t, "printf partial-bytes; echo 'device busy' >&2; exit 1")
	rec := httptest.NewRecorder()

	res := Serve(context.Background(), rec, job, testLogger())

	if res.Reason != ReasonEncoderFailed {
		t.Errorf("Reason = %s, want %s", res.Reason, ReasonEncoderFailed)
	}
	var encErr *process.EncodingError
	if !errors.As(res.Err, &encErr) {
		t.Errorf("Err = %v, want *process.EncodingError", res.Err)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "partial-bytes") {
		t.Errorf("body should start with the encoder output, got %q", body)
	}
	if !strings.Contains(body, "FFmpeg error:") || !strings.Contains(body, "device busy") {
		t.Errorf("body should carry the diagnostics, got %q", body)
	}
	if idx := strings.Index(body, "device busy"); idx < len("partial-bytes") {
		t.Error("diagnostics must follow the partial output")
	}
}

func TestServeEncoderFailureSurvivesRepeatedRuns(t *testing.T) {
	for i := range 30 {
		job := startJob(t, "printf x; echo 'device busy' >&2; exit 1")
		rec := httptest.NewRecorder()

		res := Serve(context.Background(), rec, job, testLogger())

		if res.Reason != ReasonEncoderFailed {
			t.Fatalf("run %d: Reason = %s, want %s", i, res.Reason, ReasonEncoderFailed)
		}
		if !strings.Contains(rec.Body.String(), "device busy") {
			t.Fatalf("run %d: body = %q, want diagnostics", i, rec.Body.String())
		}
	}
}

// lateSource ends its output before the process is reaped.
type lateSource struct {
	done         chan struct{}
	err          error
	stopped      bool
	closedBefore bool
}

func (s *lateSource) Read([]byte) (int, error) { return 0, io.EOF }
func (s *lateSource) Stop()                    { s.stopped = true }
func (s *lateSource) Err() error               { return s.err }
func (s *lateSource) Done() <-chan struct{}    { return s.done }

func (s *lateSource) Close() error {
	select {
	case <-s.done:
	default:
		s.closedBefore = true
	}
	return nil
}

func TestServeWaitsForExitAfterEOF(t *testing.T) {
	src := &lateSource{done: make(chan struct{}), err: errors.New("exit status 1")}
	time.AfterFunc(50*time.Millisecond, func() { close(src.done) })

	res := Serve(context.Background(), httptest.NewRecorder(), src, testLogger())

	if src.closedBefore || src.stopped {
		t.Errorf("source closed=%v stopped=%v before it exited", src.closedBefore, src.stopped)
	}
	if res.Reason != ReasonEncoderFailed {
		t.Errorf("Reason = %s, want %s", res.Reason, ReasonEncoderFailed)
	}
}

func TestServeStopsSourceThatNeverExits(t *testing.T) {
	old := ExitTimeout
	ExitTimeout = 50 * time.Millisecond
	t.Cleanup(func() { ExitTimeout = old })

	src := &lateSource{done: make(chan struct{})}
	res := Serve(context.Background(), httptest.NewRecorder(), src, testLogger())

	if !src.stopped {
		t.Error("source should be stopped once the exit wait expires")
	}
	if res.Reason != ReasonEncoderExited {
		t.Errorf("Reason = %s, want %s", res.Reason, ReasonEncoderExited)
	}
}

func TestServeClientCancel(t *testing.T) {
	job := startJob(t, "while :; do printf x; sleep 0.01; done")
	w := newStreamWriter()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan Result, 1)
	go func() { done <- Serve(ctx, w, job, testLogger()) }()

	select {
	case <-w.first:
	case <-time.After(time.Second):
		t.Fatal("no bytes relayed")
	}

	cancel()
	var res Result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after client cancel")
	}

	if res.Reason != ReasonClientGone || !errors.Is(res.Err, ErrClientGone) {
		t.Errorf("Result = %+v, want client-gone", res)
	}
	select {
	case <-job.Done():
	default:
		t.Error("job must be reaped before Serve returns")
	}
	if w.flushes < 2 {
		t.Errorf("expected a flush per write, got %d flushes", w.flushes)
	}
}

func TestServeWriteErrorStopsEncoder(t *testing.T) {
	job := startJob(t, "trap '' INT; while :; do printf data; sleep 0.01; done")
	w := newStreamWriter()
	w.failWith = errors.New("broken pipe")

	done := make(chan Result, 1)
	go func() { done <- Serve(context.Background(), w, job, testLogger()) }()

	select {
	case res := <-done:
		if res.Reason != ReasonClientGone {
			t.Errorf("Reason = %s, want %s", res.Reason, ReasonClientGone)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after write error")
	}

	if job.State() != process.StateExited {
		t.Errorf("job state = %s, want %s", job.State(), process.StateExited)
	}
}
