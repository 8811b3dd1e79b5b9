package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Default timeouts used by Stop.
const (
	DefaultGracefulTimeout = 2 * time.Second
	DefaultKillTimeout     = 2 * time.Second
	defaultTailLines       = 20
)

// Spec describes the subprocess to run.
type Spec struct {
	ID   string
	Path string
	Args []string
}

// Job is one supervised encoder subprocess. Read consumes its stdout.
type Job struct {
	spec    Spec
	opts    options
	logger  *slog.Logger
	cmd     *exec.Cmd
	stdout  *os.File
	started time.Time

	mu       sync.Mutex
	state    State
	exitCode int
	err      error
	stopped  bool // stop signalled before the process was reaped
	reaped   bool

	bytesRead  atomic.Int64
	eof        atomic.Bool
	stopOnce   sync.Once
	closeOnce  sync.Once
	done       chan struct{}
	stderrDone chan struct{}
	tail       *lineTail
}

// Start spawns the process in its own process group. The job is stopped when
// ctx is cancelled.
func Start(ctx context.Context, spec Spec, opts ...Option) (*Job, error) {
	if spec.Path == "" {
		return nil, errors.New("empty encoder path")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	j := &Job{
		spec:       spec,
		opts:       o,
		logger:     o.logger.With("job_id", spec.ID),
		done:       make(chan struct{}),
		stderrDone: make(chan struct{}),
		tail:       newLineTail(o.tailLines),
	}
	j.transition(StateStarting, nil)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, j.startFailed(fmt.Errorf("stdout pipe: %w", err))
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, j.startFailed(fmt.Errorf("stderr pipe: %w", err))
	}

	j.cmd = exec.Command(spec.Path, spec.Args...)
	j.cmd.Stdout = stdoutW
	j.cmd.Stderr = stderrW
	j.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	err = j.cmd.Start()
	// The child holds its own copies; ours must go so EOF reaches the readers.
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		stdoutR.Close()
		stderrR.Close()
		return nil, j.startFailed(fmt.Errorf("start %s: %w", spec.Path, err))
	}

	j.stdout = stdoutR
	j.started = time.Now()
	j.logger.Info("Encoder started", "pid", j.cmd.Process.Pid, "command", j.commandLine())

	go j.readStderr(stderrR)

	stopOnCancel := context.AfterFunc(ctx, j.Stop)
	go func() {
		j.wait()
		stopOnCancel()
	}()

	return j, nil
}

// ID returns the job ID.
func (j *Job) ID() string {
	return j.spec.ID
}

// PID returns the process ID, or 0 if the process never started.
func (j *Job) PID() int {
	if j.cmd == nil || j.cmd.Process == nil {
		return 0
	}
	return j.cmd.Process.Pid
}

// State returns the current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Done is closed once the process has been reaped and the final state is set.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Err returns the failure, if any. It is nil until Done is closed and for
// jobs that ended in StateExited.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Info returns a snapshot of the job.
func (j *Job) Info() JobInfo {
	j.mu.Lock()
	defer j.mu.Unlock()

	info := JobInfo{
		ID:        j.spec.ID,
		State:     j.state,
		PID:       j.PID(),
		StartedAt: j.started,
		BytesRead: j.bytesRead.Load(),
		ExitCode:  j.exitCode,
	}
	if j.err != nil {
		info.LastError = j.err.Error()
	}
	return info
}

// Read reads encoder stdout. It returns io.EOF once the process has closed
// its output. The first successful read moves the job to StateStreaming.
func (j *Job) Read(p []byte) (int, error) {
	n, err := j.stdout.Read(p)
	if n > 0 && j.bytesRead.Add(int64(n)) == int64(n) {
		j.transition(StateStreaming, nil)
	}
	if errors.Is(err, os.ErrClosed) {
		err = io.EOF
	}
	if err == io.EOF {
		j.eof.Store(true)
	}
	return n, err
}

// Stop terminates the process group: SIGINT first, SIGKILL after the
// graceful timeout. It blocks until the process is reaped or the kill
// timeout also expires. Safe to call multiple times and after exit.
func (j *Job) Stop() {
	j.stopOnce.Do(func() {
		j.mu.Lock()
		if j.reaped {
			j.mu.Unlock()
			<-j.done
			return
		}
		j.stopped = true
		j.mu.Unlock()

		j.logger.Debug("Stopping encoder", "pid", j.PID())
		j.signal(syscall.SIGINT)

		select {
		case <-j.done:
			return
		case <-time.After(j.opts.gracefulTimeout):
		}

		j.logger.Warn("Graceful stop timed out, killing encoder", "timeout", j.opts.gracefulTimeout)
		j.signal(syscall.SIGKILL)

		select {
		case <-j.done:
		case <-time.After(j.opts.killTimeout):
			j.logger.Error("Encoder did not exit after SIGKILL", "pid", j.PID())
		}
	})
}

// Close stops the job if needed, waits for it to be reaped and releases
// the stdout pipe. After stdout has reached EOF the process is given the
// graceful timeout to exit on its own, so its exit status is kept.
func (j *Job) Close() error {
	if j.eof.Load() {
		select {
		case <-j.done:
		case <-time.After(j.opts.gracefulTimeout):
			j.Stop()
		}
	} else {
		j.Stop()
	}
	<-j.done
	var err error
	j.closeOnce.Do(func() {
		err = j.stdout.Close()
	})
	return err
}

func (j *Job) signal(sig syscall.Signal) {
	pid := j.PID()
	if pid == 0 {
		return
	}
	err := syscall.Kill(-pid, sig)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return
	}
	j.logger.Debug("Process group signal failed, signalling leader", "signal", sig, "error", err)
	if err := j.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		j.logger.Warn("Failed to signal encoder", "signal", sig, "error", err)
	}
}

// wait reaps the process and records the final state.
func (j *Job) wait() {
	waitErr := j.cmd.Wait()

	j.mu.Lock()
	j.reaped = true
	stopped := j.stopped
	j.mu.Unlock()

	// Children left in the group would keep the pipes open.
	if err := syscall.Kill(-j.PID(), syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		j.logger.Debug("Failed to clean up process group", "error", err)
	}

	select {
	case <-j.stderrDone:
	case <-time.After(j.opts.killTimeout):
		j.logger.Warn("Timed out draining encoder stderr")
	}

	exitCode := exitCodeFromError(waitErr)

	switch {
	case stopped:
		// A requested stop is a clean exit whatever the signal status was.
		j.logger.Info("Encoder stopped", "status", exitCode, "bytes", j.bytesRead.Load())
		j.transition(StateExited, nil)
	case waitErr == nil:
		j.logger.Info("Encoder exited", "bytes", j.bytesRead.Load())
		j.transition(StateExited, nil)
	default:
		j.mu.Lock()
		j.exitCode = exitCode
		j.mu.Unlock()

		encErr := &EncodingError{
			ID:       j.spec.ID,
			ExitCode: exitCode,
			Stderr:   j.tail.String(),
			Err:      waitErr,
		}
		j.logger.Error("Encoder failed", "exit_code", exitCode, "stderr", encErr.Stderr)
		j.transition(StateFailed, encErr)
	}
	close(j.done)
}

func (j *Job) startFailed(err error) error {
	encErr := &EncodingError{ID: j.spec.ID, ExitCode: -1, Err: err}
	j.logger.Error("Failed to start encoder", "error", err)
	j.transition(StateFailed, encErr)
	close(j.stderrDone)
	close(j.done)
	return encErr
}

// transition moves to state and fires the callback. Moves out of a terminal
// state and repeated moves into the same state are ignored.
func (j *Job) transition(state State, err error) {
	j.mu.Lock()
	old := j.state
	if old == state || old.Terminal() {
		j.mu.Unlock()
		return
	}
	j.state = state
	if err != nil {
		j.err = err
	}
	j.mu.Unlock()

	if j.opts.onStateChange != nil {
		j.opts.onStateChange(j.spec.ID, old, state, err)
	}
}

// readStderr logs encoder diagnostics and keeps the last lines for errors.
func (j *Job) readStderr(r io.ReadCloser) {
	defer close(j.stderrDone)
	defer r.Close()

	scanner := bufio.NewScanner(r)
	scanner.Split(scanLinesOrCR)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if j.opts.outputHandler != nil && j.opts.outputHandler.HandleLine(j.spec.ID, line) {
			continue
		}
		j.tail.Add(line)
		j.logLine(line)
	}

	if err := scanner.Err(); err != nil {
		j.logger.Warn("Error reading encoder stderr", "error", err)
	}
}

func (j *Job) logLine(line string) {
	logger := j.opts.outputLogger
	if logger == nil {
		logger = j.logger
	}

	level, msg := "info", line
	if j.opts.logParser != nil {
		level, msg = j.opts.logParser(line)
	}

	switch level {
	case "panic", "fatal", "error":
		logger.Error(msg, "job_id", j.spec.ID)
	case "warning":
		logger.Warn(msg, "job_id", j.spec.ID)
	case "debug", "trace", "verbose":
		logger.Debug(msg, "job_id", j.spec.ID)
	default:
		logger.Info(msg, "job_id", j.spec.ID)
	}
}

func (j *Job) commandLine() string {
	return strings.Join(append([]string{j.spec.Path}, j.spec.Args...), " ")
}

// exitCodeFromError extracts the exit code from a Wait error.
// Returns 0 for nil, the exit status for *exec.ExitError (128+signal when
// signalled), or 1 otherwise.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}

// scanLinesOrCR splits on \n or \r. ffmpeg rewrites its stats line with \r.
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
