// Package relay copies encoder output to an HTTP response.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/smazurov/screenrelay/internal/process"
)

// BufferSize is the copy buffer used per session.
const BufferSize = 32 * 1024

// ContentType is the MPEG-TS media type.
const ContentType = "video/mp2t"

// ExitTimeout bounds how long Serve waits for the encoder to exit on its own
// after its output ends. It is stopped once the wait expires.
var ExitTimeout = 5 * time.Second

// Reason is why a relay ended.
type Reason string

const (
	ReasonEncoderExited Reason = "encoder-exited"
	ReasonEncoderFailed Reason = "encoder-failed"
	ReasonClientGone    Reason = "client-gone"
)

// ErrClientGone is reported when the viewer disconnects mid-stream.
var ErrClientGone = errors.New("client disconnected")

// Source is an encoder whose stdout can be relayed. *process.Job satisfies it.
type Source interface {
	io.Reader
	Stop()
	Close() error
	Err() error
	Done() <-chan struct{}
}

// Result summarizes a finished relay.
type Result struct {
	BytesWritten int64
	Reason       Reason
	Err          error
	Duration     time.Duration
}

// WriteHeaders sends the streaming response headers and flushes them.
func WriteHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Connection", "keep-alive")
	h.Set("Transfer-Encoding", "chunked")
	h.Set("Content-Disposition", "inline")
	h.Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// Serve streams src to w until the encoder ends or the client leaves.
// Cancelling ctx stops the encoder. Serve returns only after src has been
// reaped and closed.
func Serve(ctx context.Context, w http.ResponseWriter, src Source, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	stopOnCancel := context.AfterFunc(ctx, src.Stop)
	defer stopOnCancel()

	WriteHeaders(w)
	flusher, _ := w.(http.Flusher)

	written, writeErr := copyFlushing(w, flusher, src)

	if writeErr != nil || ctx.Err() != nil {
		src.Stop()
		src.Close()
		logger.Info("Viewer disconnected", "bytes", written, "write_error", writeErr)
		return Result{
			BytesWritten: written,
			Reason:       ReasonClientGone,
			Err:          ErrClientGone,
			Duration:     time.Since(start),
		}
	}

	// Output is drained; the exit status is only known once the process is reaped.
	select {
	case <-src.Done():
	case <-time.After(ExitTimeout):
		logger.Warn("Encoder did not exit after closing its output", "timeout", ExitTimeout)
		src.Stop()
	}
	src.Close()

	if err := src.Err(); err != nil {
		writeDiagnostics(w, flusher, err, logger)
		logger.Warn("Encoder failed mid-stream", "bytes", written, "error", err)
		return Result{
			BytesWritten: written,
			Reason:       ReasonEncoderFailed,
			Err:          err,
			Duration:     time.Since(start),
		}
	}

	logger.Info("Encoder finished", "bytes", written)
	return Result{
		BytesWritten: written,
		Reason:       ReasonEncoderExited,
		Duration:     time.Since(start),
	}
}

// copyFlushing copies src to w, flushing after every write so bytes reach
// the viewer as soon as the encoder produces them. Read errors end the copy
// quietly; only write errors are returned.
func copyFlushing(w io.Writer, flusher http.Flusher, src io.Reader) (int64, error) {
	buf := make([]byte, BufferSize)
	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			m, err := w.Write(buf[:n])
			written += int64(m)
			if err != nil {
				return written, err
			}
			if m < n {
				return written, io.ErrShortWrite
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			return written, nil
		}
	}
}

// writeDiagnostics appends the encoder error to the still-open body.
func writeDiagnostics(w io.Writer, flusher http.Flusher, err error, logger *slog.Logger) {
	msg := err.Error()
	var encErr *process.EncodingError
	if errors.As(err, &encErr) {
		msg = fmt.Sprintf("ffmpeg exited with code %d: %s", encErr.ExitCode, encErr.Diagnostics())
	}

	if _, werr := fmt.Fprintf(w, "FFmpeg error: %s", msg); werr != nil {
		logger.Debug("Could not deliver encoder error to viewer", "error", werr)
		return
	}
	if flusher != nil {
		flusher.Flush()
	}
}
