// Package server is the viewer-facing HTTP frontend: it negotiates an
// encoder, then serves GET /stream with one ffmpeg process per request.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gorilla/mux"
	"github.com/smazurov/screenrelay/internal/events"
	"github.com/smazurov/screenrelay/internal/ffmpeg"
	"github.com/smazurov/screenrelay/internal/logging"
	"github.com/smazurov/screenrelay/internal/metrics/collectors"
	"github.com/smazurov/screenrelay/internal/process"
)

// DefaultAddr is the stream listener address.
const DefaultAddr = ":5599"

// StreamPath is the only route on the stream listener.
const StreamPath = "/stream"

// Config is built once at startup and never modified.
type Config struct {
	Addr string

	// ProbePerRequest re-resolves and re-probes ffmpeg for every viewer
	// instead of using the cached encoder.
	ProbePerRequest bool

	// StopTimeout is the grace period between SIGINT and SIGKILL.
	StopTimeout time.Duration

	// ShutdownTimeout bounds how long Run waits for sessions on exit.
	ShutdownTimeout time.Duration

	Params ffmpeg.Params
}

// Deps are the shared components a Server drives.
type Deps struct {
	Negotiator *ffmpeg.Negotiator
	Registry   *process.Registry
	EventBus   *events.Bus

	// Progress is optional.
	Progress *collectors.ProgressCollector

	// Banner receives the startup banner. Defaults to os.Stdout.
	Banner io.Writer

	// OnListening is called once the listener is open.
	OnListening func(addr net.Addr)
}

// Server relays screen captures to HTTP viewers.
type Server struct {
	cfg  Config
	deps Deps

	router        *mux.Router
	logger        *slog.Logger
	relayLogger   *slog.Logger
	encoderLogger *slog.Logger
	ffmpegLogger  *slog.Logger
}

// New creates a server. Negotiator and Registry are required.
func New(cfg Config, deps Deps) *Server {
	if deps.Negotiator == nil || deps.Registry == nil {
		panic("server.Deps with Negotiator and Registry is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if deps.EventBus == nil {
		deps.EventBus = events.New()
	}
	if deps.Banner == nil {
		deps.Banner = os.Stdout
	}

	s := &Server{
		cfg:           cfg,
		deps:          deps,
		logger:        logging.GetLogger("server"),
		relayLogger:   logging.GetLogger("relay"),
		encoderLogger: logging.GetLogger("encoder"),
		ffmpegLogger:  logging.GetLogger("ffmpeg"),
	}

	s.router = mux.NewRouter()
	s.router.HandleFunc(StreamPath, s.handleStream).Methods(http.MethodGet)
	return s
}

// Handler returns the stream router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run negotiates the encoder, then serves until ctx is cancelled. If
// negotiation fails the listener is never opened and the error is returned.
func (s *Server) Run(ctx context.Context) error {
	enc, err := s.deps.Negotiator.Negotiate(ctx)
	if err != nil {
		s.logNegotiationFailure(err)
		return err
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}

	// Viewer requests share a base context that is cancelled on shutdown,
	// which stops every encoder through its request context.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	httpServer := &http.Server{
		Handler:     s.router,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	s.logger.Info("Stream server listening",
		"addr", ln.Addr().String(),
		"ffmpeg", enc.Path,
		"capability", enc.Capability,
		"probe_per_request", s.cfg.ProbePerRequest)
	s.printBanner(ln.Addr())

	if sent, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
		s.logger.Warn("Failed to notify systemd", "error", notifyErr)
	} else if sent {
		s.logger.Debug("Notified systemd readiness")
	}
	if s.deps.OnListening != nil {
		s.deps.OnListening(ln.Addr())
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("serve: %w", err)
		}
	}

	daemon.SdNotify(false, daemon.SdNotifyStopping)
	s.logger.Info("Stopping stream server", "sessions", s.deps.Registry.Len())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	cancelBase()
	s.deps.Registry.StopAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Forcing stream server close", "error", err)
		httpServer.Close()
	}
	return runErr
}

// Refresh renegotiates the cached encoder. On failure the previous encoder
// stays in use.
func (s *Server) Refresh(ctx context.Context) error {
	if _, err := s.deps.Negotiator.Negotiate(ctx); err != nil {
		s.logger.Warn("Encoder refresh failed, keeping previous encoder", "error", err)
		return err
	}
	return nil
}

func (s *Server) logNegotiationFailure(err error) {
	var resErr *ffmpeg.ResolutionError
	var capErr *ffmpeg.CapabilityError
	switch {
	case errors.As(err, &resErr):
		s.logger.Error("Could not find ffmpeg",
			"strategy", resErr.Strategy,
			"path", resErr.Path,
			"error", resErr.Err)
	case errors.As(err, &capErr):
		attrs := []any{"path", capErr.Path}
		for _, a := range capErr.Attempts {
			attrs = append(attrs, string(a.Format), string(a.Outcome))
		}
		s.logger.Error("ffmpeg supports neither xcbgrab nor x11grab", attrs...)
	default:
		s.logger.Error("Encoder negotiation failed", "error", err)
	}
}

func (s *Server) printBanner(addr net.Addr) {
	port := DefaultAddr[1:]
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = fmt.Sprint(tcp.Port)
	}
	fmt.Fprintf(s.deps.Banner,
		"Screen streaming started. View stream using a media player like VLC.\n"+
			"- http://127.0.0.1:%s%s\n"+
			"- http://<your-host>:%s%s\n",
		port, StreamPath, port, StreamPath)
}
