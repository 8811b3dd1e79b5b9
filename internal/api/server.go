package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humamux"
	"github.com/gorilla/mux"
	"github.com/smazurov/screenrelay/internal/api/models"
	"github.com/smazurov/screenrelay/internal/display"
	"github.com/smazurov/screenrelay/internal/events"
	"github.com/smazurov/screenrelay/internal/ffmpeg"
	"github.com/smazurov/screenrelay/internal/logging"
	"github.com/smazurov/screenrelay/internal/process"
	"github.com/smazurov/screenrelay/internal/version"
)

// EncoderCache exposes the negotiated encoder. *ffmpeg.Negotiator satisfies it.
type EncoderCache interface {
	Current() *ffmpeg.Encoder
	Negotiate(ctx context.Context) (*ffmpeg.Encoder, error)
}

// SessionRegistry lists and stops viewer sessions. *process.Registry satisfies it.
type SessionRegistry interface {
	List() []process.JobInfo
	Stop(id string) error
}

// DisplayChecker reports on an X display.
type DisplayChecker func(ctx context.Context, name string) (display.ScreenInfo, error)

// Options wires the admin API to the running service.
type Options struct {
	Encoders EncoderCache
	Sessions SessionRegistry
	EventBus *events.Bus

	// Display is the X display shown by /api/display.
	Display      string
	CheckDisplay DisplayChecker

	// PrometheusHandler is optional.
	PrometheusHandler http.Handler
}

// Server is the admin API, served on its own listener.
type Server struct {
	api        huma.API
	router     *mux.Router
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates the admin API on a gorilla/mux router.
func NewServer(opts *Options) *Server {
	router := mux.NewRouter()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(router, corsConfig)

	// Prometheus is registered on the router before huma so it stays outside
	// the OpenAPI document.
	if opts.PrometheusHandler != nil {
		router.Handle("/metrics", opts.PrometheusHandler).Methods(http.MethodGet)
	}

	config := huma.DefaultConfig("screenrelay admin API", version.Version)
	config.Info.Description = "Inspect and control the screen capture relay"
	config.Servers = []*huma.Server{}

	api := humamux.New(router, config)
	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	s := newServer(api, opts)
	s.router = router
	return s
}

// newServer registers every route on api.
func newServer(api huma.API, opts *Options) *Server {
	if opts.CheckDisplay == nil {
		opts.CheckDisplay = display.Check
	}
	if opts.EventBus == nil {
		opts.EventBus = events.New()
	}
	s := &Server{
		api:      api,
		options:  opts,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves the admin API on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting admin API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the listener and open connections, including SSE streams.
func (s *Server) Stop() error {
	s.logger.Info("Stopping admin API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Report whether an encoder has been negotiated",
		Tags:        []string{"health"},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{Body: models.HealthData{Status: "ok"}}
		if s.options.Encoders != nil && s.options.Encoders.Current() != nil {
			resp.Body.Ready = true
			resp.Body.Message = "encoder ready"
		} else {
			resp.Body.Status = "degraded"
			resp.Body.Message = "no encoder negotiated"
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		return &models.VersionResponse{Body: version.Get()}, nil
	})

	s.registerEncoderRoutes()
	s.registerSessionRoutes()
	s.registerDisplayRoutes()
	s.registerSSERoutes()
	s.registerMetricsRoutes()
}
