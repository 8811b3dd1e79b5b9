package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/screenrelay/cmd"
	"github.com/smazurov/screenrelay/internal/api"
	"github.com/smazurov/screenrelay/internal/config"
	"github.com/smazurov/screenrelay/internal/display"
	"github.com/smazurov/screenrelay/internal/events"
	"github.com/smazurov/screenrelay/internal/ffmpeg"
	"github.com/smazurov/screenrelay/internal/logging"
	"github.com/smazurov/screenrelay/internal/metrics/collectors"
	"github.com/smazurov/screenrelay/internal/metrics/exporters"
	"github.com/smazurov/screenrelay/internal/process"
	"github.com/smazurov/screenrelay/internal/server"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"screenrelay.toml"`

	// Stream listener
	Port            string `help:"Stream listener address" short:"p" default:":5599" toml:"server.port" env:"PORT"`
	ProbePerRequest bool   `name:"probe-per-request" help:"Resolve and probe ffmpeg for every viewer" default:"false" toml:"server.probe_per_request" env:"PROBE_PER_REQUEST"`
	StopTimeout     string `name:"stop-timeout" help:"Grace period between SIGINT and SIGKILL for encoders" default:"2s" toml:"server.stop_timeout" env:"STOP_TIMEOUT"`

	// Encoder
	FfmpegPath        string `name:"ffmpeg-path" help:"Explicit ffmpeg binary (wins over --use-local-ffmpeg)" toml:"ffmpeg.path" env:"FFMPEG_PATH"`
	UseLocalFfmpeg    bool   `name:"use-local-ffmpeg" help:"Find ffmpeg on PATH instead of the bundled binary" default:"false" toml:"ffmpeg.use_local" env:"USE_LOCAL_FFMPEG"`
	BundledFfmpegPath string `name:"bundled-ffmpeg-path" help:"Bundled ffmpeg location (default: next to the executable)" toml:"ffmpeg.bundled_path" env:"BUNDLED_FFMPEG_PATH"`
	Display           string `help:"X display to capture" default:":10.0" toml:"capture.display" env:"DISPLAY"`

	// Admin API
	AdminPort   string `name:"admin-port" help:"Admin API address, empty to disable" toml:"admin.port" env:"ADMIN_PORT"`
	WatchConfig bool   `name:"watch-config" help:"Reload logging levels and refresh the encoder when the config file changes" default:"true" toml:"admin.watch_config" env:"WATCH_CONFIG"`

	// Logging settings
	LoggingLevel   string `name:"logging-level" help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `name:"logging-format" help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingServer  string `name:"logging-server" help:"Stream server logging level" default:"info" toml:"logging.server" env:"LOGGING_SERVER"`
	LoggingRelay   string `name:"logging-relay" help:"Relay logging level" default:"info" toml:"logging.relay" env:"LOGGING_RELAY"`
	LoggingEncoder string `name:"logging-encoder" help:"Encoder process logging level" default:"info" toml:"logging.encoder" env:"LOGGING_ENCODER"`
	LoggingFfmpeg  string `name:"logging-ffmpeg" help:"ffmpeg output logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingProbe   string `name:"logging-probe" help:"Resolve and probe logging level" default:"info" toml:"logging.probe" env:"LOGGING_PROBE"`
	LoggingAPI     string `name:"logging-api" help:"Admin API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP    string `name:"logging-http" help:"Admin HTTP access logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func (o *Options) loggingConfig() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"server":  o.LoggingServer,
			"relay":   o.LoggingRelay,
			"encoder": o.LoggingEncoder,
			"ffmpeg":  o.LoggingFfmpeg,
			"probe":   o.LoggingProbe,
			"api":     o.LoggingAPI,
			"http":    o.LoggingHTTP,
		},
	}
}

func (o *Options) resolverConfig() ffmpeg.ResolverConfig {
	return ffmpeg.ResolverConfig{
		ExplicitPath: o.FfmpegPath,
		UseLocal:     o.UseLocalFfmpeg,
		BundledPath:  o.BundledFfmpegPath,
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		configErr := config.LoadConfig(opts, cli.Root())

		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")
		if configErr != nil {
			logger.Warn("Failed to load config", "path", opts.Config, "error", configErr)
		}

		stopTimeout, err := time.ParseDuration(opts.StopTimeout)
		if err != nil {
			logger.Warn("Invalid stop timeout, using default", "value", opts.StopTimeout, "error", err)
			stopTimeout = process.DefaultGracefulTimeout
		}

		eventBus := events.New()
		probeLogger := logging.GetLogger("probe")
		negotiator := ffmpeg.NewNegotiator(ffmpeg.NegotiatorOptions{
			Resolver:     ffmpeg.NewResolver(opts.resolverConfig(), probeLogger),
			Prober:       ffmpeg.NewProber(probeLogger),
			OnNegotiated: server.NegotiationObserver(eventBus),
			Logger:       probeLogger,
		})
		registry := process.NewRegistry(logging.GetLogger("encoder"))

		params := ffmpeg.DefaultParams()
		params.Display = opts.Display

		streamServer := server.New(server.Config{
			Addr:            opts.Port,
			ProbePerRequest: opts.ProbePerRequest,
			StopTimeout:     stopTimeout,
			Params:          params,
		}, server.Deps{
			Negotiator: negotiator,
			Registry:   registry,
			EventBus:   eventBus,
			Progress:   collectors.NewProgressCollector(logging.GetLogger("encoder")),
		})

		var adminServer *api.Server
		var sseExporter *exporters.SSEExporter
		if opts.AdminPort != "" {
			adminServer = api.NewServer(&api.Options{
				Encoders:          negotiator,
				Sessions:          registry,
				EventBus:          eventBus,
				Display:           opts.Display,
				CheckDisplay:      display.Check,
				PrometheusHandler: exporters.HTTPHandler(),
			})
			sseExporter = exporters.NewSSEExporter(eventBus)
		}

		var watcher *config.Watcher[logging.Config]
		if opts.WatchConfig {
			if _, statErr := os.Stat(opts.Config); statErr == nil {
				watcher = config.NewConfigWatcher(opts.Config, config.ReadLoggingConfig, logging.GetLogger("config"))
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		runDone := make(chan struct{})

		hooks.OnStart(func() {
			defer close(runDone)

			go checkDisplay(ctx, opts.Display, logger)

			if watcher != nil {
				watcher.OnReload(func(cfg logging.Config) {
					logging.Initialize(cfg)
					refreshEncoder(ctx, streamServer, logger, "config change")
				})
				if startErr := watcher.Start(); startErr != nil {
					logger.Warn("Failed to watch config file", "path", opts.Config, "error", startErr)
				}
			}

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-hup:
						refreshEncoder(ctx, streamServer, logger, "SIGHUP")
					}
				}
			}()

			if adminServer != nil {
				sseExporter.Start(ctx)
				go func() {
					if startErr := adminServer.Start(opts.AdminPort); startErr != nil {
						logger.Error("Admin API server failed", "addr", opts.AdminPort, "error", startErr)
					}
				}()
			}

			if runErr := streamServer.Run(ctx); runErr != nil {
				logger.Error("Stream server exited", "error", runErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if adminServer != nil {
				if stopErr := adminServer.Stop(); stopErr != nil {
					logger.Error("Error stopping admin API server", "error", stopErr)
				}
				sseExporter.Stop()
			}
			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
			}
			cancel()
			<-runDone
		})
	})

	cli.Root().Use = "screenrelay"
	cli.Root().Short = "Relay a live X11 screen capture to HTTP viewers as MPEG-TS"
	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}

func refreshEncoder(ctx context.Context, s *server.Server, logger *slog.Logger, trigger string) {
	logger.Info("Refreshing encoder", "trigger", trigger)
	if err := s.Refresh(ctx); err != nil {
		logger.Warn("Encoder refresh failed", "trigger", trigger, "error", err)
	}
}

// checkDisplay warns when the captured display cannot be reached. It never
// blocks startup; ffmpeg reports the same problem to each viewer.
func checkDisplay(ctx context.Context, name string, logger *slog.Logger) {
	info, err := display.Check(ctx, name)
	if err != nil {
		logger.Warn("X display not reachable", "display", name, "error", err)
		return
	}
	logger.Info("X display reachable",
		"display", name,
		"width", info.Width,
		"height", info.Height,
		"vendor", info.Vendor)
}
