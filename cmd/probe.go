// Package cmd holds the cobra subcommands of screenrelay.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/smazurov/screenrelay/internal/config"
	"github.com/smazurov/screenrelay/internal/display"
	"github.com/smazurov/screenrelay/internal/ffmpeg"
	"github.com/smazurov/screenrelay/internal/logging"
	"github.com/spf13/cobra"
)

// ProbeOptions are the probe command's flags. Unset flags fall back to the
// environment and the config file like the server does.
type ProbeOptions struct {
	Config            string
	FfmpegPath        string        `name:"ffmpeg-path" toml:"ffmpeg.path" env:"FFMPEG_PATH"`
	UseLocalFfmpeg    bool          `name:"use-local-ffmpeg" toml:"ffmpeg.use_local" env:"USE_LOCAL_FFMPEG"`
	BundledFfmpegPath string        `name:"bundled-ffmpeg-path" toml:"ffmpeg.bundled_path" env:"BUNDLED_FFMPEG_PATH"`
	Display           string        `toml:"capture.display" env:"DISPLAY"`
	Timeout           time.Duration `toml:"probe.timeout" env:"PROBE_TIMEOUT"`
}

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	opts := &ProbeOptions{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Resolve ffmpeg, probe capture formats and check the X display",
		Long: `Runs the same encoder negotiation the server performs at startup and ` +
			`reports each attempt, then checks that the X display is reachable. ` +
			`Exits non-zero when no usable capture format is found.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := config.LoadConfig(opts, cmd); err != nil {
				fmt.Fprintf(os.Stderr, "config: %v\n", err)
			}
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			if err := RunProbe(ctx, cmd.OutOrStdout(), opts); err != nil {
				fmt.Fprintf(os.Stderr, "probe failed: %v\n", err)
				os.Exit(1)
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Config, "config", "c", "screenrelay.toml", "Path to configuration file")
	flags.StringVar(&opts.FfmpegPath, "ffmpeg-path", "", "Explicit ffmpeg binary")
	flags.BoolVar(&opts.UseLocalFfmpeg, "use-local-ffmpeg", false, "Find ffmpeg on PATH")
	flags.StringVar(&opts.BundledFfmpegPath, "bundled-ffmpeg-path", "", "Bundled ffmpeg location")
	flags.StringVar(&opts.Display, "display", ":10.0", "X display to check")
	flags.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Overall time limit")
	return cmd
}

// RunProbe negotiates an encoder and checks the display, writing a report
// to w. Only negotiation failures are returned; an unreachable display is
// reported but not fatal.
func RunProbe(ctx context.Context, w io.Writer, opts *ProbeOptions) error {
	logger := logging.GetLogger("probe")
	resolver := ffmpeg.NewResolver(ffmpeg.ResolverConfig{
		ExplicitPath: opts.FfmpegPath,
		UseLocal:     opts.UseLocalFfmpeg,
		BundledPath:  opts.BundledFfmpegPath,
	}, logger)

	fmt.Fprintf(w, "strategy:   %s\n", resolver.Strategy())
	path, err := resolver.Resolve(ctx)
	if err != nil {
		fmt.Fprintf(w, "ffmpeg:     not found (%v)\n", err)
		return err
	}
	fmt.Fprintf(w, "ffmpeg:     %s\n", path)

	result, probeErr := ffmpeg.NewProber(logger).Probe(ctx, path)
	attempts := result.Attempts
	var capErr *ffmpeg.CapabilityError
	if errors.As(probeErr, &capErr) {
		attempts = capErr.Attempts
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tOUTCOME\tDETAIL")
	for _, a := range attempts {
		detail := ""
		if a.Err != nil {
			detail = a.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Format, a.Outcome, detail)
	}
	tw.Flush()

	if probeErr != nil {
		fmt.Fprintln(w, "capability: none")
	} else {
		fmt.Fprintf(w, "capability: %s (%s)\n", result.Capability, result.Duration.Round(time.Millisecond))
	}

	info, displayErr := display.Check(ctx, opts.Display)
	if displayErr != nil {
		fmt.Fprintf(w, "display:    %s unreachable (%v)\n", opts.Display, displayErr)
	} else {
		fmt.Fprintf(w, "display:    %s %dx%d depth %d (%s)\n",
			info.Display, info.Width, info.Height, info.Depth, info.Vendor)
	}

	return probeErr
}
