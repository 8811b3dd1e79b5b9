package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Strategy names how the encoder path was obtained.
type Strategy string

const (
	StrategyExplicit Strategy = "explicit"
	StrategyLocal    Strategy = "local"
	StrategyBundled  Strategy = "bundled"
)

// ResolverConfig selects the lookup strategy. ExplicitPath wins over UseLocal.
type ResolverConfig struct {
	ExplicitPath string
	UseLocal     bool
	BundledPath  string

	// LookupCommand overrides the platform search command (which/where).
	LookupCommand []string
}

// Resolver locates the ffmpeg binary.
type Resolver struct {
	cfg    ResolverConfig
	logger *slog.Logger
}

// NewResolver creates a resolver for cfg.
func NewResolver(cfg ResolverConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{cfg: cfg, logger: logger}
}

// Strategy returns the strategy Resolve will use.
func (r *Resolver) Strategy() Strategy {
	switch {
	case r.cfg.ExplicitPath != "":
		return StrategyExplicit
	case r.cfg.UseLocal:
		return StrategyLocal
	default:
		return StrategyBundled
	}
}

// Resolve returns the encoder path for the configured strategy.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	strategy := r.Strategy()

	var (
		path string
		err  error
	)
	switch strategy {
	case StrategyExplicit:
		path, err = r.cfg.ExplicitPath, checkExecutable(r.cfg.ExplicitPath)
	case StrategyLocal:
		path, err = r.searchPath(ctx)
	default:
		path, err = r.bundledPath()
		if err == nil {
			err = checkExecutable(path)
		}
	}
	if err != nil {
		return "", &ResolutionError{Strategy: strategy, Path: path, Err: err}
	}

	r.logger.Debug("Resolved ffmpeg", "path", path, "strategy", strategy)
	return path, nil
}

// searchPath runs the platform lookup command and takes the first line.
func (r *Resolver) searchPath(ctx context.Context) (string, error) {
	args := r.cfg.LookupCommand
	if len(args) == 0 {
		args = defaultLookupCommand()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w", strings.Join(args, " "), err)
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return "", errors.New(msg)
	}

	first := firstLine(stdout.String())
	if first == "" {
		return "", errors.New("lookup returned no path")
	}
	return filepath.Abs(first)
}

func (r *Resolver) bundledPath() (string, error) {
	if r.cfg.BundledPath != "" {
		return r.cfg.BundledPath, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(exe), name), nil
}

func defaultLookupCommand() []string {
	if runtime.GOOS == "windows" {
		return []string{"where", "ffmpeg"}
	}
	return []string{"which", "ffmpeg"}
}

func checkExecutable(path string) error {
	_, err := exec.LookPath(path)
	return err
}

func firstLine(s string) string {
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line
		}
	}
	return ""
}
