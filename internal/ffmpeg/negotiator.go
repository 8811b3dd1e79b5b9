package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Encoder is a resolved ffmpeg binary paired with its capture capability.
// Values are never mutated after publication.
type Encoder struct {
	Path       string     `json:"path"`
	Capability Capability `json:"capability"`
	Source     Strategy   `json:"source"`
	ProbedAt   time.Time  `json:"probed_at"`
	Attempts   []Attempt  `json:"attempts"`
}

// NegotiatedCallback is called after every negotiation, successful or not.
// enc is nil on failure.
type NegotiatedCallback func(enc *Encoder, probeDuration time.Duration, err error)

// NegotiatorOptions configures a Negotiator.
type NegotiatorOptions struct {
	Resolver *Resolver
	Prober   *Prober

	// OnNegotiated is optional.
	OnNegotiated NegotiatedCallback

	Logger *slog.Logger
}

// Negotiator resolves and probes ffmpeg, caching the last good Encoder.
type Negotiator struct {
	opts    NegotiatorOptions
	logger  *slog.Logger
	current atomic.Pointer[Encoder]
	mu      sync.Mutex
}

// NewNegotiator creates a negotiator. Resolver and Prober are required.
func NewNegotiator(opts NegotiatorOptions) *Negotiator {
	if opts.Resolver == nil || opts.Prober == nil {
		panic("NegotiatorOptions with Resolver and Prober is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{opts: opts, logger: logger}
}

// Negotiate resolves the binary, probes it, and publishes the result.
// A failed negotiation leaves the previously cached Encoder in place.
func (n *Negotiator) Negotiate(ctx context.Context) (*Encoder, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	enc, duration, err := n.negotiate(ctx)
	if n.opts.OnNegotiated != nil {
		n.opts.OnNegotiated(enc, duration, err)
	}
	if err != nil {
		return nil, err
	}

	n.current.Store(enc)
	n.logger.Info("Encoder negotiated",
		"path", enc.Path,
		"capability", enc.Capability,
		"source", enc.Source,
		"probe_duration", duration)
	return enc, nil
}

// Fresh negotiates without touching the cache.
func (n *Negotiator) Fresh(ctx context.Context) (*Encoder, error) {
	enc, _, err := n.negotiate(ctx)
	return enc, err
}

// Current returns the cached Encoder, or nil before the first success.
func (n *Negotiator) Current() *Encoder {
	return n.current.Load()
}

func (n *Negotiator) negotiate(ctx context.Context) (*Encoder, time.Duration, error) {
	path, err := n.opts.Resolver.Resolve(ctx)
	if err != nil {
		return nil, 0, err
	}

	result, err := n.opts.Prober.Probe(ctx, path)
	if err != nil {
		return nil, result.Duration, fmt.Errorf("probe %s: %w", path, err)
	}

	return &Encoder{
		Path:       path,
		Capability: result.Capability,
		Source:     n.opts.Resolver.Strategy(),
		ProbedAt:   time.Now(),
		Attempts:   result.Attempts,
	}, result.Duration, nil
}
