package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNegotiatorCachesLastGoodEncoder(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken")
	path := writeScript(t, dir, "ffmpeg",
		`if [ -f "`+broken+`" ]; then exit 1; fi; echo xcbgrab`)

	var calls []error
	n := NewNegotiator(NegotiatorOptions{
		Resolver: NewResolver(ResolverConfig{ExplicitPath: path}, testLogger()),
		Prober:   NewProber(testLogger()),
		OnNegotiated: func(_ *Encoder, _ time.Duration, err error) {
			calls = append(calls, err)
		},
		Logger: testLogger(),
	})

	if n.Current() != nil {
		t.Fatal("Current() should be nil before negotiation")
	}

	enc, err := n.Negotiate(context.Background())
	if err != nil {
		t.Fatalf("Negotiate() error: %v", err)
	}
	if enc.Path != path || enc.Capability != CapabilityXCBGrab || enc.Source != StrategyExplicit {
		t.Errorf("unexpected encoder %+v", enc)
	}
	if n.Current() != enc {
		t.Error("Current() should return the negotiated encoder")
	}

	if err := os.WriteFile(broken, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := n.Negotiate(context.Background()); !errors.Is(err, ErrCapabilityNotFound) {
		t.Fatalf("expected ErrCapabilityNotFound, got %v", err)
	}
	if n.Current() != enc {
		t.Error("failed refresh must keep the previous encoder")
	}

	if len(calls) != 2 || calls[0] != nil || calls[1] == nil {
		t.Errorf("OnNegotiated calls = %v", calls)
	}
}

func TestNegotiatorFreshDoesNotCache(t *testing.T) {
	path := writeScript(t, t.TempDir(), "ffmpeg", "echo x11grab")
	n := NewNegotiator(NegotiatorOptions{
		Resolver: NewResolver(ResolverConfig{ExplicitPath: path}, testLogger()),
		Prober:   NewProber(testLogger()),
	})

	enc, err := n.Fresh(context.Background())
	if err != nil {
		t.Fatalf("Fresh() error: %v", err)
	}
	if enc.Capability != CapabilityX11Grab {
		t.Errorf("Capability = %s, want %s", enc.Capability, CapabilityX11Grab)
	}
	if n.Current() != nil {
		t.Error("Fresh() must not populate the cache")
	}
}

func TestNegotiatorResolutionError(t *testing.T) {
	n := NewNegotiator(NegotiatorOptions{
		Resolver: NewResolver(ResolverConfig{ExplicitPath: filepath.Join(t.TempDir(), "missing")}, testLogger()),
		Prober:   NewProber(testLogger()),
	})

	_, err := n.Negotiate(context.Background())
	if !errors.Is(err, ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
	if errors.Is(err, ErrCapabilityNotFound) {
		t.Error("resolution failure must not look like a capability failure")
	}
}
