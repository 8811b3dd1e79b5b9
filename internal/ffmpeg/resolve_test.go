package ffmpeg

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestResolveExplicitWinsOverLocal(t *testing.T) {
	explicit := writeScript(t, t.TempDir(), "ffmpeg", "exit 0")

	r := NewResolver(ResolverConfig{
		ExplicitPath:  explicit,
		UseLocal:      true,
		LookupCommand: []string{"sh", "-c", "echo should-not-run >&2; exit 1"},
	}, testLogger())

	if r.Strategy() != StrategyExplicit {
		t.Errorf("Strategy() = %s, want %s", r.Strategy(), StrategyExplicit)
	}
	got, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got != explicit {
		t.Errorf("Resolve() = %q, want %q", got, explicit)
	}
}

func TestResolveExplicitMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "ffmpeg")
	r := NewResolver(ResolverConfig{ExplicitPath: missing}, testLogger())

	_, err := r.Resolve(context.Background())
	if !errors.Is(err, ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %T", err)
	}
	if resErr.Strategy != StrategyExplicit || resErr.Path != missing {
		t.Errorf("ResolutionError = %+v", resErr)
	}
}

func TestResolveLocal(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		want    func() string
		wantErr bool
	}{
		{
			name:   "first line wins",
			script: "echo /opt/ffmpeg/bin/ffmpeg; echo /usr/bin/ffmpeg",
			want:   func() string { return "/opt/ffmpeg/bin/ffmpeg" },
		},
		{
			name:   "relative made absolute",
			script: "echo bin/ffmpeg",
			want: func() string {
				abs, _ := filepath.Abs("bin/ffmpeg")
				return abs
			},
		},
		{
			name:    "lookup fails",
			script:  "exit 1",
			wantErr: true,
		},
		{
			name:    "stderr output",
			script:  "echo /usr/bin/ffmpeg; echo 'which: warning' >&2",
			wantErr: true,
		},
		{
			name:    "no output",
			script:  "exit 0",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(ResolverConfig{
				UseLocal:      true,
				LookupCommand: []string{"sh", "-c", tt.script},
			}, testLogger())

			got, err := r.Resolve(context.Background())
			if tt.wantErr {
				var resErr *ResolutionError
				if !errors.As(err, &resErr) {
					t.Fatalf("expected *ResolutionError, got %v", err)
				}
				if resErr.Strategy != StrategyLocal {
					t.Errorf("Strategy = %s, want %s", resErr.Strategy, StrategyLocal)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if want := tt.want(); got != want {
				t.Errorf("Resolve() = %q, want %q", got, want)
			}
		})
	}
}

func TestResolveBundled(t *testing.T) {
	bundled := writeScript(t, t.TempDir(), "ffmpeg", "exit 0")

	r := NewResolver(ResolverConfig{BundledPath: bundled}, testLogger())
	if r.Strategy() != StrategyBundled {
		t.Errorf("Strategy() = %s, want %s", r.Strategy(), StrategyBundled)
	}
	got, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got != bundled {
		t.Errorf("Resolve() = %q, want %q", got, bundled)
	}

	r = NewResolver(ResolverConfig{BundledPath: filepath.Join(t.TempDir(), "nope")}, testLogger())
	if _, err := r.Resolve(context.Background()); !errors.Is(err, ErrResolution) {
		t.Errorf("expected ErrResolution for missing bundled binary, got %v", err)
	}
}
