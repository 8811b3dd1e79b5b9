package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type watchedConfig struct {
	Name  string `toml:"name"`
	Value int    `toml:"value"`
}

func loadWatchedConfig(path string) (watchedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return watchedConfig{}, err
	}
	var cfg watchedConfig
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startWatcher(t *testing.T, content string, opts ...WatcherOption[watchedConfig]) (*Watcher[watchedConfig], string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "screenrelay.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	opts = append([]WatcherOption[watchedConfig]{WithDebounce[watchedConfig](50 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, loadWatchedConfig, newTestLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop() error: %v", err)
		}
	})
	time.Sleep(50 * time.Millisecond)
	return w, path
}

func TestConfigWatcher_Reload(t *testing.T) {
	received := make(chan watchedConfig, 1)
	w, path := startWatcher(t, "name = \"initial\"\nvalue = 1\n")
	w.OnReload(func(cfg watchedConfig) { received <- cfg })

	if err := os.WriteFile(path, []byte("name = \"updated\"\nvalue = 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Name != "updated" || cfg.Value != 42 {
			t.Errorf("got %+v", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestConfigWatcher_RenameReplace(t *testing.T) {
	received := make(chan watchedConfig, 1)
	w, path := startWatcher(t, "value = 1\n")
	w.OnReload(func(cfg watchedConfig) { received <- cfg })

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte("value = 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Value != 7 {
			t.Errorf("Value = %d, want 7", cfg.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("replacing the file should trigger a reload")
	}
}

func TestConfigWatcher_IgnoresSiblings(t *testing.T) {
	var calls atomic.Int32
	w, path := startWatcher(t, "value = 1\n")
	w.OnReload(func(watchedConfig) { calls.Add(1) })

	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "other.toml"), []byte("value = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if calls.Load() != 0 {
		t.Errorf("sibling file change triggered %d reloads", calls.Load())
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	var calls atomic.Int32
	w, path := startWatcher(t, "value = 0\n")
	w.OnReload(func(watchedConfig) { calls.Add(1) })

	for i := range 5 {
		os.WriteFile(path, []byte("value = "+string(rune('1'+i))+"\n"), 0o644)
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(300 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("rapid writes produced %d reloads, want 1", got)
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	var kept, removed atomic.Int32
	w, path := startWatcher(t, "value = 1\n")
	w.OnReload(func(watchedConfig) { kept.Add(1) })
	unsub := w.OnReload(func(watchedConfig) { removed.Add(1) })
	unsub()

	os.WriteFile(path, []byte("value = 2\n"), 0o644)
	time.Sleep(300 * time.Millisecond)

	if kept.Load() != 1 || removed.Load() != 0 {
		t.Errorf("kept=%d removed=%d, want 1 and 0", kept.Load(), removed.Load())
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	errCh := make(chan error, 1)
	_, path := startWatcher(t, "value = 1\n",
		WithErrorHandler[watchedConfig](func(err error) { errCh <- err }))

	os.WriteFile(path, []byte("value = [broken\n"), 0o644)

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("expected a load error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error handler not called")
	}
}

func TestConfigWatcher_StopTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.toml")
	os.WriteFile(path, nil, 0o644)

	w := NewConfigWatcher(path, loadWatchedConfig, nil)
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() before Start = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("first Stop() = %v", err)
	}
	if err := w.Stop(); err != nil && !errors.Is(err, os.ErrClosed) {
		t.Errorf("second Stop() = %v", err)
	}
}
