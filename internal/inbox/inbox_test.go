package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
)

func waitFor(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", path)
}

func TestWatcher_ProcessesExistingAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "early.toml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var seen []string
	handle := func(_ context.Context, path string) error {
		mu.Lock()
		seen = append(seen, filepath.Base(path))
		mu.Unlock()
		if filepath.Base(path) == "bad.toml" {
			return errors.New("boom")
		}
		return nil
	}

	w := New(dir, handle, nil)
	w.settle = 50 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, filepath.Join(dir, "early.toml.done"))
	if err := os.WriteFile(filepath.Join(dir, "bad.toml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, filepath.Join(dir, "bad.toml.failed"))

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "early.toml" || seen[1] != "bad.toml" {
		t.Fatalf("handled %v", seen)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Fatalf("non-job file touched: %v", err)
	}
}

func TestWatcher_SecondWatcherIsRejected(t *testing.T) {
	dir := t.TempDir()
	held := flock.New(filepath.Join(dir, LockName))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	defer held.Unlock()

	w := New(dir, func(context.Context, string) error { return nil }, nil)
	err = w.Run(context.Background())
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestWatcher_MissingDir(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "absent"), func(context.Context, string) error { return nil }, nil)
	if err := w.Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestIsJobFile(t *testing.T) {
	tests := map[string]bool{
		"a.toml":               true,
		"/x/B.TOML":            true,
		"a.toml.done":          false,
		".shortcap-watch.lock": false,
		".hidden.toml":         false,
		"a.txt":                false,
	}
	for name, want := range tests {
		if got := isJobFile(name); got != want {
			t.Errorf("isJobFile(%q)=%v want %v", name, got, want)
		}
	}
}
