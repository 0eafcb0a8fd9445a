package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lc168/goclangd/internal/config"
)

// TestWatcherRunExitsCleanlyOnCancel guards the Run goroutine and its
// fsnotify event-reader against leaking once the caller cancels ctx,
// matching the teacher's own goleak coverage of its background watchers.
func TestWatcherRunExitsCleanlyOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	file := filepath.Join(dir, "a.c")
	require.NoError(t, os.WriteFile(file, []byte("void foo(){}\n"), 0o644))

	cfg := config.Default()
	cfg.Index.WatchDebounceMs = 20

	w, err := New(cfg, []string{file}, func(string) {})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(stopped)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Watcher.Run did not exit after context cancellation")
	}

	// Give any in-flight debounce timer goroutine time to fire and exit.
	time.Sleep(50 * time.Millisecond)
}
