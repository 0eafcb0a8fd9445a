package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lc168/goclangd/internal/config"
)

func TestWatcherDebouncesBurstIntoOneCall(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.c")
	require.NoError(t, os.WriteFile(file, []byte("void foo(){}\n"), 0o644))

	cfg := config.Default()
	cfg.Index.WatchDebounceMs = 50

	var mu sync.Mutex
	var calls []string
	done := make(chan struct{}, 1)

	w, err := New(cfg, []string{file}, func(path string) {
		mu.Lock()
		calls = append(calls, path)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(file, []byte("void foo(){}\nvoid bar(){}\n"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was never invoked")
	}
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 1, "a burst of writes within the debounce window should coalesce into one reindex")
	require.Equal(t, file, calls[0])
}

func TestWatcherIgnoresUnknownFiles(t *testing.T) {
	dir := t.TempDir()
	known := filepath.Join(dir, "a.c")
	unknown := filepath.Join(dir, "b.c")
	require.NoError(t, os.WriteFile(known, []byte("void foo(){}\n"), 0o644))
	require.NoError(t, os.WriteFile(unknown, []byte("void bar(){}\n"), 0o644))

	cfg := config.Default()
	cfg.Index.WatchDebounceMs = 20

	var mu sync.Mutex
	var calls []string

	w, err := New(cfg, []string{known}, func(path string) {
		mu.Lock()
		calls = append(calls, path)
		mu.Unlock()
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(unknown, []byte("void bar(){}\nvoid baz(){}\n"), 0o644))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Empty(t, calls)
}
