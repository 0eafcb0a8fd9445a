// Package debug provides category-gated logging helpers used throughout
// goclangd so that a bulk index run stays quiet by default and setting
// GOCLANGD_DEBUG=1 (or "true") turns on detail for every subsystem at
// once, without adding a structured logging dependency the teacher repo
// doesn't use either. Each line is tagged with its subsystem; there is no
// per-subsystem switch.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// StdioMode tracks whether goclangd is serving LSP over stdio, in which
// case stdout must never receive debug output (it is the JSON-RPC
// transport channel). Set once by cmd/goclangd before starting the
// server.
var StdioMode = false

var (
	mu     sync.Mutex
	output io.Writer = os.Stderr
)

// SetStdioMode toggles whether debug output is suppressed because stdout
// is reserved for LSP framing.
func SetStdioMode(enabled bool) {
	StdioMode = enabled
}

// SetOutput redirects debug output; pass nil to disable it entirely.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Enabled reports whether debug logging is currently active.
func Enabled() bool {
	if StdioMode {
		return false
	}
	if os.Getenv("GOCLANGD_DEBUG") == "1" || os.Getenv("GOCLANGD_DEBUG") == "true" {
		return true
	}
	return false
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

// Log writes a category-tagged debug line when debug logging is enabled.
func Log(component, format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format+"\n", append([]interface{}{component}, args...)...)
}

// LogIndexing logs worklist/coordinator progress.
func LogIndexing(format string, args ...interface{}) { Log("INDEX", format, args...) }

// LogWorker logs per-file Worker diagnostics (parse errors, diagnostic severity).
func LogWorker(format string, args ...interface{}) { Log("WORKER", format, args...) }

// LogStore logs Store write/retry behavior.
func LogStore(format string, args ...interface{}) { Log("STORE", format, args...) }

// LogQuery logs QueryLayer lookups.
func LogQuery(format string, args ...interface{}) { Log("QUERY", format, args...) }

// LogWatch logs file-watcher events.
func LogWatch(format string, args ...interface{}) { Log("WATCH", format, args...) }
