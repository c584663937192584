// Package obslog provides a verbose structured logger for reconstructing a
// simulation run after the fact: nodes, transactions, roles, and the
// monitor write a line here, tagged with node/transaction ids, whenever a
// message is dropped, a precondition fails, a send fails, or a role aborts.
//
// When disabled (the default), every call is a no-op with zero allocation
// overhead. A flat timestamped text file is enough for replaying a single
// simulation run after the fact; it deliberately does not pull in a
// structured logging library since nothing here consumes the output
// programmatically.
package obslog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	logger   *Logger
	loggerMu sync.RWMutex
)

// Logger writes structured lines to a file.
type Logger struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	startedAt time.Time
}

// Init opens path (truncating any prior contents) and makes it the active
// global logger. Calling Init when you don't need logging is unnecessary:
// all Event calls are no-ops until Init succeeds.
func Init(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("obslog: open %s: %w", path, err)
	}
	now := time.Now()
	l := &Logger{file: f, path: path, startedAt: now}
	fmt.Fprintf(f, "=== datatree simulation log ===\nstarted: %s\npid: %d\n===\n\n", now.Format(time.RFC3339Nano), os.Getpid())

	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
	return nil
}

// Close flushes and closes the active logger, if any.
func Close() {
	loggerMu.Lock()
	l := logger
	logger = nil
	loggerMu.Unlock()
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.file, "\n=== closed (duration=%s) ===\n", time.Since(l.startedAt))
	l.file.Close()
}

// Enabled reports whether a logger is currently active.
func Enabled() bool {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger != nil
}

// Event writes a structured line: kind, a short message, and key=value
// context pairs. No-op when no logger is active.
//
// Usage: obslog.Event("txn", "finished_absorbing received", "txn", txnID, "node", nodeID)
func Event(kind, msg string, kvs ...any) {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		return
	}

	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kvs); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kvs[i], kvs[i+1])
	}

	elapsed := time.Since(l.startedAt)
	line := fmt.Sprintf("%s +%12s [%-18s] %s\n",
		time.Now().Format("15:04:05.000000000"),
		elapsed.Truncate(time.Microsecond),
		kind,
		b.String(),
	)

	l.mu.Lock()
	l.file.WriteString(line)
	l.mu.Unlock()
}
