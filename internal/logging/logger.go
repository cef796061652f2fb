// Package logging provides leveled logging and round tracing for neurosim.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A RoundTracer for structured JSONL per-round diagnostics (rounds.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug for per-round output.
// At this level every worker logs each phase of every round.
const LevelTrace = slog.LevelDebug - 4

// TraceFilename is the name of the JSONL file written by a RoundTracer.
const TraceFilename = "rounds.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "error", "warn", "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s names a level ParseLevel understands.
func ValidLevel(s string) bool {
	switch strings.ToLower(s) {
	case "error", "warn", "warning", "info", "debug", "trace":
		return true
	}
	return false
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// RoundTrace is one worker's diagnostics for one completed round.
type RoundTrace struct {
	Worker            int `json:"worker"`
	Round             int `json:"round"`
	Clock             int `json:"clock"`
	Drained           int `json:"drained"`
	Sent              int `json:"sent"`
	LocalDeliveries   int `json:"local_deliveries"`
	RoutingViolations int `json:"routing_violations"`
}

// RoundTracer writes RoundTrace records to a JSONL file.
// It is safe for concurrent use by every worker of a run. A nil RoundTracer
// is safe to use; all methods are no-ops on nil receiver.
type RoundTracer struct {
	mu   sync.Mutex
	file *os.File
}

// NewRoundTracer creates a tracer writing to dir/rounds.jsonl.
// At "info" level and above, returns nil and no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewRoundTracer(dir string, level string) *RoundTracer {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, TraceFilename)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &RoundTracer{file: f}
}

type traceLine struct {
	RoundTrace
	Time string `json:"time"`
}

// Trace writes rt as a single JSONL line with a "time" field added.
// Safe to call on nil receiver.
func (rt *RoundTracer) Trace(t RoundTrace) {
	if rt == nil {
		return
	}

	data, err := json.Marshal(traceLine{RoundTrace: t, Time: time.Now().UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return
	}
	data = append(data, '\n')

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.file == nil {
		return
	}
	_, _ = rt.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (rt *RoundTracer) Close() {
	if rt == nil {
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.file != nil {
		rt.file.Close()
		rt.file = nil
	}
}
