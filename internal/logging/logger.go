// Package logging provides leveled logging and a decision trace for ideograph.
//   - NewLogger returns a leveled slog.Logger for operational output on stderr.
//   - DecisionLogger appends one JSON object per learning decision (edge
//     reinforced, edge weakened, prediction missed) to <dir>/decisions.jsonl.
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace sits below Debug and additionally emits per-step walk detail.
const LevelTrace = slog.LevelDebug - 4

// DecisionFile is the file name the decision trace is written to.
const DecisionFile = "decisions.jsonl"

// ParseLevel maps "info", "debug" or "trace" (any case) to a slog.Level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text slog.Logger writing to w at the given level.
func NewLogger(level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key != slog.LevelKey {
				return a
			}
			if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
				a.Value = slog.StringValue("TRACE")
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// DecisionLogger appends decision events to a JSONL file. It is safe for
// concurrent use, and a nil *DecisionLogger is a valid no-op.
type DecisionLogger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewDecisionLogger opens dir/decisions.jsonl for append when level is debug
// or trace. At info level, or if the file cannot be opened, it returns nil.
func NewDecisionLogger(dir, level string) *DecisionLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil
	}
	path := filepath.Join(dir, DecisionFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil
	}
	return &DecisionLogger{file: f, path: path}
}

// Path returns the trace file path, or "" for a nil logger.
func (dl *DecisionLogger) Path() string {
	if dl == nil {
		return ""
	}
	return dl.path
}

// Log writes event as one line with a "time" field added. The caller's map
// is left untouched.
func (dl *DecisionLogger) Log(event map[string]any) {
	if dl == nil {
		return
	}

	entry := make(map[string]any, len(event)+1)
	maps.Copy(entry, event)
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file == nil {
		return
	}
	_, _ = dl.file.Write(data)
}

// Close closes the trace file. Further Log calls are dropped.
func (dl *DecisionLogger) Close() error {
	if dl == nil {
		return nil
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file == nil {
		return nil
	}
	err := dl.file.Close()
	dl.file = nil
	return err
}
