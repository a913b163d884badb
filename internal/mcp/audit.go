package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditFile is the audit log's name inside the data directory.
const AuditFile = "audit.jsonl"

// AuditEntry records one MCP tool invocation. It carries metadata only:
// reasoning, headline text and identifiers are never written.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Tool       string            `json:"tool"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success" or "error"
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"` // sanitized metadata only
}

// AuditLogger appends audit entries to a JSONL file. It is safe for
// concurrent use. A nil AuditLogger is safe to use; all methods are no-ops.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewAuditLogger opens dir/audit.jsonl for append. If the file cannot be
// created a warning goes to stderr and nil is returned; auditing is never
// fatal.
func NewAuditLogger(dir string) *AuditLogger {
	if err := os.MkdirAll(dir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create audit log directory %s: %v\n", dir, err)
		return nil
	}

	path := filepath.Join(dir, AuditFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open audit log %s: %v\n", path, err)
		return nil
	}
	return &AuditLogger{file: f, path: path}
}

// Path returns the log file, or "" for a nil logger.
func (a *AuditLogger) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}

// Log appends entry as a single line. Safe to call on nil receiver.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return
	}
	_, _ = a.file.Write(data)
}

// Close closes the log file. Safe to call on nil receiver or twice.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// Parameters whose values are safe to log verbatim.
var safeValueParams = map[string]bool{
	"format":          true,
	"kind":            true,
	"accepted":        true,
	"confidence":      true,
	"limit":           true,
	"min_visits":      true,
	"min_strength":    true,
	"min_expected":    true,
	"min_void_ratio":  true,
	"target_accuracy": true,
	"headline":        true,
}

// Parameters whose presence is logged but whose values may identify a
// person or carry free text.
var presenceOnlyParams = map[string]bool{
	"session_id":  true,
	"user_id":     true,
	"position_id": true,
	"reasoning":   true,
	"scenario":    true,
	"text":        true,
	"output_path": true,
}

// sanitizeToolParams extracts safe metadata from tool parameters.
// Safe-value params are logged as-is, presence-only params as "(set)" when
// non-empty, and anything else is dropped. "_param_count" counts the
// params that were actually provided.
func sanitizeToolParams(toolName string, params map[string]interface{}) map[string]string {
	if params == nil {
		return nil
	}

	result := make(map[string]string)
	provided := 0
	for key, val := range params {
		if isZero(val) {
			continue
		}
		provided++
		switch {
		case safeValueParams[key]:
			result[key] = fmt.Sprintf("%v", val)
		case presenceOnlyParams[key]:
			result[key] = "(set)"
		}
	}
	result["_param_count"] = fmt.Sprintf("%d", provided)
	return result
}

func isZero(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case int:
		return x == 0
	case float64:
		return x == 0
	}
	return false
}

// auditTool logs a tool invocation to the audit log.
func (s *Server) auditTool(toolName string, start time.Time, err error, params map[string]string) {
	status := "success"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = err.Error()
	}

	s.auditLogger.Log(AuditEntry{
		Timestamp:  start,
		Tool:       toolName,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     status,
		Error:      errMsg,
		Params:     params,
	})
}
