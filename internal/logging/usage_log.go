package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// maxErrorLen truncates error messages in audit lines to prevent log bloat.
const maxErrorLen = 100

// UsageLog is the optional file-based audit log for primitive invocations.
//
// One line per invocation, pipe-delimited:
//
//	2026-01-01T10:30:45|tool:celsius_to_fahrenheit|OK
//	2026-01-01T10:31:00|tool:unknown_tool|FAIL|Unknown tool
//
// A disabled UsageLog (empty path) is a no-op, safe to call unconditionally.
// Write failures are swallowed: the audit log must never be able to break
// the observed system.
type UsageLog struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	enabled bool
}

// NewUsageLog opens (or creates) the audit log at path. An empty path
// returns a disabled logger.
func NewUsageLog(path string) *UsageLog {
	if path == "" {
		return &UsageLog{}
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "[mcpstat] audit log directory unavailable: %v\n", err)
			return &UsageLog{path: path}
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[mcpstat] audit log unavailable: %v\n", err)
		return &UsageLog{path: path}
	}
	return &UsageLog{file: file, path: path, enabled: true}
}

// Enabled reports whether lines are actually being written.
func (u *UsageLog) Enabled() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.enabled
}

// Log writes one audit line for an invocation. No-op when disabled.
func (u *UsageLog) Log(name, primitiveType string, success bool, errMsg string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.enabled || u.file == nil {
		return
	}

	status := "OK"
	if !success {
		status = "FAIL"
	}

	line := fmt.Sprintf("%s|%s:%s|%s",
		time.Now().UTC().Format("2006-01-02T15:04:05"), primitiveType, name, status)
	if errMsg != "" {
		if len(errMsg) > maxErrorLen {
			errMsg = errMsg[:maxErrorLen]
		}
		line += "|" + errMsg
	}

	// Errors intentionally ignored
	_, _ = u.file.WriteString(line + "\n")
}

// Close releases the file handle. Safe to call multiple times.
func (u *UsageLog) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.file != nil {
		u.file.Close()
		u.file = nil
	}
	u.enabled = false
}
