package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// RequestLog is one dispatched invocation: a single call to a remote
// function or session method, after the reliability runtime has finished
// with it.
type RequestLog struct {
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	TraceID    string    `json:"trace_id,omitempty"`
	SpanID     string    `json:"span_id,omitempty"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id"`
	Endpoint   string    `json:"endpoint,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	InputSize  int       `json:"input_size"`
	OutputSize int       `json:"output_size,omitempty"`
	Retries    int       `json:"retries,omitempty"`
	FromCache  bool      `json:"from_cache,omitempty"`
}

// Logger appends RequestLog entries to the console (human-readable) and/or
// a file (one JSON object per line).
type Logger struct {
	mu      sync.Mutex
	enabled bool
	console bool
	file    *os.File
}

var defaultLogger = &Logger{enabled: true, console: true}

// Default returns the process-wide request logger.
func Default() *Logger {
	return defaultLogger
}

// SetOutput opens (or creates) an append-mode JSON log file at path,
// replacing any previously configured file.
func (l *Logger) SetOutput(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	l.mu.Lock()
	if l.file != nil {
		l.file.Close()
	}
	l.file = f
	l.mu.Unlock()
	return nil
}

// SetConsole toggles the human-readable console line.
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log stamps and writes one entry.
func (l *Logger) Log(entry *RequestLog) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return
	}

	entry.Timestamp = time.Now()

	if l.console {
		status := "ok"
		if !entry.Success {
			status = "err"
		}
		suffix := ""
		if entry.FromCache {
			suffix += " [cached]"
		}
		if entry.Retries > 0 {
			suffix += fmt.Sprintf(" [retries:%d]", entry.Retries)
		}
		fmt.Printf("[request] %s %s %s %dms%s\n",
			status, entry.RequestID, entry.Resource, entry.DurationMs, suffix)
		if entry.Error != "" {
			fmt.Printf("[request]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		if data, err := json.Marshal(entry); err == nil {
			l.file.Write(append(data, '\n'))
		}
	}
}

// Close releases the log file, if any.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
