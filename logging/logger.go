// Package logging provides a tiny abstraction over slog so the engine can
// depend on a minimal interface (Logger) while callers plug in any
// structured logger. It also offers a RunLogger carrying run-scoped
// attributes plus domain helpers for backend calls and tool executions.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger defines the minimal logging interface used throughout agentrun.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// NewJSONLogger creates a JSON Logger writing to w at the given level.
func NewJSONLogger(w io.Writer, level slog.Level) Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return NewSlogAdapter(slog.New(handler))
}

// NoOpLogger discards all log messages. Useful for testing or when logging
// is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// RunLogger decorates a Logger with run-scoped attributes (agent name, run
// id) attached to every entry. It is cheap to copy via the With* helpers.
type RunLogger struct {
	base  Logger
	attrs []any
}

// NewRunLogger wraps base; a nil base falls back to NoOpLogger.
func NewRunLogger(base Logger) *RunLogger {
	if base == nil {
		base = NoOpLogger{}
	}
	return &RunLogger{base: base}
}

// With returns a copy carrying an additional key/value attribute.
func (l *RunLogger) With(key string, value any) *RunLogger {
	attrs := make([]any, 0, len(l.attrs)+2)
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, key, value)
	return &RunLogger{base: l.base, attrs: attrs}
}

// WithRun attaches the agent name and run identifier.
func (l *RunLogger) WithRun(agent, runID string) *RunLogger {
	return l.With("agent", agent).With("run_id", runID)
}

func (l *RunLogger) merge(args []any) []any {
	if len(l.attrs) == 0 {
		return args
	}
	out := make([]any, 0, len(l.attrs)+len(args))
	out = append(out, l.attrs...)
	out = append(out, args...)
	return out
}

// Debug logs at debug level with run attributes.
func (l *RunLogger) Debug(msg string, args ...any) { l.base.Debug(msg, l.merge(args)...) }

// Info logs at info level with run attributes.
func (l *RunLogger) Info(msg string, args ...any) { l.base.Info(msg, l.merge(args)...) }

// Warn logs at warn level with run attributes.
func (l *RunLogger) Warn(msg string, args ...any) { l.base.Warn(msg, l.merge(args)...) }

// Error logs at error level with run attributes.
func (l *RunLogger) Error(msg string, args ...any) { l.base.Error(msg, l.merge(args)...) }

// LogBackendCall records latency and outcome of one backend request.
func (l *RunLogger) LogBackendCall(backendName string, streaming bool, dur time.Duration, err error) {
	args := []any{"backend", backendName, "streaming", streaming, "duration_ms", dur.Milliseconds()}
	if err != nil {
		l.Error("run.backend.failed", append(args, "error", err.Error())...)
		return
	}
	l.Info("run.backend.completed", args...)
}

// LogToolCall records latency and outcome of one tool execution.
func (l *RunLogger) LogToolCall(toolName, callID string, dur time.Duration, err error) {
	args := []any{"tool", toolName, "tool_call_id", callID, "duration_ms", dur.Milliseconds()}
	if err != nil {
		l.Error("run.tool.failed", append(args, "error", err.Error())...)
		return
	}
	l.Info("run.tool.completed", args...)
}
