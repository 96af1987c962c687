// Package logger wraps log/slog with the fields the call service scopes its
// logs by: request, room and companion.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Config selects level and encoding
type Config struct {
	Level     string // debug | info | warn | error
	JSON      bool
	Output    io.Writer
	AddSource bool
}

// DefaultConfig logs JSON at info to stderr
func DefaultConfig() Config {
	return Config{Level: "info", JSON: true, Output: os.Stderr}
}

// Logger is a *slog.Logger with call-service helpers
type Logger struct {
	*slog.Logger
}

var global atomic.Pointer[Logger]

// New builds a logger. The first logger built becomes the global one unless
// SetGlobal was called before.
func New(config Config) *Logger {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLevel(config.Level), AddSource: config.AddSource}

	var h slog.Handler = slog.NewTextHandler(out, opts)
	if config.JSON {
		h = slog.NewJSONHandler(out, opts)
	}

	l := &Logger{Logger: slog.New(h)}
	global.CompareAndSwap(nil, l)
	return l
}

// unknown levels fall back to info
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Discard drops everything
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func SetGlobal(l *Logger) { global.Store(l) }

// GetGlobal returns the process logger, or a discarding one before any was set
func GetGlobal() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return Discard()
}

// LogError logs msg at error level with err attached
func (l *Logger) LogError(err error, msg string, args ...any) {
	if err != nil {
		args = append([]any{"error", err.Error()}, args...)
	}
	l.Error(msg, args...)
}

func (l *Logger) with(key, value string) *Logger {
	if value == "" {
		return l
	}
	return &Logger{Logger: l.With(key, value)}
}

func (l *Logger) WithRequestID(requestID string) *Logger { return l.with("request_id", requestID) }

func (l *Logger) WithRoom(roomID string) *Logger { return l.with("room_id", roomID) }

func (l *Logger) WithCompanion(id, name string) *Logger {
	return &Logger{Logger: l.With("companion_id", id, "companion", name)}
}

// LogRequest records one finished HTTP request. Server errors log at error
// level, client errors at warn.
func (l *Logger) LogRequest(method, path string, status int, latency time.Duration) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	l.Log(context.Background(), level, "request completed",
		"method", method,
		"path", path,
		"status", status,
		"latency_ms", latency.Milliseconds(),
	)
}
