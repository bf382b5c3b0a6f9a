// Package logger provides leveled logging for ribo.
//
// Messages go through log/slog with a clog console handler. The printf-style
// helpers (Debug, Info, Warn, Error) log through the default logger, and
// services that carry a request context can use From(ctx) instead.
// The --verbose flag lowers the level to debug so users can follow the
// retrieval and orchestration pipeline.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/m-mizutani/clog"
)

type contextKey struct{}

var (
	mu            sync.RWMutex
	level         = slog.LevelWarn
	output        io.Writer = os.Stderr
	defaultLogger *slog.Logger
	loggerKey     = contextKey{}
)

func init() {
	defaultLogger = newLogger(level, output)
}

// ParseLevel converts a level name to slog.Level.
// Accepts "debug", "info", "warn", "warning", "error" (case-insensitive).
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", name)
	}
}

// New creates a console logger writing to w at the given level.
func New(lvl slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return newLogger(lvl, w)
}

func newLogger(lvl slog.Level, w io.Writer) *slog.Logger {
	handler := clog.New(
		clog.WithWriter(w),
		clog.WithLevel(lvl),
		clog.WithTimeFmt("15:04:05"),
		clog.WithSource(false),
		clog.WithAttrHook(clog.GoerrHook),
	)
	return slog.New(handler)
}

// SetLevel sets the minimum level of the default logger.
func SetLevel(lvl slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level = lvl
	defaultLogger = newLogger(level, output)
}

// SetVerbose switches between debug and warn level.
func SetVerbose(v bool) {
	if v {
		SetLevel(slog.LevelDebug)
		return
	}
	SetLevel(slog.LevelWarn)
}

// Level returns the minimum level of the default logger.
func Level() slog.Level {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// IsVerbose returns true if debug messages are enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return level <= slog.LevelDebug
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	defaultLogger = newLogger(level, output)
}

// Default returns the default logger.
func Default() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the default logger.
func SetDefault(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// With returns a new context with the logger attached.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// From retrieves the logger from the context.
// If no logger is found, it returns the default logger.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return Default()
}

// Debug logs a formatted debug message.
func Debug(format string, args ...any) {
	Default().Debug(fmt.Sprintf(format, args...))
}

// Info logs a formatted informational message.
func Info(format string, args ...any) {
	Default().Info(fmt.Sprintf(format, args...))
}

// Warn logs a formatted warning.
func Warn(format string, args ...any) {
	Default().Warn(fmt.Sprintf(format, args...))
}

// Error logs a formatted error.
func Error(format string, args ...any) {
	Default().Error(fmt.Sprintf(format, args...))
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if level <= slog.LevelDebug {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
