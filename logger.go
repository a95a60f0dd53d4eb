// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf8"
)

// MaxLogValueLength limits the length of log values to prevent log injection
// and excessive log file growth. Values longer than this are truncated.
const MaxLogValueLength = 1024

// Logger interface for pluggable logging support
//
// Implementations should use structured logging with key-value pairs.
// Two implementations ship with the package:
//   - DefaultLogger: Wraps Go's standard log package with configurable log level
//   - NoOpLogger: Zero-overhead logging when disabled (default)
//
// Every remote call made by a transport is logged at Debug level, so a
// session log doubles as a replayable trace of the automation commands.
//
// Example custom logger integration:
//
//	type SlogAdapter struct {
//	    logger *slog.Logger
//	}
//
//	func (s *SlogAdapter) Debug(ctx context.Context, msg string, keysAndValues ...any) {
//	    s.logger.DebugContext(ctx, msg, keysAndValues...)
//	}
//	// ... implement other methods
//
//	session, _ := testcenter.NewSession(transport,
//	    testcenter.WithLogger(&SlogAdapter{logger: slog.Default()}))
type Logger interface {
	Debug(ctx context.Context, msg string, keysAndValues ...any)
	Info(ctx context.Context, msg string, keysAndValues ...any)
	Warn(ctx context.Context, msg string, keysAndValues ...any)
	Error(ctx context.Context, msg string, keysAndValues ...any)
}

// LogLevel represents the severity threshold for logging
type LogLevel int

const (
	// LogLevelDebug enables all log levels (most verbose)
	LogLevelDebug LogLevel = iota

	// LogLevelInfo enables Info, Warn, and Error logs
	LogLevelInfo

	// LogLevelWarn enables Warn and Error logs
	LogLevelWarn

	// LogLevelError enables only Error logs
	LogLevelError

	// LogLevelNone disables all logging
	LogLevelNone
)

// String returns the string representation of a LogLevel
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// DefaultLogger writes leveled lines through a standard library *log.Logger
//
// Log output format: [LEVEL] message key1=value1 key2=value2
//
// Example:
//
//	logger := testcenter.NewDefaultLogger(testcenter.LogLevelDebug)
//	session, _ := testcenter.NewSession(transport, testcenter.WithLogger(logger))
type DefaultLogger struct {
	level LogLevel
	out   *log.Logger
}

// NewDefaultLogger creates a DefaultLogger with the specified log level
// writing to the standard logger
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	return &DefaultLogger{level: level, out: log.Default()}
}

// NewDefaultLoggerTo creates a DefaultLogger writing to w with the
// standard date and time prefix
func NewDefaultLoggerTo(level LogLevel, w io.Writer) *DefaultLogger {
	return &DefaultLogger{level: level, out: log.New(w, "", log.LstdFlags)}
}

// Level returns the configured threshold
func (l *DefaultLogger) Level() LogLevel {
	return l.level
}

// Debug logs a debug message with structured key-value pairs
func (l *DefaultLogger) Debug(_ context.Context, msg string, keysAndValues ...any) {
	l.log(LogLevelDebug, msg, keysAndValues)
}

// Info logs an informational message with structured key-value pairs
func (l *DefaultLogger) Info(_ context.Context, msg string, keysAndValues ...any) {
	l.log(LogLevelInfo, msg, keysAndValues)
}

// Warn logs a warning message with structured key-value pairs
func (l *DefaultLogger) Warn(_ context.Context, msg string, keysAndValues ...any) {
	l.log(LogLevelWarn, msg, keysAndValues)
}

// Error logs an error message with structured key-value pairs
func (l *DefaultLogger) Error(_ context.Context, msg string, keysAndValues ...any) {
	l.log(LogLevelError, msg, keysAndValues)
}

// log writes one line if level passes the threshold. Keys and values are
// sanitized; the message comes from library code and is written as is.
func (l *DefaultLogger) log(level LogLevel, msg string, keysAndValues []any) {
	if level < l.level {
		return
	}

	var b strings.Builder
	b.Grow(len(msg) + 10 + len(keysAndValues)*25)
	b.WriteString("[")
	b.WriteString(level.String())
	b.WriteString("] ")
	b.WriteString(msg)

	for i := 0; i < len(keysAndValues); i += 2 {
		b.WriteString(" ")
		b.WriteString(sanitizeLogValue(keysAndValues[i]))
		b.WriteString("=")
		if i+1 < len(keysAndValues) {
			b.WriteString(sanitizeLogValue(keysAndValues[i+1]))
		} else {
			b.WriteString("<MISSING>")
		}
	}

	out := l.out
	if out == nil {
		out = log.Default()
	}
	out.Println(b.String())
}

// sanitizeLogValue renders a log value on a single line.
//
// Values longer than MaxLogValueLength are truncated. Line breaks and tabs
// become spaces, other control characters (ANSI escapes included) become
// dots, zero-width characters are dropped and a right-to-left override
// becomes a space. Invalid UTF-8 bytes become dots.
//
//	Input:  "port1\n[ERROR] forged"
//	Output: "port1 [ERROR] forged"
func sanitizeLogValue(val any) string {
	str := fmt.Sprintf("%v", val)
	if len(str) > MaxLogValueLength {
		str = str[:MaxLogValueLength] + "...[TRUNCATED]"
	}

	var b strings.Builder
	b.Grow(len(str))
	for i := 0; i < len(str); {
		r, size := utf8.DecodeRuneInString(str[i:])
		i += size
		switch {
		case r == utf8.RuneError && size <= 1:
			b.WriteByte('.')
		case r == '\n', r == '\r', r == '\t', r == 0x0C:
			b.WriteByte(' ')
		case r == 0x200B, r == 0x200C, r == 0x200D, r == 0xFEFF:
			// zero-width: dropped
		case r == 0x202E:
			b.WriteByte(' ')
		case r < 32 || r == 127:
			b.WriteByte('.')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NoOpLogger is a no-operation logger that discards all log messages
//
// This is the default logger of a Session and of every transport until a
// session injects its own.
type NoOpLogger struct{}

// Debug discards the log message
func (n *NoOpLogger) Debug(_ context.Context, _ string, _ ...any) {}

// Info discards the log message
func (n *NoOpLogger) Info(_ context.Context, _ string, _ ...any) {}

// Warn discards the log message
func (n *NoOpLogger) Warn(_ context.Context, _ string, _ ...any) {}

// Error discards the log message
func (n *NoOpLogger) Error(_ context.Context, _ string, _ ...any) {}
