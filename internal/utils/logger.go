package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides leveled logging with verbose mode support.
type Logger struct {
	mu      sync.RWMutex
	zl      zerolog.Logger
	verbose bool
	out     io.Writer
	format  string
	fields  map[string]string
}

var (
	loggerInstance *Logger
	once           sync.Once
)

// GetLogger returns the singleton logger instance.
func GetLogger() *Logger {
	once.Do(func() {
		loggerInstance = newLogger(os.Stderr, "console", nil)
	})
	return loggerInstance
}

func newLogger(out io.Writer, format string, fields map[string]string) *Logger {
	l := &Logger{out: out, format: format, fields: fields}
	l.rebuild()
	return l
}

// rebuild recreates the zerolog logger from the current settings. Caller holds mu
// or has exclusive access.
func (l *Logger) rebuild() {
	var w io.Writer = l.out
	if l.format != "json" {
		w = zerolog.ConsoleWriter{Out: l.out, TimeFormat: "15:04:05", NoColor: true}
	}
	ctx := zerolog.New(w).With().Timestamp()
	for k, v := range l.fields {
		ctx = ctx.Str(k, v)
	}
	level := zerolog.InfoLevel
	if l.verbose {
		level = zerolog.DebugLevel
	}
	l.zl = ctx.Logger().Level(level)
}

// SetVerboseMode sets the verbose mode globally.
func SetVerboseMode(verbose bool) {
	GetLogger().SetVerbose(verbose)
}

// Configure sets output and format ("console" or "json") of the global logger.
func Configure(out io.Writer, format string) {
	l := GetLogger()
	l.mu.Lock()
	defer l.mu.Unlock()
	if out != nil {
		l.out = out
	}
	if format != "" {
		l.format = strings.ToLower(format)
	}
	l.rebuild()
}

// SetVerbose sets the verbose mode for this logger instance.
func (l *Logger) SetVerbose(verbose bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = verbose
	l.rebuild()
}

// IsVerbose returns whether verbose mode is enabled.
func (l *Logger) IsVerbose() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.verbose
}

// Component returns a logger that tags every entry with the given component name.
// It shares output, format and verbosity with l at the time of the call.
func (l *Logger) Component(name string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fields := make(map[string]string, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields["component"] = name
	child := newLogger(l.out, l.format, fields)
	child.verbose = l.verbose
	child.rebuild()
	return child
}

// Zerolog exposes the underlying zerolog logger for structured fields.
func (l *Logger) Zerolog() zerolog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zl
}

// formatMessage formats a message with optional printf-style arguments.
func formatMessage(msgOrFormat string, args ...interface{}) string {
	if len(args) > 0 {
		return fmt.Sprintf(msgOrFormat, args...)
	}
	return msgOrFormat
}

// Debug logs a debug message (only shown when verbose=true).
// Can be used with a simple message or printf-style format string with args.
func (l *Logger) Debug(msgOrFormat string, args ...interface{}) {
	zl := l.Zerolog()
	zl.Debug().Msg(formatMessage(msgOrFormat, args...))
}

// Info logs an info message (always shown).
func (l *Logger) Info(msgOrFormat string, args ...interface{}) {
	zl := l.Zerolog()
	zl.Info().Msg(formatMessage(msgOrFormat, args...))
}

// Warn logs a warning message (always shown).
func (l *Logger) Warn(msgOrFormat string, args ...interface{}) {
	zl := l.Zerolog()
	zl.Warn().Msg(formatMessage(msgOrFormat, args...))
}

// Error logs an error message (always shown).
func (l *Logger) Error(msgOrFormat string, args ...interface{}) {
	zl := l.Zerolog()
	zl.Error().Msg(formatMessage(msgOrFormat, args...))
}

// Op logs the outcome of a named operation with its duration. A nil err logs at
// debug level, anything else at error level.
func (l *Logger) Op(op string, started time.Time, err error) {
	zl := l.Zerolog()
	if err != nil {
		zl.Error().Err(err).Str("op", op).Dur("elapsed", time.Since(started)).Msg("operation failed")
		return
	}
	zl.Debug().Str("op", op).Dur("elapsed", time.Since(started)).Msg("operation completed")
}

// Debugf is a convenience function that logs a debug message using the global logger.
func Debugf(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

// Infof is a convenience function that logs an info message using the global logger.
func Infof(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

// Warnf is a convenience function that logs a warning message using the global logger.
func Warnf(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

// Errorf is a convenience function that logs an error message using the global logger.
func Errorf(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}
