package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions configures the process-wide logger
type LogOptions struct {
	Level      string // "debug", "info", "warn", "error" (default: "error")
	File       string // empty means console only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	NoColor    bool
}

var (
	mu         sync.RWMutex
	base       = newConsoleLogger(os.Stderr, zerolog.ErrorLevel, false)
	fileWriter *lumberjack.Logger
)

func newConsoleLogger(out io.Writer, level zerolog.Level, noColor bool) zerolog.Logger {
	console := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// parseLogLevel parses the log level from environment variable or string
func parseLogLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.ErrorLevel
	}
}

// InitLogger (re)initializes the singleton logger.
// TRAINBOX_LOG_LEVEL overrides opts.Level.
func InitLogger(opts LogOptions) error {
	mu.Lock()
	defer mu.Unlock()

	levelStr := opts.Level
	if v := os.Getenv("TRAINBOX_LOG_LEVEL"); v != "" {
		levelStr = v
	}
	level := parseLogLevel(levelStr)

	if fileWriter != nil {
		fileWriter.Close()
		fileWriter = nil
	}

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    opts.NoColor,
	}

	if opts.File == "" {
		base = zerolog.New(console).Level(level).With().Timestamp().Logger()
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	fileWriter = &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    withDefault(opts.MaxSizeMB, 10),
		MaxBackups: withDefault(opts.MaxBackups, 5),
		MaxAge:     withDefault(opts.MaxAgeDays, 14),
		LocalTime:  true,
	}
	// The file always records debug output; the console keeps the configured level.
	multi := zerolog.MultiLevelWriter(
		levelWriter{Writer: console, min: level},
		levelWriter{Writer: fileWriter, min: zerolog.DebugLevel},
	)
	base = zerolog.New(multi).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	return nil
}

// SetOutput redirects console logging, used by tests to capture output
func SetOutput(w io.Writer, level string) {
	mu.Lock()
	defer mu.Unlock()
	base = newConsoleLogger(w, parseLogLevel(level), true)
}

func withDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// levelWriter drops events below min for a single sink of a MultiLevelWriter
type levelWriter struct {
	io.Writer
	min zerolog.Level
}

func (w levelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < w.min {
		return len(p), nil
	}
	return w.Write(p)
}

// Log returns a module-scoped handle for the singleton logger
func Log(module string) *ModuleLogger {
	return &ModuleLogger{module: module}
}

// ModuleLogger provides logging scoped to a module name
type ModuleLogger struct {
	module string
	fields map[string]string
}

// With returns a copy of the logger that attaches key=value to every event
func (m *ModuleLogger) With(key, value string) *ModuleLogger {
	fields := make(map[string]string, len(m.fields)+1)
	for k, v := range m.fields {
		fields[k] = v
	}
	fields[key] = value
	return &ModuleLogger{module: m.module, fields: fields}
}

func (m *ModuleLogger) event(level zerolog.Level) *zerolog.Event {
	mu.RLock()
	l := base
	mu.RUnlock()

	e := l.WithLevel(level)
	if e == nil {
		return nil
	}
	e = e.Str("module", m.module)
	for k, v := range m.fields {
		e = e.Str(k, v)
	}
	return e
}

func (m *ModuleLogger) log(level zerolog.Level, format string, args ...interface{}) {
	e := m.event(level)
	if e == nil {
		return
	}
	e.Msgf(format, args...)
}

// Debug logs a debug message (only if log level is debug)
func (m *ModuleLogger) Debug(format string, args ...interface{}) {
	m.log(zerolog.DebugLevel, format, args...)
}

// Debugf is an alias for Debug (for API consistency)
func (m *ModuleLogger) Debugf(format string, args ...interface{}) {
	m.Debug(format, args...)
}

// Info logs an informational message
func (m *ModuleLogger) Info(format string, args ...interface{}) {
	m.log(zerolog.InfoLevel, format, args...)
}

// Infof is an alias for Info (for API consistency)
func (m *ModuleLogger) Infof(format string, args ...interface{}) {
	m.Info(format, args...)
}

// Warning logs a warning message
func (m *ModuleLogger) Warning(format string, args ...interface{}) {
	m.log(zerolog.WarnLevel, format, args...)
}

// Warningf is an alias for Warning (for API consistency)
func (m *ModuleLogger) Warningf(format string, args ...interface{}) {
	m.Warning(format, args...)
}

// Error logs an error message
func (m *ModuleLogger) Error(format string, args ...interface{}) {
	m.log(zerolog.ErrorLevel, format, args...)
}

// Errorf is an alias for Error (for API consistency)
func (m *ModuleLogger) Errorf(format string, args ...interface{}) {
	m.Error(format, args...)
}
