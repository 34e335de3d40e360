package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger defines the interface for logging throughout the application.
// Different implementations can be used for different contexts (console, silent, etc.)
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// Level is a logging threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts "debug", "info", "warn" or "error" to a Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ConsoleLogger writes human-readable logs. Info and debug lines go to out,
// warnings and errors to errOut.
type ConsoleLogger struct {
	mu     sync.Mutex
	level  Level
	out    io.Writer
	errOut io.Writer
}

// NewConsoleLogger logs at LevelInfo to stdout/stderr.
func NewConsoleLogger() *ConsoleLogger {
	return NewConsoleLoggerWithLevel(LevelInfo)
}

// NewConsoleLoggerWithLevel logs lines at or above level to stdout/stderr.
func NewConsoleLoggerWithLevel(level Level) *ConsoleLogger {
	return &ConsoleLogger{level: level, out: os.Stdout, errOut: os.Stderr}
}

// NewWriterLogger sends every line at or above level to w.
// Used when stdout is owned by another protocol (MCP stdio).
func NewWriterLogger(w io.Writer, level Level) *ConsoleLogger {
	return &ConsoleLogger{level: level, out: w, errOut: w}
}

func (c *ConsoleLogger) Info(msg string, args ...interface{}) {
	c.write(LevelInfo, c.out, "INFO", msg, args)
}

func (c *ConsoleLogger) Warn(msg string, args ...interface{}) {
	c.write(LevelWarn, c.errOut, "WARN", msg, args)
}

func (c *ConsoleLogger) Error(msg string, args ...interface{}) {
	c.write(LevelError, c.errOut, "ERROR", msg, args)
}

func (c *ConsoleLogger) Debug(msg string, args ...interface{}) {
	c.write(LevelDebug, c.out, "DEBUG", msg, args)
}

func (c *ConsoleLogger) write(level Level, w io.Writer, tag, msg string, args []interface{}) {
	if level < c.level {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(w, "%s [%s] %s\n", time.Now().Format("15:04:05.000"), tag, fmt.Sprintf(msg, args...))
}

// SilentLogger discards all log messages.
// Used when running in TUI mode to prevent log output from interfering with the display.
type SilentLogger struct{}

func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

func (s *SilentLogger) Info(msg string, args ...interface{})  {}
func (s *SilentLogger) Warn(msg string, args ...interface{})  {}
func (s *SilentLogger) Error(msg string, args ...interface{}) {}
func (s *SilentLogger) Debug(msg string, args ...interface{}) {}
