package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents logging verbosity.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelTrace:
		return "TRACE"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel maps ERROR|WARN|INFO|DEBUG|TRACE (any case) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "", "INFO":
		return LevelInfo, nil
	case "DEBUG":
		return LevelDebug, nil
	case "TRACE":
		return LevelTrace, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level: %s", s)
}

// Logger provides leveled logging on top of the standard logger.
type Logger struct {
	level Level
	out   *log.Logger
}

// New creates a logger writing to w at the given level.
func New(w io.Writer, level Level) *Logger {
	return &Logger{level: level, out: log.New(w, "", log.LstdFlags)}
}

// NewStderr creates a stderr logger at the given level.
func NewStderr(level Level) *Logger { return New(os.Stderr, level) }

// Discard returns a logger that drops everything.
func Discard() *Logger { return New(io.Discard, LevelError) }

// Level returns the configured verbosity.
func (l *Logger) Level() Level { return l.level }

// Writer exposes the underlying destination, for handing to other loggers.
func (l *Logger) Writer() io.Writer { return l.out.Writer() }

func (l *Logger) logf(level Level, format string, args ...any) {
	if l == nil || l.level < level {
		return
	}
	l.out.Printf("["+level.String()+"] "+format, args...)
}

func (l *Logger) Error(format string, args ...any) { l.logf(LevelError, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Debug(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Trace(format string, args ...any) { l.logf(LevelTrace, format, args...) }
