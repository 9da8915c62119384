// Package log is a small leveled logger. The terminal belongs to the UI, so
// the commands point it at a file or discard it.
package log

import (
	"io"
	"log"
	"strings"
	"sync"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// LevelFromString parses a level name. Unknown names fall back to info.
func LevelFromString(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "NONE", "OFF":
		return LevelNone
	default:
		return LevelInfo
	}
}

type Logger struct {
	mu     sync.Mutex
	logger *log.Logger
	level  Level
}

func New(out io.Writer, level Level) *Logger {
	return &Logger{
		logger: log.New(out, "", log.Ltime|log.Lmicroseconds),
		level:  level,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, LevelNone)
}

func (l *Logger) logf(level Level, format string, v ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	enabled := l.level <= level
	l.mu.Unlock()
	if enabled {
		l.logger.Printf(level.String()+": "+format, v...)
	}
}

func (l *Logger) Debugf(format string, v ...interface{}) { l.logf(LevelDebug, format, v...) }

func (l *Logger) Infof(format string, v ...interface{}) { l.logf(LevelInfo, format, v...) }

func (l *Logger) Warnf(format string, v ...interface{}) { l.logf(LevelWarn, format, v...) }

func (l *Logger) Errorf(format string, v ...interface{}) { l.logf(LevelError, format, v...) }

