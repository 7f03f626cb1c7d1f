package logging

import (
	"io"
	"log"
	"os"
	"strings"
)

type Level int

const (
	LevelDebug Level = 10
	LevelInfo  Level = 20
	LevelWarn  Level = 30
	LevelError Level = 40
)

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

type Logger struct {
	level Level
	base  *log.Logger
}

func New(level string) *Logger {
	return NewWithWriter(level, os.Stderr)
}

func NewWithWriter(level string, w io.Writer) *Logger {
	return &Logger{level: ParseLevel(level), base: log.New(w, "", log.LstdFlags)}
}

// Discard returns a logger that drops everything, for tests and the TUI.
func Discard() *Logger {
	return NewWithWriter("error", io.Discard)
}

func (l *Logger) enabled(level Level) bool {
	return l != nil && level >= l.level
}

func (l *Logger) Debugf(format string, args ...any) {
	if l.enabled(LevelDebug) {
		l.base.Printf("[DEBUG] "+format, args...)
	}
}

func (l *Logger) Infof(format string, args ...any) {
	if l.enabled(LevelInfo) {
		l.base.Printf("[INFO] "+format, args...)
	}
}

func (l *Logger) Warnf(format string, args ...any) {
	if l.enabled(LevelWarn) {
		l.base.Printf("[WARN] "+format, args...)
	}
}

func (l *Logger) Errorf(format string, args ...any) {
	if l.enabled(LevelError) {
		l.base.Printf("[ERROR] "+format, args...)
	}
}

// Printf lets the logger satisfy log.Printf-style interfaces at info level.
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}
