package core

import (
	"fmt"
	"strings"

	slog "github.com/vearne/simplelog"
)

// Logger is the structured logging interface used for lifecycle events.
// Implementations can bridge to any logging backend.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// SimpleLogger is the default Logger, backed by vearne/simplelog.
type SimpleLogger struct{}

func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{}
}

func (l *SimpleLogger) Debug(msg string, fields ...Field) {
	slog.Debug("%s", formatMessage(msg, fields))
}

func (l *SimpleLogger) Info(msg string, fields ...Field) {
	slog.Info("%s", formatMessage(msg, fields))
}

func (l *SimpleLogger) Warn(msg string, fields ...Field) {
	slog.Warn("%s", formatMessage(msg, fields))
}

func (l *SimpleLogger) Error(msg string, fields ...Field) {
	slog.Error("%s", formatMessage(msg, fields))
}

func formatMessage(msg string, fields []Field) string {
	if len(fields) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	b.WriteString(" {")
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", f.Key, f.Value)
	}
	b.WriteString("}")
	return b.String()
}

// NoOpLogger discards all log messages. Useful for tests.
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}
