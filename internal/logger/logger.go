package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Logger provides leveled, structured logging for the engine
type Logger struct {
	*slog.Logger
	file *os.File
}

// ParseLevel converts a config string into a slog level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger writing text records to w
func New(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return New(io.Discard, slog.LevelError)
}

// NewLogger creates a new logger instance writing to a timestamped file in logDir
func NewLogger(logDir string, level slog.Level) (*Logger, error) {
	// Create log directory if it doesn't exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("engine_%s.log", timestamp))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	l := New(file, level)
	l.file = file
	return l, nil
}

// Subsystem returns a child logger tagged with the component name
func (l *Logger) Subsystem(name string) *Logger {
	if l == nil {
		return Discard().Subsystem(name)
	}
	return &Logger{Logger: l.With(slog.String("subsystem", name))}
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// LogLLMInteraction logs an LLM interaction
func (l *Logger) LogLLMInteraction(operation string, input interface{}, output interface{}, err error) {
	if err != nil {
		l.Error("llm operation failed", "operation", operation, "input", fmt.Sprintf("%+v", input), "error", err)
		return
	}
	l.Debug("llm operation", "operation", operation, "input", fmt.Sprintf("%+v", input), "output", fmt.Sprintf("%+v", output))
}
