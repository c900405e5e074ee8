// Package logging provides file-backed structured loggers for craft components.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a zerolog logger bound to an optional log file.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// ParseLevel maps a config level name to a zerolog level.
// Unknown or empty names map to info.
func ParseLevel(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// New creates a logger appending JSON lines to logPath.
// If logPath is empty, returns a no-op logger.
// Creates parent directories if they don't exist.
func New(logPath string, level string) (*Logger, error) {
	if logPath == "" {
		return Nop(), nil
	}

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &Logger{
		Logger: newZerolog(f, ParseLevel(level)),
		file:   f,
	}
	l.Info().Str("started_at", time.Now().Format(time.RFC3339)).Msg("log opened")
	return l, nil
}

// NewWriter creates a logger writing to w. Used for console output and tests.
func NewWriter(w io.Writer, level string) *Logger {
	return &Logger{Logger: newZerolog(w, ParseLevel(level))}
}

// NewForProject creates a logger in the project's .craft/logs directory.
// Returns a no-op logger if the directory cannot be created.
func NewForProject(projectRoot, level string) *Logger {
	logPath := ProjectLogPath(projectRoot)
	l, err := New(logPath, level)
	if err != nil {
		return Nop()
	}
	return l
}

// ProjectLogPath returns the default log file path for a project.
func ProjectLogPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".craft", "logs", "craft.log")
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// Close closes the log file.
// Safe to call on nil logger or logger without file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return l.With().Str("component", name).Logger()
}

func newZerolog(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
