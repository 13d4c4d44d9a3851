// Package logger provides the structured logger used across dashload.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
)

// Logger wraps slog.Logger with the fields dashload attaches most often.
type Logger struct {
	*slog.Logger
}

// Init configures the package logger. Format is "text" or "json"; output
// goes to stderr so that results printed on stdout stay machine-readable.
func Init(level string, format string) {
	InitWithWriter(level, format, os.Stderr)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(level string, format string, w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = slog.New(newHandler(ParseLevel(level), format, w))
}

func newHandler(level slog.Level, format string, w io.Writer) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.String("timestamp", a.Value.Time().Format(time.RFC3339))
				}
				return a
			},
		})
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLogger returns the package logger, initialising it at info level if
// Init has not been called.
func GetLogger() *Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l == nil {
		Init("INFO", "text")
		mu.RLock()
		l = defaultLogger
		mu.RUnlock()
	}
	return &Logger{l}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithScenario tags the logger with a scenario name.
func (l *Logger) WithScenario(name string) *Logger {
	return &Logger{l.Logger.With("scenario", name)}
}

// WithRunID tags the logger with a run identifier.
func (l *Logger) WithRunID(id string) *Logger {
	return &Logger{l.Logger.With("run_id", id)}
}

// WithVU tags the logger with a virtual user ID.
func (l *Logger) WithVU(id int) *Logger {
	return &Logger{l.Logger.With("vu", id)}
}
