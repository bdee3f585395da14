// Package logger provides structured logging for the simulator.
// Every SCRAM, meltdown and operator action should be traceable through this.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// Options selects where log records go.
type Options struct {
	Level   string    // debug, info, warn, error
	Writer  io.Writer // text sink, defaults to stderr
	File    string    // optional JSON lines sink
	Journal bool      // also send to the systemd journal when available
}

// Logger provides structured logging with context.
type Logger struct {
	log    *slog.Logger
	level  *slog.LevelVar
	closer io.Closer
}

// NewLogger creates a logger writing text records at info level to stderr.
func NewLogger() *Logger {
	l, _ := New(Options{})
	return l
}

// New builds a logger from opts, fanning out to every configured sink.
func New(opts Options) (*Logger, error) {
	level := new(slog.LevelVar)
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	level.Set(lvl)

	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level}),
	}

	l := &Logger{level: level}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.closer = f
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	}

	if opts.Journal {
		journal, err := slogjournal.NewHandler(&slogjournal.Options{
			ReplaceGroup: func(key string) string {
				return journalKey(key)
			},
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = journalKey(a.Key)
				return a
			},
		})
		if err != nil {
			record := slog.NewRecord(time.Now(), slog.LevelWarn, "systemd journal unavailable", 0)
			record.Add("error", err)
			_ = handlers[0].Handle(context.Background(), record)
		} else {
			handlers = append(handlers, journal)
		}
	}

	l.log = slog.New(slogmulti.Fanout(handlers...))
	return l, nil
}

// ParseLevel maps a config string onto a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// SetLevel changes the level of every sink at once.
func (l *Logger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// Debug logs diagnostic messages.
func (l *Logger) Debug(msg string, args ...any) {
	l.log.Debug(msg, args...)
}

// Info logs informational messages.
func (l *Logger) Info(msg string, args ...any) {
	l.log.Info(msg, args...)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string, args ...any) {
	l.log.Warn(msg, args...)
}

// Error logs error messages.
func (l *Logger) Error(msg string, args ...any) {
	l.log.Error(msg, args...)
}

// Event logs a specific simulation event for the operator audit trail.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.log.Info("event", "type", eventType, "actor", actorID, "details", details)
}

// With returns a logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{log: l.log.With(args...), level: l.level}
}

// Slog exposes the underlying slog logger.
func (l *Logger) Slog() *slog.Logger {
	return l.log
}

// Close releases the file sink, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

func journalKey(key string) string {
	key = strings.ToUpper(key)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}
