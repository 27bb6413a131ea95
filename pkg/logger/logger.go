// Package logger builds the structured logger shared by every process of the
// progress engine. The API surface is log/slog; records are rendered by
// charmbracelet/log and optionally mirrored into a rotating file.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Format selects how records are rendered.
type Format string

const (
	// FormatText is the human-readable colored format.
	FormatText Format = "text"
	// FormatJSON is one JSON object per line.
	FormatJSON Format = "json"
	// FormatLogfmt is key=value pairs.
	FormatLogfmt Format = "logfmt"
)

// Options configures the logger.
type Options struct {
	// Level is debug, info, warn or error. Default: info.
	Level string

	// Format is text, json or logfmt. Default: text.
	Format Format

	// Prefix is prepended to every message (usually the process name).
	Prefix string

	// File, when set, receives a copy of every record with size-based rotation.
	File string

	// ReportCaller adds file:line of the call site.
	ReportCaller bool

	// Output overrides stderr. Used by tests.
	Output io.Writer
}

// New creates an *slog.Logger backed by charmbracelet/log.
// The returned closer flushes and closes the rotating file, if any.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var writer io.Writer = os.Stderr
	if opts.Output != nil {
		writer = opts.Output
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		writer = io.MultiWriter(writer, fileWriter)
		closer = fileWriter
	}

	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil {
		level = log.InfoLevel
	}

	handler := log.NewWithOptions(writer, log.Options{
		ReportCaller:    opts.ReportCaller,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
		Prefix:          opts.Prefix,
		Formatter:       formatter(opts.Format),
	})

	return slog.New(handler), closer, nil
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel}))
}

func formatter(f Format) log.Formatter {
	switch f {
	case FormatJSON:
		return log.JSONFormatter
	case FormatLogfmt:
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN FIELDS
// ══════════════════════════════════════════════════════════════════════════════

// UserID creates a user_id attribute.
func UserID(id string) slog.Attr { return slog.String("user_id", id) }

// GoalID creates a goal_id attribute.
func GoalID(id int64) slog.Attr { return slog.Int64("goal_id", id) }

// HabitID creates a habit_id attribute.
func HabitID(id int64) slog.Attr { return slog.Int64("habit_id", id) }

// Points creates a points attribute.
func Points(n int) slog.Attr { return slog.Int("points", n) }

// Component creates a component attribute.
func Component(name string) slog.Attr { return slog.String("component", name) }

// Operation creates an operation attribute.
func Operation(name string) slog.Attr { return slog.String("operation", name) }

// Err creates an error attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
