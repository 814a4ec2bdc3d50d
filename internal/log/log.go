// Package log configures the process-wide slog logger for earshot.
package log

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

var logger *slog.Logger

// Options configures the logger.
type Options struct {
	// Verbose enables debug/info output; without it only warnings and
	// errors reach stderr, so per-item capture and recognition issues stay
	// quiet.
	Verbose bool
	// JSONFormat forces JSON output. When unset, JSON is still used if
	// stderr is not a terminal (logs piped to a file or a CI collector).
	JSONFormat bool
	// Stderr is the output writer (defaults to os.Stderr).
	Stderr io.Writer
}

// Init initializes the global logger with the given options.
func Init(opts Options) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	useJSON := opts.JSONFormat
	if !useJSON && stderr == io.Writer(os.Stderr) {
		useJSON = !isatty.IsTerminal(os.Stderr.Fd())
	}

	var handler slog.Handler
	if useJSON {
		handler = slog.NewJSONHandler(stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(stderr, handlerOpts)
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}

// With returns a logger with additional context.
func With(args ...any) *slog.Logger {
	return logger.With(args...)
}

func init() {
	// Default logger until Init is called
	logger = slog.Default()
}
