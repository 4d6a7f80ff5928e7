// Package monitoring holds the process-wide logging hooks and metrics.
package monitoring

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/mdobak/go-xerrors"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var structured = slog.New(slog.NewTextHandler(os.Stderr, nil))

// Logger returns the structured logger used for failure records.
func Logger() *slog.Logger {
	return structured
}

// SetStructuredLogger replaces the structured logger. Passing nil discards
// all records.
func SetStructuredLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	structured = l
}

// LogError records a best-effort failure with the stack of the caller
// attached to the error.
func LogError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if err == nil {
		return
	}
	attrs = append(attrs, slog.Any("error", xerrors.New(err)))
	structured.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}
