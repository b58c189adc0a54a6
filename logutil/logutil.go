// logutil.go - slog-Hilfsfunktionen mit zusaetzlichem TRACE-Level
// Enthaelt: LevelTrace, NewLogger, Trace, TraceContext
package logutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"
)

// LevelTrace liegt unterhalb von Debug und wird fuer tensor-genaue Ausgaben genutzt
const LevelTrace slog.Level = -8

// NewLogger erstellt einen Text-Logger, der TRACE als eigenes Level ausgibt
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				if attr.Value.Any().(slog.Level) == LevelTrace {
					attr.Value = slog.StringValue("TRACE")
				}
			case slog.SourceKey:
				if source, ok := attr.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return attr
		},
	}))
}

// Trace protokolliert auf TRACE-Level mit dem Aufrufer als Quelle
func Trace(msg string, args ...any) {
	trace(context.TODO(), msg, args...)
}

// TraceContext protokolliert auf TRACE-Level mit Kontext
func TraceContext(ctx context.Context, msg string, args ...any) {
	trace(ctx, msg, args...)
}

func trace(ctx context.Context, msg string, args ...any) {
	logger := slog.Default()
	if !logger.Enabled(ctx, LevelTrace) {
		return
	}

	var pcs [1]uintptr
	// runtime.Callers, trace, Trace bzw. TraceContext
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), LevelTrace, msg, pcs[0])
	r.Add(args...)
	_ = logger.Handler().Handle(ctx, r)
}
