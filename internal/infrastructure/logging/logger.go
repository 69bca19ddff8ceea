package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/satpush/internal/infrastructure/config"
)

// ServiceName is the "service" attribute on every entry.
const ServiceName = "satpush"

// Logger is a *slog.Logger carrying the service and version attributes.
// It satisfies the narrow Logger interfaces declared by push, mqtt and
// relay, and is safe for concurrent use.
type Logger struct {
	*slog.Logger
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New builds a Logger for cfg. Output is "stdout" (the default), "stderr"
// or "discard".
func New(cfg config.LoggingConfig, version string) *Logger {
	return NewWithWriter(cfg, version, outputFor(cfg.Output))
}

func outputFor(name string) io.Writer {
	switch strings.ToLower(name) {
	case "stderr":
		return os.Stderr
	case "discard", "none":
		return io.Discard
	default:
		return os.Stdout
	}
}

// NewWithWriter is New with an explicit destination; cfg.Output is ignored.
// Format "text" selects logfmt-style output, anything else JSON.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}
	h = h.WithAttrs([]slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(h)}
}

// parseLevel maps a case-insensitive level name to slog, falling back to
// info.
func parseLevel(level string) slog.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l
	}
	return slog.LevelInfo
}

// With returns a child Logger with args added to every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component tags entries with the emitting subsystem:
//
//	logger.Component("relay").Warn("queue full")
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default is the JSON/info/stdout logger used until config is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}

// Nop discards everything. Intended for tests.
func Nop() *Logger {
	return NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard)
}
