package app

import (
	"io"
	"log/slog"
)

// newLogger creates and configures a new slog.Logger instance with its own
// level control. It does not set the global logger and shares no state with
// other loggers, allowing for isolated logger instances.
func newLogger(levelStr, formatStr string, outW io.Writer) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	switch levelStr {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler

	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}

	return slog.New(handler), level
}
