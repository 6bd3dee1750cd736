package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// parseLevel maps a configured level string to a slog.Level. Unrecognised
// values fall back to info so a typo in config never silences the log.
func parseLevel(level string) slog.Level {
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

// SetupLogger installs the process-wide slog default logger.
//
// format "json" selects a JSONHandler for production log aggregation; any
// other value selects a TextHandler for local development. Source locations
// are attached only at debug level.
//
// Installing the default logger means request handlers, the audit recorder,
// and the archive helper can all call slog.Info/Warn/Error directly without
// threading a *slog.Logger through every constructor.
func SetupLogger(format, level string) {
	lvl := parseLevel(level)

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", "church-registry")
	slog.SetDefault(logger)
	slog.Info("logger initialised", "format", format, "level", lvl.String())
}
