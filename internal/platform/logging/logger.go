package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pscheid92/thereiwas/internal/platform/correlation"
	"github.com/pscheid92/thereiwas/internal/platform/version"
)

// Logger is the process-wide logger set by InitLogger.
var Logger *slog.Logger

// InitLogger installs the server logger on stdout as slog's default.
func InitLogger(level, format string) {
	Logger = New(os.Stdout, level, format).With("service", version.Name)
	slog.SetDefault(Logger)
}

// New builds a correlation-aware logger. format is "json" or "text"; unknown
// levels fall back to info.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(correlation.NewHandler(handler))
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
