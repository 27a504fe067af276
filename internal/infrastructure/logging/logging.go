// ABOUTME: Structured logging setup with optional rotating file output
// ABOUTME: Installs the process-wide slog default
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

var logFile *lumberjack.Logger

// Setup installs the default slog logger. An empty path logs to
// stdout only; otherwise output also goes to a rotating file.
func Setup(path, level string, jsonOut bool) error {
	writers := []io.Writer{os.Stdout}

	if path != "" {
		logFile = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
		}
		writers = append(writers, logFile)
	}

	out := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if jsonOut {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// Close flushes and releases the rotating file, if one is open.
func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
