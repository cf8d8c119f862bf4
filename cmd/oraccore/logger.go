package main

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/oraclab/oraccore/internal/config"
)

// newLogger builds the program-wide slog logger: a text handler at the
// configured level, writing to stderr plus a rotating log file under
// dataDir/logs/oraccore.log. Long-lived supervisor output is the main
// reason for rotation — a misbehaving inference subprocess can produce a
// lot of stderr noise over weeks of uptime.
func newLogger(level config.LogLevel, dataDir string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	rotator := &lumberjack.Logger{
		Filename:   dataDir + "/logs/oraccore.log",
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, rotator), &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
