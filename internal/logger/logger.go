package logger

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	base  zerolog.Logger
	ready atomic.Bool
)

// Init configures the global JSON logger.
//
// Environment variables (optional):
//   - LOG_LEVEL: debug|info|warn|error (default: info)
//   - LOG_PRETTY: true|false (default: false)
//   - LOG_FILE: path of a rotated log file written in addition to stdout
//   - LOG_FILE_MAX_SIZE_MB: rotation size (default: 100)
//   - LOG_FILE_MAX_BACKUPS: rotated files kept (default: 5)
//   - LOG_FILE_MAX_AGE_DAYS: days rotated files are kept (default: 28)
func Init() {
	level := parseLevel(getenv("LOG_LEVEL", "info"))
	pretty := strings.EqualFold(getenv("LOG_PRETTY", "false"), "true")

	zerolog.TimeFieldFormat = time.RFC3339Nano
	var w io.Writer = os.Stdout
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	if path := getenv("LOG_FILE", ""); path != "" {
		// the file always gets JSON, whatever the console format
		w = zerolog.MultiLevelWriter(w, fileWriter(path))
	}
	base = zerolog.New(w).With().Timestamp().Logger().Level(level)
	ready.Store(true)
}

// L returns the global logger, initializing it from the environment on
// first use.
func L() *zerolog.Logger {
	if !ready.Load() {
		Init()
	}
	return &base
}

func fileWriter(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    getenvInt("LOG_FILE_MAX_SIZE_MB", 100),
		MaxBackups: getenvInt("LOG_FILE_MAX_BACKUPS", 5),
		MaxAge:     getenvInt("LOG_FILE_MAX_AGE_DAYS", 28),
		Compress:   true,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	n, err := strconv.Atoi(getenv(key, ""))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error", "err":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
