// Package ctxlog carries a structured logger in a context.Context.
//
// Loggers are slog loggers backed by a charmbracelet/log handler. The level
// defaults to the value of the <EXECUTABLE>_LOG_LEVEL environment variable,
// e.g. AUTOSTART_TUI_LOG_LEVEL for the autostart-tui binary, and falls back
// to WARN.
package ctxlog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

type loggerKey struct{}

// LevelVar is shared by every logger created by this package.
var LevelVar = &slog.LevelVar{}

// DefaultLogger writes to stderr.
var DefaultLogger = NewLogger(os.Stderr)

// DiscardLogger drops everything.
var DiscardLogger = slog.New(slog.DiscardHandler)

// lookupEnv is replaced in tests.
var lookupEnv = os.Getenv

func init() {
	LevelVar.Set(levelFromEnv())
}

// NewLogger returns a logger writing human-readable lines to w.
func NewLogger(w io.Writer) *slog.Logger {
	h := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Prefix:          "autostart",
		Level:           charmlog.DebugLevel,
	})
	return slog.New(&levelHandler{Handler: h})
}

// levelHandler gates records on LevelVar so the level can change after
// the logger is built.
type levelHandler struct {
	slog.Handler
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= LevelVar.Level()
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithGroup(name)}
}

// New returns a context carrying logger. A nil logger means DefaultLogger.
func New(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		logger = DefaultLogger
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger in ctx, or DefaultLogger.
func Logger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	if !ok || logger == nil {
		return DefaultLogger
	}
	return logger
}

// Debug logs at debug level.
func Debug(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Debug(msg, args...)
}

// Info logs at info level.
func Info(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Info(msg, args...)
}

// Warn logs at warn level.
func Warn(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Warn(msg, args...)
}

// Error logs at error level.
func Error(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Error(msg, args...)
}

// ParseLevel maps DEBUG, INFO, WARN and ERROR (any case) to a level.
// Anything else yields WARN and false.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	default:
		return slog.LevelWarn, false
	}
}

// EnvName returns the name of the level variable for the running binary.
func EnvName() string {
	exe, _ := os.Executable()
	exe = filepath.Base(exe)
	exe = strings.TrimSuffix(exe, ".exe")
	exe = strings.ReplaceAll(exe, "-", "_")
	return strings.ToUpper(exe) + "_LOG_LEVEL"
}

func levelFromEnv() slog.Level {
	level, _ := ParseLevel(lookupEnv(EnvName()))
	return level
}
