package logger

import (
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var base atomic.Pointer[zap.Logger]

func init() {
	l, err := New("local", "")
	if err != nil {
		l = zap.NewNop()
	}
	base.Store(l)
}

// New builds a zap logger for the given environment.
// prod writes JSON, local/dev write coloured console output.
// level (if non-empty) overrides the default level: debug, info, warn, error.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
	case "", "local", "dev":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// Setup replaces the process logger.
func Setup(env, level string) error {
	l, err := New(env, level)
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// SetLogger installs l as the process logger. A nil logger silences output.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	base.Store(l)
}

// L returns the process logger for callers that want structured fields.
func L() *zap.Logger {
	return base.Load()
}

// Sync flushes buffered log entries.
func Sync() {
	_ = base.Load().Sync()
}

// Info logs an informational message under a component tag.
func Info(tag, msg string, fields ...zap.Field) {
	base.Load().Info(msg, append(fields, zap.String("tag", tag))...)
}

// Success logs a completed step. It is an info entry marked ok=true.
func Success(tag, msg string, fields ...zap.Field) {
	base.Load().Info(msg, append(fields, zap.String("tag", tag), zap.Bool("ok", true))...)
}

// Warn logs a recoverable problem.
func Warn(tag, msg string, fields ...zap.Field) {
	base.Load().Warn(msg, append(fields, zap.String("tag", tag))...)
}

// Error logs a failure.
func Error(tag, msg string, fields ...zap.Field) {
	base.Load().Error(msg, append(fields, zap.String("tag", tag))...)
}

// Banner prints the startup banner to stdout.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Fprintf(os.Stdout, "\n  EVE Jita Price  %s\n  market price lookup for EVE Online\n\n", version)
}

// Section prints a section header to stdout.
func Section(title string) {
	fmt.Fprintf(os.Stdout, "\n── %s ──\n", title)
}

// Stats prints one counter line to stdout.
func Stats(key string, value int) {
	fmt.Fprintf(os.Stdout, "  %-16s %d\n", key, value)
}

// Server logs the listen address.
func Server(addr string) {
	Success("Server", "Listening", zap.String("addr", "http://"+addr))
}
