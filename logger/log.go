package logger

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	current atomic.Pointer[zap.Logger]
	level   = zap.NewAtomicLevelAt(zapcore.DebugLevel)
)

func init() {
	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeLevel:   zapcore.CapitalColorLevelEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(os.Stdout),
		level,
	)

	current.Store(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
}

// SetLevel switches the minimum level of the default logger.
// Unknown names fall back to debug.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "info":
		level.SetLevel(zapcore.InfoLevel)
	case "warn", "warning":
		level.SetLevel(zapcore.WarnLevel)
	case "error":
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.DebugLevel)
	}
}

// Replace swaps the package logger and returns a func restoring the previous one.
// Tests use it with zaptest/observer.
// It is safe to call while other goroutines log.
func Replace(l *zap.Logger) (restore func()) {
	prev := current.Swap(l)
	return func() { current.Store(prev) }
}

// L returns the current package logger.
func L() *zap.Logger { return current.Load() }

func Sync() { _ = L().Sync() }

func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }
func Infof(format string, args ...interface{}) {
	L().Info(fmt.Sprintf(format, args...))
}

func Warn(msg string, fields ...zap.Field) { L().Warn(msg, fields...) }
func Warnf(format string, args ...interface{}) {
	L().Warn(fmt.Sprintf(format, args...))
}

func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }
func Errorf(format string, args ...interface{}) {
	L().Error(fmt.Sprintf(format, args...))
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Debugf(format string, args ...interface{}) {
	L().Debug(fmt.Sprintf(format, args...))
}
