package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	baseMu sync.RWMutex
	base   = mustBuild("INFO")
)

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name  string
	sugar *zap.SugaredLogger
}

// -----------------------------------------------------------------------------

// Setup replaces the process-wide zap core. Levels: DEBUG, INFO, WARNING, ERROR.
// DEBUG switches to the console encoder.
func Setup(level string) error {
	l, err := build(level)
	if err != nil {
		return err
	}
	baseMu.Lock()
	base = l
	baseMu.Unlock()
	return nil
}

// -----------------------------------------------------------------------------

// Sync flushes buffered entries.
func Sync() {
	baseMu.RLock()
	defer baseMu.RUnlock()
	_ = base.Sync()
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance named after its component
func NewLogger(name string) *Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return &Logger{
		name:  name,
		sugar: base.Named(name).Sugar(),
	}
}

// -----------------------------------------------------------------------------

// With returns a child logger carrying extra structured fields.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{name: l.name, sugar: l.sugar.With(keysAndValues...)}
}

// -----------------------------------------------------------------------------

// Zap exposes the underlying logger for libraries that want one.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
	_ = l.sugar.Sync()
	os.Exit(1)
}

// -----------------------------------------------------------------------------

func build(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = zapcore.DebugLevel
	case "WARNING", "WARN":
		lvl = zapcore.WarnLevel
	case "ERROR":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	return cfg.Build()
}

// -----------------------------------------------------------------------------

func mustBuild(level string) *zap.Logger {
	l, err := build(level)
	if err != nil {
		return zap.NewNop()
	}
	return l
}
