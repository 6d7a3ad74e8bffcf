package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field is a structured logging field
type Field = zap.Field

// Config contains logger settings
type Config struct {
	Level  string // "debug", "info", "warn" or "error"
	Format string // "console" or "json"

	// Optional rotating file sink. Console output is always kept.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Logger wraps a zap logger
type Logger struct {
	zap  *zap.Logger
	name string
}

// New creates a logger from the given configuration
func New(cfg Config) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "", "console":
		consoleCfg := encCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(consoleCfg)
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format: %s", cfg.Format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
	}

	if cfg.FilePath != "" {
		// File output is always JSON so it can be shipped as-is
		w := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), level))
	}

	z := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{zap: z}, nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

// Named returns a child logger with the given name appended
func (l *Logger) Named(name string) *Logger {
	full := name
	if l.name != "" {
		full = l.name + "." + name
	}
	return &Logger{zap: l.zap.Named(name), name: full}
}

// With returns a child logger carrying the given fields
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{zap: l.zap.With(fields...), name: l.name}
}

// Name returns the full dotted name of the logger
func (l *Logger) Name() string {
	return l.name
}

// Debug logs a message at debug level
func (l *Logger) Debug(msg string, fields ...Field) {
	l.zap.Debug(msg, fields...)
}

// Info logs a message at info level
func (l *Logger) Info(msg string, fields ...Field) {
	l.zap.Info(msg, fields...)
}

// Warn logs a message at warn level
func (l *Logger) Warn(msg string, fields ...Field) {
	l.zap.Warn(msg, fields...)
}

// Error logs a message at error level
func (l *Logger) Error(msg string, fields ...Field) {
	l.zap.Error(msg, fields...)
}

// Sync flushes buffered log entries
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// String creates a string field
func String(key, val string) Field { return zap.String(key, val) }

// Int creates an int field
func Int(key string, val int) Field { return zap.Int(key, val) }

// Int64 creates an int64 field
func Int64(key string, val int64) Field { return zap.Int64(key, val) }

// Float64 creates a float64 field
func Float64(key string, val float64) Field { return zap.Float64(key, val) }

// Bool creates a bool field
func Bool(key string, val bool) Field { return zap.Bool(key, val) }

// Duration creates a duration field
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }

// Time creates a time field
func Time(key string, val time.Time) Field { return zap.Time(key, val) }

// Any creates a field for an arbitrary value
func Any(key string, val any) Field { return zap.Any(key, val) }

// Error creates an error field under the "error" key
func Error(err error) Field { return zap.Error(err) }
