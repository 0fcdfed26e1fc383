package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/apiscribe/apiscribe/internal/config"
)

// The process-wide logger. Commands and collaborators reach it through
// GetLogger; components derive their own scope with logger.Named.
var (
	globalLogger atomic.Pointer[zap.Logger]
	initOnce     sync.Once
)

const colorReset = "\x1b[0m"

// ansiCodes maps the color names accepted in logger.colors.* config keys.
var ansiCodes = map[string]string{
	"black":   "\x1b[30m",
	"red":     "\x1b[31m",
	"green":   "\x1b[32m",
	"yellow":  "\x1b[33m",
	"blue":    "\x1b[34m",
	"magenta": "\x1b[35m",
	"cyan":    "\x1b[36m",
	"white":   "\x1b[37m",
}

// Initialize builds the global logger from config and routes console output
// to the given writer. First call wins; later calls are no-ops so a command
// cannot reconfigure logging out from under a running import.
func Initialize(cfg config.LoggerConfig, console zapcore.WriteSyncer) {
	initOnce.Do(func() {
		level := parseLevel(cfg.Level)
		cores := []zapcore.Core{
			zapcore.NewCore(consoleEncoder(cfg), console, level),
		}
		if cfg.LogFile != "" {
			cores = append(cores, fileCore(cfg, level))
		}

		opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
		if cfg.AddSource {
			opts = append(opts, zap.AddCaller())
		}

		logger := zap.New(zapcore.NewTee(cores...), opts...).Named(cfg.ServiceName)
		globalLogger.Store(logger)
		zap.ReplaceGlobals(logger)
		zap.RedirectStdLog(logger)
	})
}

// InitializeLogger wires Initialize to a locked stdout, which is what every
// CLI entry point wants.
func InitializeLogger(cfg config.LoggerConfig) {
	Initialize(cfg, zapcore.Lock(os.Stdout))
}

// ResetForTest clears the singleton so a test can initialize its own logger.
// Never call it outside tests.
func ResetForTest() {
	globalLogger.Store(nil)
	initOnce = sync.Once{}
}

// GetLogger returns the global logger. Before Initialize it hands out a
// development logger so early failures still land somewhere visible.
func GetLogger() *zap.Logger {
	if logger := globalLogger.Load(); logger != nil {
		return logger
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	l.Warn("Logger requested before initialization; using fallback.")
	return l.Named("fallback")
}

// Sync flushes buffered entries. Call it on the way out of main.
func Sync() {
	logger := globalLogger.Load()
	if logger == nil {
		return
	}
	if err := logger.Sync(); err != nil && !ignorableSyncError(err) {
		fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
	}
}

// ignorableSyncError filters the sync failures stdout and stderr produce on
// platforms where they are not syncable, so shutdown stays quiet.
func ignorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stdout") ||
		strings.Contains(msg, "invalid argument") ||
		strings.Contains(msg, "operation not supported")
}

func parseLevel(s string) zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(s)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}
	return level
}

// consoleEncoder renders the stdout stream. "console" is a single-line
// terminal format with a color-coded level and dotted component name;
// anything else falls back to JSON for machine consumption.
func consoleEncoder(cfg config.LoggerConfig) zapcore.Encoder {
	if cfg.Format != "console" {
		return zapcore.NewJSONEncoder(baseEncoderConfig())
	}
	ec := baseEncoderConfig()
	ec.EncodeLevel = levelEncoder(cfg.Colors)
	ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(name + ".")
	}
	return zapcore.NewConsoleEncoder(ec)
}

// fileCore writes JSON through lumberjack so log files rotate instead of
// growing without bound.
func fileCore(cfg config.LoggerConfig, level zap.AtomicLevel) zapcore.Core {
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
	return zapcore.NewCore(zapcore.NewJSONEncoder(baseEncoderConfig()), writer, level)
}

func baseEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	return ec
}

// levelEncoder wraps the level text in the configured ANSI color. Levels
// without a configured color render plain.
func levelEncoder(colors config.ColorConfig) zapcore.LevelEncoder {
	byLevel := map[zapcore.Level]string{
		zapcore.DebugLevel:  ansiCodes[colors.Debug],
		zapcore.InfoLevel:   ansiCodes[colors.Info],
		zapcore.WarnLevel:   ansiCodes[colors.Warn],
		zapcore.ErrorLevel:  ansiCodes[colors.Error],
		zapcore.DPanicLevel: ansiCodes[colors.DPanic],
		zapcore.PanicLevel:  ansiCodes[colors.Panic],
		zapcore.FatalLevel:  ansiCodes[colors.Fatal],
	}
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		text := strings.ToUpper(level.String())
		if color := byLevel[level]; color != "" {
			text = color + text + colorReset
		}
		enc.AppendString(text)
	}
}
