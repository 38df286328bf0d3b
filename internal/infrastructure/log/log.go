// Package log implements the logging interface on top of zap with optional
// file rotation via lumberjack.
package log

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	logiface "github.com/zkrag/zkrag/pkg/interfaces/infrastructure/log"
)

// Config controls logger construction.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string

	// Format is "console" or "json". Defaults to "console".
	Format string

	// File enables file output when non-empty.
	File string

	// MaxSizeMB, MaxBackups and MaxAgeDays configure rotation of File.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Console disables stderr output when set to false explicitly via
	// DisableConsole.
	DisableConsole bool
}

// DefaultConfig returns a console logger configuration at info level.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "console",
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
	}
}

type zapLogger struct {
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

var (
	globalMu     sync.RWMutex
	globalLogger logiface.Logger = newNop()
)

// New builds a Logger from cfg.
func New(cfg *Config) (logiface.Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level := parseLevel(cfg.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "json") {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := make([]zapcore.Core, 0, 2)
	if !cfg.DisableConsole {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level))
	}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}
	if len(cores) == 0 {
		return newNop(), nil
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &zapLogger{logger: logger, sugar: logger.Sugar()}, nil
}

// SetGlobal replaces the process-wide default logger.
func SetGlobal(l logiface.Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if l != nil {
		globalLogger = l
	}
}

// Global returns the process-wide default logger.
func Global() logiface.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

func newNop() logiface.Logger {
	nop := zap.NewNop()
	return &zapLogger{logger: nop, sugar: nop.Sugar()}
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *zapLogger) Debug(msg string)                          { l.sugar.Debug(msg) }
func (l *zapLogger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *zapLogger) Info(msg string)                           { l.sugar.Info(msg) }
func (l *zapLogger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *zapLogger) Warn(msg string)                           { l.sugar.Warn(msg) }
func (l *zapLogger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *zapLogger) Error(msg string)                          { l.sugar.Error(msg) }
func (l *zapLogger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *zapLogger) Fatal(msg string)                          { l.sugar.Fatal(msg) }
func (l *zapLogger) Fatalf(format string, args ...interface{}) { l.sugar.Fatalf(format, args...) }

func (l *zapLogger) With(args ...interface{}) logiface.Logger {
	sugar := l.sugar.With(args...)
	return &zapLogger{logger: sugar.Desugar(), sugar: sugar}
}

func (l *zapLogger) Sync() error { return l.logger.Sync() }

func (l *zapLogger) GetZapLogger() *zap.Logger { return l.logger }
