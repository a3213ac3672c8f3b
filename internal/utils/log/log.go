// Package log is the process-wide structured logger. Until Init is called it
// discards everything, which keeps tests quiet.
package log

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	LoggerConfig struct {
		EnableStacktrace bool   `toml:"enable_stacktrace,omitempty"`
		Environment      string `toml:"env"`
		Path             string `toml:"path,omitempty"`
		Quiet            bool   `toml:"-"`
	}
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(zap.NewNop())
}

// Init builds a console logger from conf and installs it. "development" logs
// at debug level, "production" at info level. Quiet leaves stderr out, for
// processes that own the terminal.
func Init(conf *LoggerConfig) error {
	level := zap.NewAtomicLevel()
	switch {
	case strings.EqualFold("development", conf.Environment):
		level.SetLevel(zap.DebugLevel)
	case strings.EqualFold("production", conf.Environment):
		level.SetLevel(zap.InfoLevel)
	default:
		return fmt.Errorf("log: environment must be development or production, got %q", conf.Environment)
	}

	var outputs []string
	if !conf.Quiet {
		outputs = append(outputs, "stderr")
	}
	if conf.Path != "" {
		outputs = append(outputs, conf.Path)
	}

	zConfig := &zap.Config{
		Level:             level,
		Encoding:          "console",
		DisableStacktrace: !conf.EnableStacktrace,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "path",
			MessageKey:     "msg",
			StacktraceKey:  "stack",
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths: outputs,
	}

	logger, err := zConfig.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	SetLogger(logger)
	return nil
}

// SetLogger replaces the installed logger. Passing nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

func L() *zap.Logger {
	return current.Load()
}

func Sync() error {
	return current.Load().Sync()
}

func Debug(msg string, fields ...zap.Field) {
	current.Load().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	current.Load().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	current.Load().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	current.Load().Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	current.Load().Fatal(msg, fields...)
}
