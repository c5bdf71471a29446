package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level string
	// File enables a rotated JSON log next to the console output.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Console defaults to stderr.
	Console io.Writer
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// New builds a console logger, teed into a lumberjack-rotated JSON file when
// opts.File is set.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if raw := strings.TrimSpace(opts.Level); raw != "" {
		parsed, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		level = parsed
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(console), level),
	}
	if opts.File != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig()),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
				MaxAge:     opts.MaxAgeDays,
				Compress:   true,
			}),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
