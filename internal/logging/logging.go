// Package logging builds the zap loggers used by the daemons and the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for file output.
const (
	maxSizeMB  = 100
	maxBackups = 7
	maxAgeDays = 30
)

// New returns a logger at level writing console-encoded lines to console and,
// when file is non-empty, JSON lines to a rotated file. The returned func
// flushes and closes the file.
func New(level, file string, console io.Writer) (*zap.Logger, func() error, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		var err error
		lvl, err = zapcore.ParseLevel(level)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: %w", err)
		}
	}
	atom := zap.NewAtomicLevelAt(lvl)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if console != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(console), atom))
	}

	var rotator *lumberjack.Logger
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
			return nil, nil, fmt.Errorf("logging: %w", err)
		}
		rotator = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), atom))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	closeFn := func() error {
		_ = logger.Sync()
		if rotator != nil {
			return rotator.Close()
		}
		return nil
	}
	return logger, closeFn, nil
}

// Stderr is New writing to os.Stderr.
func Stderr(level, file string) (*zap.Logger, func() error, error) {
	return New(level, file, os.Stderr)
}
