// ABOUTME: Zap logger construction for the kdmapi commands
// ABOUTME: Console output to stderr, a log file, or both
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Level is one of debug, info, warn, error (default: info)
	Level string

	// File, when set, receives the log in addition to (or instead of) stderr
	File string

	// Quiet suppresses stderr output, e.g. while a TUI owns the terminal
	Quiet bool
}

// ParseLevel converts a level name to a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// New builds a logger. The returned cleanup flushes the logger and closes
// the log file.
func New(opts Options) (*zap.Logger, func(), error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	encoder := zapcore.NewConsoleEncoder(encCfg)

	var (
		syncers []zapcore.WriteSyncer
		file    *os.File
	)
	if !opts.Quiet {
		syncers = append(syncers, zapcore.Lock(os.Stderr))
	}
	if opts.File != "" {
		file, err = os.OpenFile(opts.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening log file: %w", err)
		}
		syncers = append(syncers, zapcore.AddSync(file))
	}
	if len(syncers) == 0 {
		return zap.NewNop(), func() {}, nil
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), level)
	logger := zap.New(core)

	cleanup := func() {
		_ = logger.Sync()
		if file != nil {
			_ = file.Close()
		}
	}
	return logger, cleanup, nil
}
