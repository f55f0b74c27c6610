// Package logging builds the process logger: a console core plus an optional
// rotating JSON file.
package logging

import (
	"errors"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"tabtip/internal/config"
)

const serviceName = "tabtip"

// New builds a logger writing to console and, when cfg.File is set, to a
// rotating file. closeFn flushes the logger and releases the file.
func New(cfg config.LogConfig, console zapcore.WriteSyncer) (logger *zap.Logger, closeFn func() error) {
	return newLogger(cfg, console, false)
}

func newLogger(cfg config.LogConfig, console zapcore.WriteSyncer, color bool) (logger *zap.Logger, closeFn func() error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder(color), console, level),
	}

	var file *lumberjack.Logger
	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder(), zapcore.AddSync(file), level))
	}

	logger = zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel)).Named(serviceName)
	closeFn = func() error {
		err := syncLogger(logger)
		if file != nil {
			err = errors.Join(err, file.Close())
		}
		return err
	}
	return logger, closeFn
}

// Init builds the process logger on stderr and installs it as the zap and
// standard library global logger. Levels are colored when stderr is a
// terminal. undo restores the previous globals.
func Init(cfg config.LogConfig) (logger *zap.Logger, undo func()) {
	color := term.IsTerminal(int(os.Stderr.Fd()))
	logger, closeLogger := newLogger(cfg, zapcore.Lock(os.Stderr), color)
	restoreGlobals := zap.ReplaceGlobals(logger)
	restoreStdLog := zap.RedirectStdLog(logger)
	return logger, func() {
		restoreStdLog()
		restoreGlobals()
		_ = closeLogger()
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	return cfg
}

func consoleEncoder(color bool) zapcore.Encoder {
	cfg := encoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(name + ".")
	}
	return zapcore.NewConsoleEncoder(cfg)
}

func jsonEncoder() zapcore.Encoder {
	cfg := encoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(cfg)
}

// syncLogger flushes logger, ignoring the errors consoles return on Sync.
func syncLogger(logger *zap.Logger) error {
	err := logger.Sync()
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "sync /dev/stderr") ||
		strings.Contains(msg, "invalid argument") ||
		strings.Contains(msg, "inappropriate ioctl") ||
		strings.Contains(msg, "The handle is invalid") {
		return nil
	}
	return err
}
