package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotating file sink bounds, matching the persisted-log contract:
// at most maxLogFiles files of maxLogFileSizeMB each in the working
// directory.
const (
	maxLogFileSizeMB = 10
	maxLogFiles      = 10
)

// consoleLevel maps the numeric verbosity scale [0,5] onto zap levels.
// 5 disables console output entirely; the file sink stays at info.
func consoleLevel(level int) zapcore.LevelEnabler {
	switch level {
	case 0, 1:
		return zapcore.DebugLevel
	case 2:
		return zapcore.InfoLevel
	case 3:
		return zapcore.WarnLevel
	case 4:
		return zapcore.ErrorLevel
	default:
		return zapcore.LevelEnabler(zap.LevelEnablerFunc(func(zapcore.Level) bool { return false }))
	}
}

// New builds the process logger: a console core at the requested
// verbosity teed with a rotating file core pinned at info level.
// The file sink is opened once up front so an unwritable log location
// fails startup instead of the first write.
func New(level int, dir string) (*zap.Logger, error) {
	logPath := filepath.Join(dir, "peercam_logs.log")

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize log sink %s: %w", logPath, err)
	}
	f.Close()

	fileSink := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxLogFileSizeMB,
		MaxBackups: maxLogFiles - 1,
	}

	consoleEncoder := zapcore.NewConsoleEncoder(consoleEncoderConfig())
	fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), consoleLevel(level)),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(fileSink), zapcore.InfoLevel),
	)

	return zap.New(core), nil
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}
