package logger

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewCreatesLogFile(t *testing.T) {
	dir := t.TempDir()

	log, err := New(2, dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer log.Sync()

	log.Info("startup")
	log.Sync()

	if _, err := os.Stat(filepath.Join(dir, "peercam_logs.log")); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestNewFailsOnUnwritableSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing", "nested")

	if _, err := New(2, dir); err == nil {
		t.Error("New() should fail when the log directory does not exist")
	}
}

func TestConsoleLevel(t *testing.T) {
	tests := []struct {
		level   int
		enabled map[zapcore.Level]bool
	}{
		{0, map[zapcore.Level]bool{zapcore.DebugLevel: true, zapcore.ErrorLevel: true}},
		{2, map[zapcore.Level]bool{zapcore.DebugLevel: false, zapcore.InfoLevel: true}},
		{4, map[zapcore.Level]bool{zapcore.WarnLevel: false, zapcore.ErrorLevel: true}},
		{5, map[zapcore.Level]bool{zapcore.ErrorLevel: false, zapcore.FatalLevel: false}},
	}

	for _, tt := range tests {
		enabler := consoleLevel(tt.level)
		for lvl, want := range tt.enabled {
			if got := enabler.Enabled(lvl); got != want {
				t.Errorf("consoleLevel(%d).Enabled(%v) = %v, want %v", tt.level, lvl, got, want)
			}
		}
	}
}
