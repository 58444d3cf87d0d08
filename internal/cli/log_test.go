package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{
			name:    "info at info level",
			level:   log.InfoLevel,
			logFunc: func(l *log.Logger) { l.Info("test") },
			wantLog: true,
		},
		{
			name:    "debug at info level",
			level:   log.InfoLevel,
			logFunc: func(l *log.Logger) { l.Debug("test") },
			wantLog: false,
		},
		{
			name:    "debug at debug level",
			level:   log.DebugLevel,
			logFunc: func(l *log.Logger) { l.Debug("test") },
			wantLog: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.level)
			tt.logFunc(logger)

			gotLog := buf.Len() > 0
			if gotLog != tt.wantLog {
				t.Errorf("got log output = %v, want %v", gotLog, tt.wantLog)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, log.InfoLevel)

	prog := newProgress(logger)

	// Small delay to ensure measurable duration
	time.Sleep(10 * time.Millisecond)

	prog.done("legalized")

	if !bytes.Contains(buf.Bytes(), []byte("legalized")) {
		t.Error("progress.done() output should contain message")
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, log.InfoLevel)

	ctx := withLogger(context.Background(), logger)

	retrieved := loggerFromContext(ctx)
	if retrieved != logger {
		t.Error("loggerFromContext should return the attached logger")
	}

	retrieved.Info("test")
	if buf.Len() == 0 {
		t.Error("attached logger should write to buffer")
	}
}

func TestLoggerFromContextDefault(t *testing.T) {
	logger := loggerFromContext(context.Background())
	if logger == nil {
		t.Error("loggerFromContext should return default logger when none set")
	}
}

func TestWithConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.Serve.Addr = ":7070"

	ctx := withConfig(context.Background(), cfg)

	retrieved := configFromContext(ctx)
	if retrieved != cfg {
		t.Error("configFromContext should return the attached config")
	}
	if retrieved.Serve.Addr != ":7070" {
		t.Errorf("Addr = %q, want %q", retrieved.Serve.Addr, ":7070")
	}
}

func TestConfigFromContextDefault(t *testing.T) {
	cfg := configFromContext(context.Background())
	if cfg == nil {
		t.Fatal("configFromContext should return defaults when none set")
	}
	if cfg.Cache.Backend != backendFile {
		t.Errorf("Backend = %q, want %q", cfg.Cache.Backend, backendFile)
	}
}
