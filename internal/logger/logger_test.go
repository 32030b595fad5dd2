package logger

import (
	"testing"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/salesledger/internal/config"
)

func TestBuildLevels(t *testing.T) {
	logger, err := Build(config.Observability{ServiceName: "salesledger", LogLevel: "warn", LogEncoding: "json"})
	if err != nil {
		t.Fatal(err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) || !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatal("warn level not applied")
	}

	logger, err = Build(config.Observability{LogLevel: "chatty", LogEncoding: "console"})
	if err != nil {
		t.Fatal(err)
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) || logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("unknown level did not fall back to info")
	}
}

func TestFxLoggerUsesDebugLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	fxLogger := NewFxLogger(zap.New(core))

	fxLogger.LogEvent(&fxevent.Started{})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel || entries[0].LoggerName != "fx" {
		t.Fatalf("entry = %+v", entries[0])
	}
}
