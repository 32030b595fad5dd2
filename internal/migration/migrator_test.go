package migration

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/salesledger/internal/config"
	"github.com/Additional-Code/salesledger/internal/database"
	"github.com/Additional-Code/salesledger/internal/runlog/migrations"
)

func TestGooseDialect(t *testing.T) {
	for driver, want := range map[string]string{"postgres": "postgres", "pg": "postgres", "mysql": "mysql"} {
		got, err := gooseDialect(driver)
		if err != nil || got != want {
			t.Errorf("gooseDialect(%q) = %q, %v", driver, got, err)
		}
	}
	if _, err := gooseDialect("firebird"); err == nil {
		t.Error("firebird must not be migrated")
	}
}

func TestNewRequiresStateDatabase(t *testing.T) {
	_, err := New(config.Config{}, &database.Connections{}, zap.NewNop())
	if err == nil {
		t.Fatal("expected an error when the journal database is disabled")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no embedded migrations")
	}
}

func TestIsNoMigrationErr(t *testing.T) {
	if !isNoMigrationErr(goose.ErrNoNextVersion) {
		t.Error("ErrNoNextVersion not recognised")
	}
	if isNoMigrationErr(errors.New("syntax error")) || isNoMigrationErr(nil) {
		t.Error("unrelated error recognised as no-migration")
	}
}

func TestGooseLoggerWritesThroughZap(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := gooseLogger{zap.New(core).Sugar()}

	l.Printf("OK   %s (%v)\n", "00001_ledger_runs.sql", "1ms")

	entries := logs.All()
	if len(entries) != 1 || entries[0].Message != "OK   00001_ledger_runs.sql (1ms)" {
		t.Fatalf("entries = %+v", entries)
	}
}
