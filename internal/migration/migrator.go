// Package migration owns the run journal schema. The ERP database is read
// only and never migrated.
package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/salesledger/internal/config"
	"github.com/Additional-Code/salesledger/internal/database"
	"github.com/Additional-Code/salesledger/internal/runlog/migrations"
)

// migrationsDir is the root of the embedded migration filesystem.
const migrationsDir = "."

// Module provides the Migrator.
var Module = fx.Provide(New)

// Migrator applies the embedded run journal migrations with goose.
type Migrator struct {
	db     *bun.DB
	logger *zap.Logger
}

// New fails unless the state database is enabled.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	if !cfg.State.Enabled || conns.State == nil {
		return nil, errors.New("run journal database is disabled; set STATE_ENABLED and STATE_DSN")
	}

	dialect, err := gooseDialect(cfg.State.Driver)
	if err != nil {
		return nil, err
	}
	if err := goose.SetDialect(dialect); err != nil {
		return nil, err
	}
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{logger.Sugar().With("component", "goose")})

	return &Migrator{db: conns.State, logger: logger}, nil
}

// Up applies all pending migrations and returns the resulting version.
func (m *Migrator) Up(ctx context.Context) (int64, error) {
	if err := goose.UpContext(ctx, m.db.DB, migrationsDir); err != nil && !isNoMigrationErr(err) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	version, err := m.Version(ctx)
	if err != nil {
		return 0, err
	}
	m.logger.Info("run journal schema up to date", zap.Int64("version", version))
	return version, nil
}

// Down rolls back steps migrations, at least one; all rolls back every
// applied migration. It returns the resulting version.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) (int64, error) {
	if all {
		if err := goose.DownToContext(ctx, m.db.DB, migrationsDir, 0); err != nil && !isNoMigrationErr(err) {
			return 0, fmt.Errorf("roll back migrations: %w", err)
		}
	} else {
		for range max(steps, 1) {
			if err := goose.DownContext(ctx, m.db.DB, migrationsDir); err != nil {
				if isNoMigrationErr(err) {
					break
				}
				return 0, fmt.Errorf("roll back migration: %w", err)
			}
		}
	}

	version, err := m.Version(ctx)
	if err != nil {
		return 0, err
	}
	m.logger.Info("run journal schema rolled back", zap.Int64("version", version), zap.Bool("all", all))
	return version, nil
}

// Version reports the applied schema version, 0 for an empty database.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	version, err := goose.GetDBVersionContext(ctx, m.db.DB)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case "postgres", "pg":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}
	return strings.Contains(err.Error(), "no migrations")
}

// gooseLogger routes goose output through zap. goose calls Fatalf on
// unrecoverable errors, so it must still terminate.
type gooseLogger struct {
	*zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.Infof(strings.TrimSpace(format), v...)
}
