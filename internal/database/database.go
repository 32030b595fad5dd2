package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/nakagami/firebirdsql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/salesledger/internal/config"
)

// Connections bundles the ERP reader and the optional run-journal database.
type Connections struct {
	ERP   *bun.DB
	State *bun.DB
}

// Module registers the database connections and the ERP pool with Fx.
var Module = fx.Options(
	fx.Provide(New),
	fx.Provide(NewPool),
)

// New opens the ERP database and, when enabled, the journal database.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	erp, err := Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open erp: %w", err)
	}
	// the pool semaphore bounds checkouts; keep database/sql from holding more
	erp.DB.SetMaxOpenConns(cfg.Database.PoolSize)
	erp.DB.SetMaxIdleConns(cfg.Database.PoolSize)
	if cfg.Database.MaxConnLifetime > 0 {
		erp.DB.SetConnMaxLifetime(cfg.Database.MaxConnLifetime)
	}

	conns := &Connections{ERP: erp}

	if cfg.State.Enabled {
		state, err := Open(cfg.State.Driver, cfg.State.DSN)
		if err != nil {
			_ = erp.Close()
			return nil, fmt.Errorf("open state: %w", err)
		}
		conns.State = state
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := pingContext(ctx, conns.ERP, cfg.Database.PingTimeout); err != nil {
				return fmt.Errorf("ping erp: %w", err)
			}
			if conns.State != nil {
				if err := pingContext(ctx, conns.State, cfg.Database.PingTimeout); err != nil {
					return fmt.Errorf("ping state: %w", err)
				}
			}
			logger.Info("database connected",
				zap.String("driver", cfg.Database.Driver),
				zap.Int("pool_size", cfg.Database.PoolSize),
				zap.Bool("journal", conns.State != nil),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			var closeErr error
			if err := conns.ERP.Close(); err != nil {
				closeErr = fmt.Errorf("close erp: %w", err)
			}
			if conns.State != nil {
				if err := conns.State.Close(); err != nil {
					closeErr = errors.Join(closeErr, fmt.Errorf("close state: %w", err))
				}
			}
			return closeErr
		},
	})

	return conns, nil
}

// Open builds a bun.DB for a driver name. Firebird has no bun dialect; the
// sqlite one emits ANSI identifier quoting, which Firebird accepts.
func Open(driver, dsn string) (*bun.DB, error) {
	dial, err := selectDialect(driver)
	if err != nil {
		return nil, err
	}
	sqldb, err := openSQLDB(driver, dsn)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, dial), nil
}

func selectDialect(driver string) (schema.Dialect, error) {
	switch driver {
	case "postgres":
		return pgdialect.New(), nil
	case "mysql":
		return mysqldialect.New(), nil
	case "firebird":
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func openSQLDB(driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}

	switch driver {
	case "postgres":
		connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
		return sql.OpenDB(connector), nil
	case "mysql":
		return sql.Open("mysql", dsn)
	case "firebird":
		return sql.Open("firebirdsql", dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

func pingContext(ctx context.Context, db *bun.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.DB.PingContext(pingCtx)
}
