package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/Additional-Code/salesledger/pkg/errorbank"
)

type fakeConnector struct {
	fail   atomic.Bool
	opened atomic.Int32
}

func (c *fakeConnector) Connect(context.Context) (driver.Conn, error) {
	if c.fail.Load() {
		return nil, errors.New("connection refused")
	}
	c.opened.Add(1)
	return fakeConn{}, nil
}

func (c *fakeConnector) Driver() driver.Driver { return fakeDriver{c} }

type fakeDriver struct{ c *fakeConnector }

func (d fakeDriver) Open(string) (driver.Conn, error) { return d.c.Connect(context.Background()) }

type fakeConn struct{}

func (fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (fakeConn) Close() error                        { return nil }
func (fakeConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }

func newTestPool(t *testing.T, size int) (*Pool, *fakeConnector) {
	t.Helper()
	connector := &fakeConnector{}
	db := bun.NewDB(sql.OpenDB(connector), sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return NewPoolFor(db, size), connector
}

func TestPoolAcquireBlocksAtCapacity(t *testing.T) {
	pool, _ := newTestPool(t, 2)
	ctx := context.Background()

	first, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	if _, err := pool.Acquire(ctx); err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	if pool.InUse() != 2 {
		t.Fatalf("InUse = %d, want 2", pool.InUse())
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := pool.Acquire(timeoutCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("third acquire err = %v, want deadline exceeded", err)
	}

	acquired := make(chan error, 1)
	go func() {
		conn, err := pool.Acquire(ctx)
		if err == nil {
			pool.Release(conn)
		}
		acquired <- err
	}()

	pool.Release(first)
	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("blocked acquire: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("acquire did not unblock after release")
	}
}

func TestPoolWithConnReleasesOnPanic(t *testing.T) {
	pool, _ := newTestPool(t, 1)

	func() {
		defer func() { _ = recover() }()
		_ = pool.WithConn(context.Background(), func(bun.Conn) error {
			panic("boom")
		})
	}()

	if pool.InUse() != 0 {
		t.Fatalf("InUse = %d after panic, want 0", pool.InUse())
	}

	wantErr := errors.New("query failed")
	err := pool.WithConn(context.Background(), func(bun.Conn) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("WithConn err = %v, want %v", err, wantErr)
	}
	if pool.InUse() != 0 {
		t.Fatalf("InUse = %d after error, want 0", pool.InUse())
	}
}

func TestPoolAcquireConnectFailure(t *testing.T) {
	pool, connector := newTestPool(t, 1)
	connector.fail.Store(true)

	_, err := pool.Acquire(context.Background())
	if !errorbank.Is(err, errorbank.KindUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}
	if pool.InUse() != 0 {
		t.Fatalf("slot leaked after failed connect")
	}
	if pool.Capacity() != 1 {
		t.Fatalf("Capacity = %d", pool.Capacity())
	}
}
