package database

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/Additional-Code/salesledger/internal/config"
	"github.com/Additional-Code/salesledger/pkg/errorbank"
)

// Pool hands out at most size live ERP connections at a time. Its capacity is
// a deployment knob and is unrelated to how many row-builder workers run.
type Pool struct {
	db    *bun.DB
	slots chan struct{}
}

// NewPool wraps the ERP database of conns in a bounded pool.
func NewPool(conns *Connections, cfg config.Config) *Pool {
	return NewPoolFor(conns.ERP, cfg.Database.PoolSize)
}

// NewPoolFor builds a pool of the given capacity over db.
func NewPoolFor(db *bun.DB, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{db: db, slots: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free, then checks out a dedicated connection.
// A connection that cannot be opened is reported as unavailable.
func (p *Pool) Acquire(ctx context.Context) (bun.Conn, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return bun.Conn{}, ctx.Err()
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		<-p.slots
		return bun.Conn{}, errorbank.Unavailable("acquire erp connection", errorbank.WithCause(err))
	}
	return conn, nil
}

// Release returns conn to the pool.
func (p *Pool) Release(conn bun.Conn) {
	if conn.Conn != nil {
		_ = conn.Close()
	}
	<-p.slots
}

// WithConn runs fn with a checked-out connection and releases it on every
// exit path, panics included.
func (p *Pool) WithConn(ctx context.Context, fn func(bun.Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)
	return fn(conn)
}

// InUse reports how many connections are checked out.
func (p *Pool) InUse() int { return len(p.slots) }

// Capacity reports the configured pool size.
func (p *Pool) Capacity() int { return cap(p.slots) }
