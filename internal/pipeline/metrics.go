package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Additional-Code/salesledger/internal/runlog"
)

type metrics struct {
	orders        metric.Int64Counter
	rows          metric.Int64Counter
	failedBlocks  metric.Int64Counter
	failedOrders  metric.Int64Counter
	skippedItems  metric.Int64Counter
	chunkDuration metric.Float64Histogram
}

func newMetrics() (*metrics, error) {
	meter := otel.Meter("github.com/Additional-Code/salesledger/pipeline")

	var (
		m   metrics
		err error
	)
	if m.orders, err = meter.Int64Counter("ledger.orders", metric.WithDescription("Sales orders processed.")); err != nil {
		return nil, err
	}
	if m.rows, err = meter.Int64Counter("ledger.rows", metric.WithDescription("Ledger rows written.")); err != nil {
		return nil, err
	}
	if m.failedBlocks, err = meter.Int64Counter("ledger.blocks.failed", metric.WithDescription("Id blocks whose query failed and was skipped.")); err != nil {
		return nil, err
	}
	if m.failedOrders, err = meter.Int64Counter("ledger.orders.failed", metric.WithDescription("Orders dropped by a row-building failure.")); err != nil {
		return nil, err
	}
	if m.skippedItems, err = meter.Int64Counter("ledger.items.skipped", metric.WithDescription("Items skipped for a non-numeric quantity.")); err != nil {
		return nil, err
	}
	if m.chunkDuration, err = meter.Float64Histogram("ledger.chunk.duration", metric.WithUnit("s"), metric.WithDescription("Time to load, build and write one chunk.")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *metrics) chunkDone(ctx context.Context, c *runlog.Chunk, built buildResult, elapsed time.Duration) {
	m.orders.Add(ctx, int64(c.Orders))
	m.rows.Add(ctx, int64(c.Rows))
	m.failedOrders.Add(ctx, int64(built.failedOrders))
	m.skippedItems.Add(ctx, int64(built.skippedItems))
	m.chunkDuration.Record(ctx, elapsed.Seconds())
}

func (m *metrics) blocksFailed(ctx context.Context, stage string, n int) {
	if n == 0 {
		return
	}
	m.failedBlocks.Add(ctx, int64(n), metric.WithAttributes(attribute.String("stage", stage)))
}
