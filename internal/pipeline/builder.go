package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Additional-Code/salesledger/internal/ledger"
)

type orderResult struct {
	index   int
	rows    []ledger.Row
	skipped int
	failed  bool
}

type buildResult struct {
	rows         []ledger.Row
	failedOrders int
	skippedItems int
}

// build fans the chunk's orders out to a fixed set of workers. Workers only
// read data. Rows come back in the order the orders query returned them.
// After cancellation no new order is started; the caller discards the
// partial result.
func (s *Service) build(ctx context.Context, logger *zap.Logger, data *chunkData) buildResult {
	workers := max(s.cfg.Workers, 1)
	jobs := make(chan int)
	results := make(chan orderResult, workers)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results <- s.buildOrder(logger, data, i)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range data.orders {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	perOrder := make([][]ledger.Row, len(data.orders))
	var out buildResult
	for res := range results {
		perOrder[res.index] = res.rows
		out.skippedItems += res.skipped
		if res.failed {
			out.failedOrders++
		}
	}
	for _, rows := range perOrder {
		out.rows = append(out.rows, rows...)
	}
	return out
}

// buildOrder isolates one order: a panic drops that order's rows only.
func (s *Service) buildOrder(logger *zap.Logger, data *chunkData, i int) (res orderResult) {
	order := data.orders[i]
	defer func() {
		if r := recover(); r != nil {
			logger.Error("order failed; no rows emitted", zap.Int64("order_id", order.ID), zap.Any("panic", r))
			res = orderResult{index: i, failed: true}
		}
	}()

	rows, skipped := s.buildRows(order, data.items[order.ID], data.lookups)
	for _, item := range skipped {
		logger.Warn("item skipped: quantity is not numeric",
			zap.Int64("order_id", order.ID),
			zap.Int64("product_id", item.ProductID),
			zap.String("quantity", item.Quantity),
		)
	}
	return orderResult{index: i, rows: rows, skipped: len(skipped)}
}
