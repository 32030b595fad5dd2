package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/Additional-Code/salesledger/internal/batch"
	"github.com/Additional-Code/salesledger/internal/chunk"
	"github.com/Additional-Code/salesledger/internal/entity"
	"github.com/Additional-Code/salesledger/internal/ledger"
	"github.com/Additional-Code/salesledger/internal/repository/erp"
)

// loadHistory gathers the order and purchase events of productIDs from every
// history partition, up to the end of the chunk. A failing partition or block
// only loses its own events.
func (s *Service) loadHistory(ctx context.Context, logger *zap.Logger, rd erp.Reader, productIDs []int64, r chunk.Range) (ledger.History, int) {
	history := make(ledger.History, len(productIDs))
	if len(productIDs) == 0 {
		return history, 0
	}

	failed := 0
	for _, table := range s.cfg.HistoryTables() {
		events, failures := batch.Fetch(ctx, productIDs, s.cfg.BlockSize,
			func(ctx context.Context, block []int64) ([]entity.HistoryEvent, error) {
				return rd.History(ctx, table, block, r.End)
			})
		failed += s.blockFailures(ctx, logger, "history:"+table, failures)
		for _, e := range events {
			history[e.ProductID] = append(history[e.ProductID], e)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return history, failed
}
