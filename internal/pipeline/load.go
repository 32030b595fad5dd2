package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Additional-Code/salesledger/internal/batch"
	"github.com/Additional-Code/salesledger/internal/chunk"
	"github.com/Additional-Code/salesledger/internal/entity"
	"github.com/Additional-Code/salesledger/internal/ledger"
	"github.com/Additional-Code/salesledger/internal/repository/erp"
	"github.com/Additional-Code/salesledger/pkg/errorbank"
)

// chunkData is everything row building needs for one chunk. It is not
// modified after load returns.
type chunkData struct {
	orders       []entity.Order
	items        map[int64][]entity.OrderItem
	lookups      *ledger.Lookups
	failedBlocks int
}

// load runs every query of a chunk on rd. Only the orders query is fatal;
// failed id blocks are logged, counted and skipped.
func (s *Service) load(ctx context.Context, logger *zap.Logger, rd erp.Reader, r chunk.Range) (*chunkData, error) {
	orders, err := rd.Orders(ctx, s.cfg.LegalEntityTaxID, r)
	if err != nil {
		return nil, errorbank.Unavailable("failed to load orders", errorbank.WithCause(err), errorbank.WithDetail("chunk", r.String()))
	}
	orders = inRange(logger, orders, r)

	data := &chunkData{
		orders: orders,
		items:  make(map[int64][]entity.OrderItem, len(orders)),
		lookups: &ledger.Lookups{
			LegalEntityTaxID: s.cfg.LegalEntityTaxID,
			Clients:          make(map[int64]entity.Client),
			Phones:           make(map[int64]string),
			Channels:         make(map[int64]string),
			Enrichment:       ledger.Enrichment{},
		},
	}
	if len(orders) == 0 {
		return data, nil
	}

	orderIDs := make([]int64, 0, len(orders))
	clientIDs := make([]int64, 0, len(orders))
	employeeIDs := make([]int64, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
		clientIDs = append(clientIDs, o.CustomerID)
		employeeIDs = append(employeeIDs, o.SalespersonID)
	}
	clientIDs = batch.Distinct(clientIDs)

	items, failures := batch.Fetch(ctx, batch.Distinct(orderIDs), s.cfg.BlockSize, rd.Items)
	data.failedBlocks += s.blockFailures(ctx, logger, "items", failures)
	productIDs := make([]int64, 0, len(items))
	keys := make([]ledger.ItemKey, 0, len(items))
	for _, item := range items {
		data.items[item.OrderID] = append(data.items[item.OrderID], item)
		productIDs = append(productIDs, item.ProductID)
		keys = append(keys, ledger.ItemKey{OrderID: item.OrderID, ProductID: item.ProductID})
	}

	clients, failures := batch.Fetch(ctx, clientIDs, s.cfg.BlockSize, rd.Clients)
	data.failedBlocks += s.blockFailures(ctx, logger, "clients", failures)
	for _, c := range clients {
		data.lookups.Clients[c.ID] = c
	}

	phones, failures := batch.Fetch(ctx, clientIDs, s.cfg.BlockSize, rd.Phones)
	data.failedBlocks += s.blockFailures(ctx, logger, "phones", failures)
	for _, p := range phones {
		if _, seen := data.lookups.Phones[p.ClientID]; !seen {
			data.lookups.Phones[p.ClientID] = p.Number
		}
	}

	employees, failures := batch.Fetch(ctx, batch.Distinct(employeeIDs), s.cfg.BlockSize, rd.Employees)
	data.failedBlocks += s.blockFailures(ctx, logger, "employees", failures)
	for _, e := range employees {
		data.lookups.Channels[e.ID] = ledger.Channel(e.Credential)
	}

	history, failed := s.loadHistory(ctx, logger, rd, batch.Distinct(productIDs), r)
	data.failedBlocks += failed

	enrichment, failed := s.enrich(ctx, logger, rd, history, keys)
	data.failedBlocks += failed
	data.lookups.Enrichment = enrichment

	return data, nil
}

// blockFailures logs skipped blocks and returns how many there were.
// A block interrupted by cancellation is not a query failure.
func (s *Service) blockFailures(ctx context.Context, logger *zap.Logger, stage string, failures []batch.Failure) int {
	n := 0
	for _, f := range failures {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(f.Err, ctxErr) {
			continue
		}
		n++
		logger.Error("block query failed; block skipped",
			zap.String("stage", stage),
			zap.Int("block", f.Index),
			zap.Int("ids", f.Size),
			zap.Error(f.Err),
		)
	}
	s.metrics.blocksFailed(ctx, stage, n)
	return n
}

// inRange drops orders dated outside r so that no order is written by two
// chunks.
func inRange(logger *zap.Logger, orders []entity.Order, r chunk.Range) []entity.Order {
	kept := orders[:0]
	for _, o := range orders {
		if r.Contains(o.Date) {
			kept = append(kept, o)
			continue
		}
		logger.Warn("order dated outside its chunk dropped",
			zap.Int64("order_id", o.ID),
			zap.Time("date", o.Date))
	}
	return kept
}
