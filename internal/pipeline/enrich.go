package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/Additional-Code/salesledger/internal/batch"
	"github.com/Additional-Code/salesledger/internal/entity"
	"github.com/Additional-Code/salesledger/internal/ledger"
	"github.com/Additional-Code/salesledger/internal/repository/erp"
)

const purchaseLinesKeyPrefix = "purchase-lines:"

// enrich resolves the purchase document of each item and loads the invoice
// lines of those documents, reading through the cache. Invoices never change
// once issued, so cached lines do not go stale.
func (s *Service) enrich(ctx context.Context, logger *zap.Logger, rd erp.Reader, history ledger.History, keys []ledger.ItemKey) (ledger.Enrichment, int) {
	docs := ledger.ResolveDocuments(history, keys)
	if len(docs) == 0 {
		return ledger.Enrichment{}, 0
	}

	numbers := make([]string, 0, len(docs))
	for _, doc := range docs {
		numbers = append(numbers, doc)
	}
	numbers = batch.Distinct(numbers)

	lines, missing := s.cachedLines(ctx, logger, numbers)
	fetched, failures := batch.Fetch(ctx, missing, s.cfg.BlockSize, rd.PurchaseLines)
	failed := s.blockFailures(ctx, logger, "purchase_lines", failures)

	if ctx.Err() == nil {
		skip := make(map[string]bool)
		blocks := batch.Blocks(missing, s.cfg.BlockSize)
		for _, f := range failures {
			for _, doc := range blocks[f.Index] {
				skip[doc] = true
			}
		}
		s.storeLines(ctx, logger, missing, fetched, skip)
	}

	lines = append(lines, fetched...)
	logger.Debug("purchase costs resolved",
		zap.Int("items", len(docs)),
		zap.Int("documents", len(numbers)),
		zap.Int("cached_documents", len(numbers)-len(missing)),
	)
	return ledger.BuildEnrichment(docs, lines), failed
}

// cachedLines returns the lines found in the cache and the documents that
// still have to be queried.
func (s *Service) cachedLines(ctx context.Context, logger *zap.Logger, docs []string) ([]entity.PurchaseInvoiceLine, []string) {
	if s.cache == nil {
		return nil, docs
	}
	keys := make([]string, len(docs))
	for i, doc := range docs {
		keys[i] = purchaseLinesKeyPrefix + doc
	}
	found, err := s.cache.GetMany(ctx, keys)
	if err != nil {
		logger.Warn("purchase lines cache read failed", zap.Error(err))
		return nil, docs
	}

	var (
		lines   []entity.PurchaseInvoiceLine
		missing []string
	)
	for i, doc := range docs {
		raw, ok := found[keys[i]]
		if !ok {
			missing = append(missing, doc)
			continue
		}
		var cached []entity.PurchaseInvoiceLine
		if err := json.Unmarshal(raw, &cached); err != nil {
			logger.Warn("purchase lines cache entry unreadable", zap.String("document", doc), zap.Error(err))
			missing = append(missing, doc)
			continue
		}
		lines = append(lines, cached...)
	}
	return lines, missing
}

// storeLines caches the lines of every queried document, including
// documents without lines, except those whose block failed.
func (s *Service) storeLines(ctx context.Context, logger *zap.Logger, docs []string, lines []entity.PurchaseInvoiceLine, skip map[string]bool) {
	if s.cache == nil || len(docs) == 0 {
		return
	}
	byDoc := make(map[string][]entity.PurchaseInvoiceLine, len(docs))
	for _, doc := range docs {
		if !skip[doc] {
			byDoc[doc] = []entity.PurchaseInvoiceLine{}
		}
	}
	for _, line := range lines {
		doc := strings.TrimSpace(line.Document)
		if _, ok := byDoc[doc]; ok {
			byDoc[doc] = append(byDoc[doc], line)
		}
	}

	values := make(map[string][]byte, len(byDoc))
	for doc, docLines := range byDoc {
		payload, err := json.Marshal(docLines)
		if err != nil {
			logger.Warn("marshal purchase lines", zap.String("document", doc), zap.Error(err))
			continue
		}
		values[purchaseLinesKeyPrefix+doc] = payload
	}
	if err := s.cache.SetMany(ctx, values, s.cacheTTL); err != nil {
		logger.Warn("purchase lines cache write failed", zap.Error(err))
	}
}
