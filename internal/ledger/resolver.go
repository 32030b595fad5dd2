package ledger

import (
	"strconv"
	"strings"
	"time"

	"github.com/Additional-Code/salesledger/internal/entity"
)

// ItemKey identifies a product within an order.
type ItemKey struct {
	OrderID   int64
	ProductID int64
}

// Cost carries the purchase figures resolved for an item. IPI and ICMS are
// percentages.
type Cost struct {
	UnitCost float64
	IPI      float64
	ICMS     float64
}

// Enrichment maps order items to their resolved purchase cost. It is built
// once per chunk and only read afterwards, so concurrent readers need no lock.
type Enrichment map[ItemKey]Cost

// Lookup returns the cost for key, if one was resolved.
func (e Enrichment) Lookup(key ItemKey) (Cost, bool) {
	c, ok := e[key]
	return c, ok
}

// History holds the merged events of every partition, grouped by product.
type History map[int64][]entity.HistoryEvent

// InsertionDate returns the earliest ORDER event of the given order.
func InsertionDate(events []entity.HistoryEvent, orderID int64) (time.Time, bool) {
	doc := strconv.FormatInt(orderID, 10)
	var (
		earliest time.Time
		found    bool
	)
	for _, ev := range events {
		if ev.Kind != entity.EventOrder || strings.TrimSpace(ev.Document) != doc {
			continue
		}
		if !found || ev.Date.Before(earliest) {
			earliest, found = ev.Date, true
		}
	}
	return earliest, found
}

// LatestPurchase returns the document of the most recent PURCHASE event dated
// on or before at. Events sharing the latest date resolve to the lowest
// document number.
func LatestPurchase(events []entity.HistoryEvent, at time.Time) (string, bool) {
	var best *entity.HistoryEvent
	for i := range events {
		ev := &events[i]
		if ev.Kind != entity.EventPurchase || ev.Date.After(at) {
			continue
		}
		doc := strings.TrimSpace(ev.Document)
		if doc == "" {
			continue
		}
		switch {
		case best == nil, ev.Date.After(best.Date):
			best = ev
		case ev.Date.Equal(best.Date) && lessDocument(doc, strings.TrimSpace(best.Document)):
			best = ev
		}
	}
	if best == nil {
		return "", false
	}
	return strings.TrimSpace(best.Document), true
}

// ResolvePurchase finds the purchase document that supplied a product for an
// order: the latest purchase on or before the moment the product was added to
// the order.
func ResolvePurchase(events []entity.HistoryEvent, orderID int64) (string, bool) {
	inserted, ok := InsertionDate(events, orderID)
	if !ok {
		return "", false
	}
	return LatestPurchase(events, inserted)
}

// ResolveDocuments resolves every key against history. Keys without a match
// are absent from the result.
func ResolveDocuments(history History, keys []ItemKey) map[ItemKey]string {
	docs := make(map[ItemKey]string, len(keys))
	for _, key := range keys {
		if _, done := docs[key]; done {
			continue
		}
		if doc, ok := ResolvePurchase(history[key.ProductID], key.OrderID); ok {
			docs[key] = doc
		}
	}
	return docs
}

// BuildEnrichment joins resolved documents with their purchase invoice lines.
// Items whose (document, product) line is missing stay unresolved.
func BuildEnrichment(docs map[ItemKey]string, lines []entity.PurchaseInvoiceLine) Enrichment {
	type lineKey struct {
		doc       string
		productID int64
	}
	byLine := make(map[lineKey]entity.PurchaseInvoiceLine, len(lines))
	for _, line := range lines {
		byLine[lineKey{strings.TrimSpace(line.Document), line.ProductID}] = line
	}

	out := make(Enrichment, len(docs))
	for key, doc := range docs {
		line, ok := byLine[lineKey{doc, key.ProductID}]
		if !ok {
			continue
		}
		out[key] = Cost{UnitCost: line.UnitCost.Float(), IPI: line.IPI.Float(), ICMS: line.ICMS.Float()}
	}
	return out
}

// lessDocument orders document numbers numerically when both are integers
// and lexically otherwise.
func lessDocument(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}
