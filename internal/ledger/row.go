package ledger

import (
	"strconv"
	"strings"

	"github.com/Additional-Code/salesledger/internal/entity"
)

// Columns is the number of fields in a ledger row.
const Columns = 26

// Row is one invoiced item in ledger column order.
type Row [Columns]string

// Column positions, for callers and tests that need a specific field.
const (
	ColLegalEntity = iota
	ColOrderID
	ColChannel
	ColDate
	ColCustomerName
	ColCustomerType
	ColTaxID
	ColPostalCode
	ColCity
	ColState
	ColAreaCode
	ColPhone
	ColChassis
	ColModel
	ColYear
	ColPlate
	ColExternalCode
	ColQuantity
	ColValue
	ColSalesperson
	ColItemClass
	ColDescription
	ColTotalCost
	ColTotalTax
	ColMargin
	ColPartClass
)

// Lookups is the read-only side data shared by every row-building task of a
// chunk. Nothing may write to it once fan-out has started.
type Lookups struct {
	LegalEntityTaxID string
	Clients          map[int64]entity.Client
	Phones           map[int64]string
	Channels         map[int64]string
	Enrichment       Enrichment
}

// SkippedItem reports an item that could not be turned into a row.
type SkippedItem struct {
	ProductID int64
	Quantity  string
}

// DiscountShare returns the part of the order-level discount attributed to
// an item priced unitPrice.
func DiscountShare(discount, unitPrice, orderTotal float64) float64 {
	if orderTotal <= 0 {
		return 0
	}
	return discount * (unitPrice / orderTotal)
}

// ParseQuantity parses a raw quantity column.
func ParseQuantity(raw string) (float64, bool) {
	q, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return q, true
}

// BuildOrderRows formats the ledger rows of one order. Items with an
// unparseable quantity are returned in skipped instead.
func BuildOrderRows(order entity.Order, items []entity.OrderItem, lk *Lookups) (rows []Row, skipped []SkippedItem) {
	client := lk.Clients[order.CustomerID]
	taxID := DigitsOnly(client.TaxID)
	area, phone := SplitPhone(lk.Phones[order.CustomerID])

	header := Row{
		ColLegalEntity:  NormalizeText(lk.LegalEntityTaxID),
		ColOrderID:      strconv.FormatInt(order.ID, 10),
		ColChannel:      lk.Channels[order.SalespersonID],
		ColDate:         FormatDate(order.Date),
		ColCustomerName: NormalizeText(order.CustomerName),
		ColCustomerType: CustomerType(taxID),
		ColTaxID:        taxID,
		ColPostalCode:   NormalizeText(client.PostalCode),
		ColCity:         NormalizeText(client.City),
		ColState:        NormalizeText(client.State),
		ColAreaCode:     area,
		ColPhone:        phone,
	}
	if order.SalespersonID != 0 {
		header[ColSalesperson] = strconv.FormatInt(order.SalespersonID, 10)
	}

	rows = make([]Row, 0, len(items))
	for _, item := range items {
		qty, ok := ParseQuantity(item.Quantity.String)
		if !item.Quantity.Valid || !ok {
			skipped = append(skipped, SkippedItem{ProductID: item.ProductID, Quantity: item.Quantity.String})
			continue
		}

		description := NormalizeText(item.Description)
		unitPrice := item.UnitPrice.Float()
		finalValue := (unitPrice - DiscountShare(order.Discount.Float(), unitPrice, order.Total.Float())) * qty

		row := header
		row[ColExternalCode] = NormalizeText(item.ExternalCode)
		row[ColQuantity] = FormatNumber(qty)
		row[ColValue] = FormatNumber(finalValue)
		row[ColDescription] = description
		row[ColPartClass] = strconv.Itoa(Classify(description))

		if cost, ok := lk.Enrichment.Lookup(ItemKey{OrderID: order.ID, ProductID: item.ProductID}); ok {
			ctm := ComputeCostTaxMargin(cost.UnitCost, cost.IPI, cost.ICMS, &finalValue, qty)
			row[ColTotalCost] = FormatNumber(ctm.TotalCost)
			row[ColTotalTax] = FormatNumber(ctm.TotalTax)
			row[ColMargin] = FormatOptional(ctm.Margin)
		}

		rows = append(rows, row)
	}
	return rows, skipped
}
