package ledger

import (
	"testing"
	"time"

	"github.com/Additional-Code/salesledger/internal/entity"
)

func qty(s string) entity.NullText { return entity.Text(s) }

func testLookups() *Lookups {
	return &Lookups{
		LegalEntityTaxID: "14.255.350/0001-03",
		Clients: map[int64]entity.Client{
			10: {ID: 10, TaxID: "123.456.789-01", PostalCode: "01310-100", City: "SAO PAULO", State: "SP"},
		},
		Phones:     map[int64]string{10: "(11) 3333-4444"},
		Channels:   map[int64]string{3: "TELEP"},
		Enrichment: Enrichment{{OrderID: 500, ProductID: 1}: {UnitCost: 20, IPI: 0, ICMS: 0}},
	}
}

func testOrder() entity.Order {
	return entity.Order{
		ID:            500,
		Date:          time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		CustomerName:  "OFICINA; DO ZE",
		CustomerID:    10,
		SalespersonID: 3,
		Discount:      10,
		Total:         100,
	}
}

func TestBuildOrderRowsDistributesDiscount(t *testing.T) {
	items := []entity.OrderItem{
		{OrderID: 500, ProductID: 1, ExternalCode: "AB-1", Quantity: qty("1"), UnitPrice: 60, Description: "Filtro Original"},
		{OrderID: 500, ProductID: 2, ExternalCode: "AB-2", Quantity: qty("1"), UnitPrice: 40, Description: "Pastilha"},
	}

	rows, skipped := BuildOrderRows(testOrder(), items, testLookups())
	if len(skipped) != 0 {
		t.Fatalf("skipped = %v", skipped)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	if got := DiscountShare(10, 60, 100); !approx(got, 6) {
		t.Errorf("share of 60 = %v, want 6", got)
	}
	if got := DiscountShare(10, 40, 100); !approx(got, 4) {
		t.Errorf("share of 40 = %v, want 4", got)
	}
	if rows[0][ColValue] != "54,00" || rows[1][ColValue] != "36,00" {
		t.Errorf("line values = %q, %q; want 54,00 and 36,00", rows[0][ColValue], rows[1][ColValue])
	}

	first := rows[0]
	want := map[int]string{
		ColLegalEntity:  "14.255.350/0001-03",
		ColOrderID:      "500",
		ColChannel:      "TELEP",
		ColDate:         "10/01/2024",
		ColCustomerName: "OFICINA, DO ZE",
		ColCustomerType: "F",
		ColTaxID:        "12345678901",
		ColPostalCode:   "01310-100",
		ColCity:         "SAO PAULO",
		ColState:        "SP",
		ColAreaCode:     "11",
		ColPhone:        "33334444",
		ColExternalCode: "AB-1",
		ColQuantity:     "1,00",
		ColSalesperson:  "3",
		ColDescription:  "Filtro Original",
		ColTotalCost:    "20,00",
		ColPartClass:    "1",
	}
	for col, value := range want {
		if first[col] != value {
			t.Errorf("column %d = %q, want %q", col, first[col], value)
		}
	}
	for _, col := range []int{ColChassis, ColModel, ColYear, ColPlate, ColItemClass} {
		if first[col] != "" {
			t.Errorf("placeholder column %d = %q, want empty", col, first[col])
		}
	}
	if first[ColMargin] != FormatNumber(54*0.67-20) {
		t.Errorf("margin = %q", first[ColMargin])
	}

	second := rows[1]
	if second[ColTotalCost] != "" || second[ColTotalTax] != "" || second[ColMargin] != "" {
		t.Errorf("unresolved item has cost fields: %q %q %q", second[ColTotalCost], second[ColTotalTax], second[ColMargin])
	}
	if second[ColPartClass] != "5" {
		t.Errorf("generic part class = %q", second[ColPartClass])
	}
}

func TestBuildOrderRowsSkipsBadQuantity(t *testing.T) {
	items := []entity.OrderItem{
		{ProductID: 1, Quantity: qty("abc"), UnitPrice: 10},
		{ProductID: 2, Quantity: entity.NullText{}, UnitPrice: 10},
		{ProductID: 3, Quantity: qty(" 2 "), UnitPrice: 10},
	}
	rows, skipped := BuildOrderRows(testOrder(), items, testLookups())
	if len(rows) != 1 || rows[0][ColQuantity] != "2,00" {
		t.Fatalf("rows = %v", rows)
	}
	if len(skipped) != 2 || skipped[0].ProductID != 1 || skipped[1].ProductID != 2 {
		t.Fatalf("skipped = %+v", skipped)
	}
}

func TestBuildOrderRowsZeroTotal(t *testing.T) {
	order := testOrder()
	order.Total = 0
	order.CustomerID = 99
	items := []entity.OrderItem{{ProductID: 2, Quantity: qty("3"), UnitPrice: 10}}

	rows, _ := BuildOrderRows(order, items, testLookups())
	if rows[0][ColValue] != "30,00" {
		t.Fatalf("value with zero order total = %q, want 30,00", rows[0][ColValue])
	}
	if rows[0][ColCustomerType] != "" || rows[0][ColAreaCode] != "" {
		t.Fatalf("unknown client produced side data: %v", rows[0])
	}
}

func TestBuildOrderRowsLeavesZeroAmountsEmpty(t *testing.T) {
	lk := testLookups()
	lk.Enrichment[ItemKey{OrderID: 500, ProductID: 3}] = Cost{}
	items := []entity.OrderItem{
		{OrderID: 500, ProductID: 3, ExternalCode: "BR-3", Quantity: qty("2"), UnitPrice: 0, Description: "Brinde"},
	}

	rows, _ := BuildOrderRows(testOrder(), items, lk)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	r := rows[0]
	if r[ColQuantity] != "2,00" {
		t.Errorf("quantity = %q", r[ColQuantity])
	}
	for _, col := range []int{ColValue, ColTotalCost, ColTotalTax, ColMargin} {
		if r[col] != "" {
			t.Errorf("zero amount column %d = %q, want empty", col, r[col])
		}
	}
}
