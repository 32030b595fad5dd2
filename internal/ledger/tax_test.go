package ledger

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < epsilon }

func TestComputeCostTaxMarginConstants(t *testing.T) {
	if MVABasePct != 71.78 || DestinationICMSPct != 20.5 {
		t.Fatalf("regulatory constants changed: MVA=%v ICMS=%v", MVABasePct, DestinationICMSPct)
	}

	got := ComputeCostTaxMargin(100, 0, 0, nil, 1)

	// adjusted MVA = (1.7178/0.795 - 1) * 100 = 116.0754716981...
	// ST           = 216.0754716981... * 20.5 / 100 / 100 = 0.4429547169811...
	if !approx(got.TotalCost, 100) {
		t.Errorf("TotalCost = %v, want 100", got.TotalCost)
	}
	if !approx(got.TotalTax, 44.295471698113204) {
		t.Errorf("TotalTax = %.15f, want 44.295471698113204", got.TotalTax)
	}
	if got.Margin != nil {
		t.Errorf("Margin = %v, want nil without a final sale value", *got.Margin)
	}
}

func TestComputeCostTaxMarginWithRates(t *testing.T) {
	sale := 200.0
	got := ComputeCostTaxMargin(50, 5, 12, &sale, 3)

	if !approx(got.TotalCost, 150) {
		t.Errorf("TotalCost = %v, want 150", got.TotalCost)
	}
	if !approx(got.TotalTax, 50.89352377358494) {
		t.Errorf("TotalTax = %.15f, want 50.89352377358494", got.TotalTax)
	}
	if got.Margin == nil || !approx(*got.Margin, 200*0.67-150) {
		t.Errorf("Margin = %v, want %v", got.Margin, 200*0.67-150)
	}
}

func TestMarginSetOnlyWithFinalSale(t *testing.T) {
	for _, sale := range []float64{0, 54, 1234.5} {
		s := sale
		got := ComputeCostTaxMargin(10, 0, 18, &s, 2)
		if got.Margin == nil {
			t.Fatalf("sale %v: margin unset", sale)
		}
		if want := 0.67*sale - 10*2; !approx(*got.Margin, want) {
			t.Fatalf("sale %v: margin = %v, want %v", sale, *got.Margin, want)
		}
	}
	if got := ComputeCostTaxMargin(10, 0, 18, nil, 2); got.Margin != nil {
		t.Fatalf("margin set without final sale")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		description string
		want        int
	}{
		{"Peça Original Bosch", ClassOriginal},
		{"FILTRO GENUINO VW", ClassOriginal},
		{"lanterna orig. fiat", ClassOriginal},
		{"Peça Genérica", ClassGeneric},
		{"", ClassGeneric},
	}
	for _, tt := range tests {
		if got := Classify(tt.description); got != tt.want {
			t.Errorf("Classify(%q) = %d, want %d", tt.description, got, tt.want)
		}
	}
}
