package ledger

import "strings"

// Regulatory constants used for the substitution-tax estimate.
const (
	// MVABasePct is the original ST value-added margin, in percent.
	MVABasePct = 71.78
	// DestinationICMSPct is the ICMS rate of the destination state, in percent.
	DestinationICMSPct = 20.5

	freightRate  = 0.10
	marginFactor = 0.67
)

// Percentages are converted at run time, in float64, so that the rounding of
// every intermediate step matches the established ledger figures.
var (
	mvaBasePct         float64 = MVABasePct
	destinationICMSPct float64 = DestinationICMSPct
)

// CostTaxMargin holds the per-line cost figures. Margin is nil when the final
// sale value is unknown.
type CostTaxMargin struct {
	TotalCost float64
	TotalTax  float64
	Margin    *float64
}

// ComputeCostTaxMargin estimates the landed cost of a line item. ipiPct and
// icmsSupplierPct are percentages as stored on the purchase invoice (12 for
// 12%). The formula is reproduced term by term, including the freight that
// is added and then subtracted again.
func ComputeCostTaxMargin(unitCost, ipiPct, icmsSupplierPct float64, finalSale *float64, qty float64) CostTaxMargin {
	ipi := ipiPct / 100.0
	icmsSupplier := icmsSupplierPct / 100.0

	mvaBase := mvaBasePct / 100
	icmsDestination := destinationICMSPct / 100

	var adjustedMVA float64
	if 1-icmsDestination != 0 {
		adjustedMVA = ((1+mvaBase)*(1-icmsSupplier)/(1-icmsDestination) - 1) * 100
	}

	st := ((((100 + adjustedMVA) * (1 + ipi)) * (icmsDestination * 100) / 100) - 100*icmsSupplier) / 100
	costWithST := unitCost + st*unitCost
	costWithSTAndIPI := costWithST + unitCost*ipi
	freight := costWithSTAndIPI * freightRate
	total := costWithSTAndIPI + freight
	tax := total - unitCost - freight

	out := CostTaxMargin{
		TotalCost: unitCost * qty,
		TotalTax:  tax * qty,
	}
	if finalSale != nil {
		margin := *finalSale*marginFactor - out.TotalCost
		out.Margin = &margin
	}
	return out
}

// Part classification codes.
const (
	ClassOriginal = 1
	ClassGeneric  = 5
)

var originalMarkers = []string{"ORIGINAL", "GENUINO", "ORIG"}

// Classify returns ClassOriginal when the description names a genuine part.
func Classify(description string) int {
	upper := strings.ToUpper(description)
	for _, marker := range originalMarkers {
		if strings.Contains(upper, marker) {
			return ClassOriginal
		}
	}
	return ClassGeneric
}
