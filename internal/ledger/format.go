package ledger

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// DateLayout is the dd/mm/yyyy layout of the ledger date column.
const DateLayout = "02/01/2006"

// NormalizeText trims s and replaces the field delimiter with a comma.
func NormalizeText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, ";", ","))
}

// DigitsOnly strips every non-digit rune from s.
func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// CustomerType maps a cleaned tax id to F (individual, 11 digits) or J
// (company, 14 digits).
func CustomerType(cleanTaxID string) string {
	switch len(cleanTaxID) {
	case 11:
		return "F"
	case 14:
		return "J"
	default:
		return ""
	}
}

// SplitPhone returns the two-digit area code and the remaining number. Phones
// with fewer than three digits yield two empty strings.
func SplitPhone(phone string) (area, number string) {
	digits := DigitsOnly(phone)
	if len(digits) < 3 {
		return "", ""
	}
	return digits[:2], digits[2:]
}

// Channel derives the sales channel code from an employee credential.
func Channel(credential string) string {
	code := strings.ToUpper(NormalizeText(credential))
	if code == "TELEPECAS" {
		return "TELEP"
	}
	return code
}

// FormatNumber renders v with two decimals and a comma separator. An exact
// zero renders as "", as the downstream billing import expects for absent
// amounts.
func FormatNumber(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.Replace(decimal.NewFromFloat(v).StringFixed(2), ".", ",", 1)
}

// FormatOptional renders v like FormatNumber, or "" when v is nil.
func FormatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return FormatNumber(*v)
}

// FormatDate renders t as dd/mm/yyyy.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
