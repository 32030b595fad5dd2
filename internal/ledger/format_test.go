package ledger

import (
	"testing"
	"time"
)

func TestCustomerType(t *testing.T) {
	tests := []struct {
		taxID string
		want  string
	}{
		{"12345678901", "F"},
		{"14255350000103", "J"},
		{"1234567890", ""},
		{"123456789012", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CustomerType(tt.taxID); got != tt.want {
			t.Errorf("CustomerType(%q) = %q, want %q", tt.taxID, got, tt.want)
		}
	}
	if got := CustomerType(DigitsOnly("14.255.350/0001-03")); got != "J" {
		t.Errorf("formatted CNPJ classified as %q", got)
	}
}

func TestSplitPhone(t *testing.T) {
	tests := []struct {
		phone, area, number string
	}{
		{"(11) 98765-4321", "11", "987654321"},
		{"123", "12", "3"},
		{"12", "", ""},
		{"sem telefone", "", ""},
	}
	for _, tt := range tests {
		area, number := SplitPhone(tt.phone)
		if area != tt.area || number != tt.number {
			t.Errorf("SplitPhone(%q) = (%q, %q), want (%q, %q)", tt.phone, area, number, tt.area, tt.number)
		}
	}
}

func TestChannel(t *testing.T) {
	if got := Channel(" telepecas "); got != "TELEP" {
		t.Errorf("Channel(telepecas) = %q", got)
	}
	if got := Channel("balcao"); got != "BALCAO" {
		t.Errorf("Channel(balcao) = %q", got)
	}
}

func TestFormatting(t *testing.T) {
	if got := FormatNumber(54); got != "54,00" {
		t.Errorf("FormatNumber(54) = %q", got)
	}
	if got := FormatNumber(44.295471698113204); got != "44,30" {
		t.Errorf("FormatNumber(44.2954...) = %q", got)
	}
	if got := FormatNumber(-3.5); got != "-3,50" {
		t.Errorf("FormatNumber(-3.5) = %q", got)
	}
	if got := FormatNumber(0); got != "" {
		t.Errorf("FormatNumber(0) = %q, want empty", got)
	}
	if got := FormatNumber(0.001); got != "0,00" {
		t.Errorf("FormatNumber(0.001) = %q", got)
	}
	zero := 0.0
	if got := FormatOptional(&zero); got != "" {
		t.Errorf("FormatOptional(0) = %q, want empty", got)
	}
	if got := FormatOptional(nil); got != "" {
		t.Errorf("FormatOptional(nil) = %q", got)
	}
	if got := NormalizeText("  PNEU; ARO 15 "); got != "PNEU, ARO 15" {
		t.Errorf("NormalizeText = %q", got)
	}
	if got := FormatDate(time.Date(2024, 1, 5, 13, 0, 0, 0, time.UTC)); got != "05/01/2024" {
		t.Errorf("FormatDate = %q", got)
	}
}
