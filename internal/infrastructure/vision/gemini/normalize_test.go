package gemini

import (
	"strings"
	"testing"
	"time"
)

var frozen = time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)

func TestNormalizeCoercesGermanFormats(t *testing.T) {
	data := Normalize(map[string]any{
		"document_date":         "12.05.2024",
		"vendor_name":           "  Hetzner Online GmbH ",
		"vendor_invoice_number": "R-100",
		"net_amount":            "1.234,56 €",
		"tax_amount_19":         "234,57",
		"gross_amount":          "1.469,13",
		"payment_method":        "Überweisung",
		"ocr_score":             "9",
	}, frozen)

	if data.DocumentDate != "2024-05-12" {
		t.Errorf("date = %q", data.DocumentDate)
	}
	if data.VendorName != "Hetzner Online GmbH" {
		t.Errorf("vendor = %q", data.VendorName)
	}
	if data.NetAmount == nil || *data.NetAmount != 1234.56 {
		t.Errorf("net = %v", data.NetAmount)
	}
	if data.GrossAmount == nil || *data.GrossAmount != 1469.13 {
		t.Errorf("gross = %v", data.GrossAmount)
	}
	if data.OCRScore != 9 {
		t.Errorf("score = %v", data.OCRScore)
	}
	if data.OCRRationale != "" {
		t.Errorf("unexpected rationale %q", data.OCRRationale)
	}
}

func TestNormalizeDateFormats(t *testing.T) {
	cases := []struct{ in, want string }{
		{"2024-05-12", "2024-05-12"},
		{"12.05.2024", "2024-05-12"},
		{"12/05/2024", "2024-05-12"},
		{"12-05-2024", "2024-05-12"},
		{"2024/05/12", "2024-05-12"},
		{"1.2.24", "2024-02-01"},
		{"05.06.99", "1999-06-05"},
	}
	for _, tc := range cases {
		got, _ := parseDate(tc.in)
		if got != tc.want {
			t.Errorf("parseDate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeRejectsImpossibleDate(t *testing.T) {
	data := Normalize(map[string]any{"document_date": "31.02.2024"}, frozen)
	if data.DocumentDate != "2024-05-13" {
		t.Errorf("date = %q, want fallback to today", data.DocumentDate)
	}
	if !strings.Contains(data.OCRRationale, "date unclear") {
		t.Errorf("rationale = %q, want date warning", data.OCRRationale)
	}
}

func TestNormalizeDerivesGrossFromNetAndTax(t *testing.T) {
	data := Normalize(map[string]any{
		"document_date": "2024-05-12",
		"net_amount":    100.0,
		"tax_amount_19": 19.0,
	}, frozen)
	if data.GrossAmount == nil || *data.GrossAmount != 119.0 {
		t.Errorf("gross = %v, want derived 119.00", data.GrossAmount)
	}
	if data.OCRRationale != "" {
		t.Errorf("unexpected rationale %q", data.OCRRationale)
	}
}

func TestNormalizeFlagsContradictoryTotals(t *testing.T) {
	data := Normalize(map[string]any{
		"document_date": "2024-05-12",
		"net_amount":    100.0,
		"tax_amount_19": 19.0,
		"gross_amount":  140.0,
	}, frozen)
	if data.GrossAmount == nil || *data.GrossAmount != 140.0 {
		t.Errorf("gross = %v, extracted value must not be overwritten", data.GrossAmount)
	}
	if !strings.Contains(data.OCRRationale, "totals contradictory") {
		t.Errorf("rationale = %q, want contradiction warning", data.OCRRationale)
	}
}

func TestNormalizeMergesModelRationaleWithWarnings(t *testing.T) {
	data := Normalize(map[string]any{
		"document_date": "bald",
		"ocr_rationale": "vendor stamp overlaps the total",
		"ocr_score":     3.0,
	}, frozen)
	if !strings.HasPrefix(data.OCRRationale, "vendor stamp overlaps the total") {
		t.Errorf("rationale = %q", data.OCRRationale)
	}
	if !strings.Contains(data.OCRRationale, "date unclear") {
		t.Errorf("rationale = %q, want appended warning", data.OCRRationale)
	}
}

func TestNormalizeMissingScoreIsZero(t *testing.T) {
	data := Normalize(map[string]any{"document_date": "2024-05-12"}, frozen)
	if data.OCRScore != 0 {
		t.Errorf("score = %v, want 0", data.OCRScore)
	}
}

func TestNormalizeLineItems(t *testing.T) {
	data := Normalize(map[string]any{
		"document_date": "2024-05-12",
		"line_items": []any{
			map[string]any{"description": "PV Modul 450W", "amount": "1.200,00"},
			map[string]any{"description": "  "},
			map[string]any{"description": "Montage"},
			"garbage",
		},
	}, frozen)
	if len(data.LineItems) != 2 {
		t.Fatalf("line items = %d, want 2", len(data.LineItems))
	}
	if data.LineItems[0].Amount == nil || *data.LineItems[0].Amount != 1200.0 {
		t.Errorf("amount = %v", data.LineItems[0].Amount)
	}
	if data.LineItems[1].Amount != nil {
		t.Errorf("amount without input must stay nil")
	}
}

func TestParseNumberNotations(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{"1.234,56", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"119,00", 119.0, true},
		{"119.00", 119.0, true},
		{"(12,50)", -12.5, true},
		{"12,50 EUR", 12.5, true},
		{42.5, 42.5, true},
		{"", 0, false},
		{nil, 0, false},
		{"n/a", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseNumber(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("parseNumber(%v) = %v/%v, want %v/%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
