package dedup

import (
	"testing"

	"github.com/zoesolar/intake/internal/core/domain"
)

func f(v float64) *float64 { return &v }

func existingDoc(id string, data *domain.ExtractedData) *domain.DocumentRecord {
	return &domain.DocumentRecord{ID: id, Status: domain.StatusCompleted, Data: data}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Re-Nr: 220":  "renr220",
		"RE 2024 01":  "re202401",
		"Amazon EU":   "amazoneu",
		"":            "",
		"!!!---":      "",
		"ÄÖÜ Invoice": "invoice",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGuardNoAmountNoInvoiceNumber(t *testing.T) {
	m := NewMatcher(DefaultConfig())
	existing := []*domain.DocumentRecord{
		existingDoc("d1", &domain.ExtractedData{
			VendorName:   "Amazon",
			DocumentDate: "2024-05-01",
		}),
	}
	data := &domain.ExtractedData{VendorName: "Amazon", DocumentDate: "2024-05-01"}
	if match := m.FindDuplicate(data, existing); match != nil {
		t.Fatalf("guard violated: got match %+v", match)
	}
}

func TestTierOneInvoiceAndAmount(t *testing.T) {
	m := NewMatcher(DefaultConfig())
	existing := []*domain.DocumentRecord{
		existingDoc("d1", &domain.ExtractedData{
			VendorInvoiceNumber: "RE-2024-01",
			GrossAmount:         f(119.00),
			DocumentDate:        "2024-03-01",
		}),
	}
	data := &domain.ExtractedData{
		VendorInvoiceNumber: "re 2024 01",
		GrossAmount:         f(119.05),
	}
	match := m.FindDuplicate(data, existing)
	if match == nil {
		t.Fatalf("expected tier-1 match")
	}
	if match.Confidence != 0.95 {
		t.Fatalf("confidence = %v, want 0.95", match.Confidence)
	}
	if match.Document.ID != "d1" {
		t.Fatalf("matched wrong document: %s", match.Document.ID)
	}
}

func TestTierOneAmountToleranceIsStrict(t *testing.T) {
	m := NewMatcher(DefaultConfig())
	existing := []*domain.DocumentRecord{
		existingDoc("d1", &domain.ExtractedData{
			VendorInvoiceNumber: "AB12",
			GrossAmount:         f(100.00),
		}),
	}

	// Exactly 0.10 apart: not a match (strict <).
	data := &domain.ExtractedData{VendorInvoiceNumber: "AB12", GrossAmount: f(100.10)}
	if match := m.FindDuplicate(data, existing); match != nil {
		t.Fatalf("diff of exactly 0.10 must not match, got %+v", match)
	}

	// 0.0999 apart: match.
	data = &domain.ExtractedData{VendorInvoiceNumber: "AB12", GrossAmount: f(100.0999)}
	if match := m.FindDuplicate(data, existing); match == nil || match.Confidence != 0.95 {
		t.Fatalf("diff of 0.0999 must match at 0.95, got %+v", match)
	}
}

func TestTierTwoInvoiceAndDate(t *testing.T) {
	m := NewMatcher(DefaultConfig())
	existing := []*domain.DocumentRecord{
		existingDoc("d1", &domain.ExtractedData{
			VendorInvoiceNumber: "INV-77",
			GrossAmount:         f(200.00),
			DocumentDate:        "2024-02-02",
		}),
	}
	// Amount off by far more than tolerance, but number+date agree.
	data := &domain.ExtractedData{
		VendorInvoiceNumber: "INV 77",
		GrossAmount:         f(250.00),
		DocumentDate:        "2024-02-02",
	}
	match := m.FindDuplicate(data, existing)
	if match == nil {
		t.Fatalf("expected tier-2 match")
	}
	if match.Confidence != 0.90 {
		t.Fatalf("confidence = %v, want 0.90", match.Confidence)
	}
}

func TestTierThreeWeightedScore(t *testing.T) {
	m := NewMatcher(DefaultConfig())
	existing := []*domain.DocumentRecord{
		existingDoc("d1", &domain.ExtractedData{
			VendorName:   "Amazon",
			GrossAmount:  f(100.02),
			DocumentDate: "2024-05-01",
		}),
	}
	data := &domain.ExtractedData{
		VendorName:   "Amazon EU",
		GrossAmount:  f(100.00),
		DocumentDate: "2024-05-01",
	}
	// amount 40 + date 30 + vendor substring 20 = 90.
	match := m.FindDuplicate(data, existing)
	if match == nil {
		t.Fatalf("expected tier-3 match")
	}
	if match.Confidence != 0.89 {
		t.Fatalf("confidence = %v, want capped 0.89", match.Confidence)
	}
}

func TestTierThreeBelowThreshold(t *testing.T) {
	m := NewMatcher(DefaultConfig())
	existing := []*domain.DocumentRecord{
		existingDoc("d1", &domain.ExtractedData{
			VendorName:   "Amazon",
			GrossAmount:  f(500.00),
			DocumentDate: "2024-05-01",
		}),
	}
	// date 30 + vendor 20 = 50 < 70.
	data := &domain.ExtractedData{
		VendorName:   "Amazon EU",
		GrossAmount:  f(100.00),
		DocumentDate: "2024-05-01",
	}
	if match := m.FindDuplicate(data, existing); match != nil {
		t.Fatalf("expected no match below threshold, got %+v", match)
	}
}

func TestSkipsErrorAndDuplicateRecords(t *testing.T) {
	m := NewMatcher(DefaultConfig())
	dup := existingDoc("d1", &domain.ExtractedData{
		VendorInvoiceNumber: "INV-1",
		GrossAmount:         f(10.00),
	})
	dup.Status = domain.StatusDuplicate
	errDoc := existingDoc("d2", &domain.ExtractedData{
		VendorInvoiceNumber: "INV-1",
		GrossAmount:         f(10.00),
	})
	errDoc.Status = domain.StatusError

	data := &domain.ExtractedData{VendorInvoiceNumber: "INV-1", GrossAmount: f(10.00)}
	if match := m.FindDuplicate(data, []*domain.DocumentRecord{dup, errDoc}); match != nil {
		t.Fatalf("error/duplicate records must be excluded, got %+v", match)
	}
}

func TestFirstSatisfyingDocumentWins(t *testing.T) {
	m := NewMatcher(DefaultConfig())
	// Both satisfy tier 1; the first in iteration order is returned even
	// though the second is an equally strong candidate.
	first := existingDoc("first", &domain.ExtractedData{
		VendorInvoiceNumber: "INV-9",
		GrossAmount:         f(50.00),
	})
	second := existingDoc("second", &domain.ExtractedData{
		VendorInvoiceNumber: "INV-9",
		GrossAmount:         f(50.00),
	})
	data := &domain.ExtractedData{VendorInvoiceNumber: "INV-9", GrossAmount: f(50.00)}
	match := m.FindDuplicate(data, []*domain.DocumentRecord{first, second})
	if match == nil || match.Document.ID != "first" {
		t.Fatalf("expected first document to win, got %+v", match)
	}
}
