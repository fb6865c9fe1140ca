package dedup

import (
	"fmt"
	"math"
	"strings"

	"github.com/zoesolar/intake/internal/core/domain"
)

// Matcher scores a freshly extracted document against previously ingested
// ones. Tiers 1 and 2 are exact high-precision rules; tier 3 is a weighted
// fallback capped below them so the two strategies stay ordinally separated
// downstream. Iteration returns on the first document satisfying any tier,
// not a global best match.
type Matcher struct {
	cfg Config
}

type Config struct {
	// ExactAmountTolerance is the strict upper bound for tier 1 (< compare).
	ExactAmountTolerance float64
	// FuzzyAmountTolerance is the strict upper bound for the tier-3 amount signal.
	FuzzyAmountTolerance float64
	// ScoreThreshold is the minimum accumulated tier-3 score.
	ScoreThreshold int
}

func DefaultConfig() Config {
	return Config{
		ExactAmountTolerance: 0.10,
		FuzzyAmountTolerance: 0.05,
		ScoreThreshold:       70,
	}
}

func NewMatcher(cfg Config) *Matcher {
	def := DefaultConfig()
	if cfg.ExactAmountTolerance <= 0 {
		cfg.ExactAmountTolerance = def.ExactAmountTolerance
	}
	if cfg.FuzzyAmountTolerance <= 0 {
		cfg.FuzzyAmountTolerance = def.FuzzyAmountTolerance
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = def.ScoreThreshold
	}
	return &Matcher{cfg: cfg}
}

// Normalize lowercases and strips everything outside [a-z0-9], so that
// "Re-Nr: 220" and "re 220" compare equal.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (m *Matcher) FindDuplicate(data *domain.ExtractedData, existing []*domain.DocumentRecord) *domain.DuplicateMatch {
	if data == nil {
		return nil
	}
	gross, hasGross := data.Gross()
	if !hasGross && data.VendorInvoiceNumber == "" {
		return nil
	}

	invoiceNum := Normalize(data.VendorInvoiceNumber)
	vendor := Normalize(data.VendorName)
	date := data.DocumentDate

	for _, doc := range existing {
		if doc.Data == nil || doc.Status == domain.StatusError || doc.Status == domain.StatusDuplicate {
			continue
		}

		existingNum := Normalize(doc.Data.VendorInvoiceNumber)
		existingGross, hasExistingGross := doc.Data.Gross()
		existingDate := doc.Data.DocumentDate

		// Tier 1: invoice number and amount identical within tolerance.
		if len(invoiceNum) >= 2 && invoiceNum == existingNum && hasGross && hasExistingGross {
			if math.Abs(gross-existingGross) < m.cfg.ExactAmountTolerance {
				return &domain.DuplicateMatch{
					Document:   doc,
					Reason:     fmt.Sprintf("invoice number (%s) and amount identical", doc.Data.VendorInvoiceNumber),
					Confidence: 0.95,
				}
			}
		}

		// Tier 2: invoice number and date identical. Catches OCR errors
		// in the amount.
		if len(invoiceNum) >= 3 && invoiceNum == existingNum && date != "" && date == existingDate {
			return &domain.DuplicateMatch{
				Document:   doc,
				Reason:     fmt.Sprintf("invoice number (%s) and date identical", doc.Data.VendorInvoiceNumber),
				Confidence: 0.90,
			}
		}

		// Tier 3: weighted similarity.
		score := 0
		if hasGross && hasExistingGross && math.Abs(gross-existingGross) < m.cfg.FuzzyAmountTolerance {
			score += 40
		}
		if date != "" && date == existingDate {
			score += 30
		}
		existingVendor := Normalize(doc.Data.VendorName)
		if vendor != "" && existingVendor != "" &&
			(strings.Contains(vendor, existingVendor) || strings.Contains(existingVendor, vendor)) {
			score += 20
		}
		if len(invoiceNum) > 4 && strings.Contains(existingNum, invoiceNum) {
			score += 20
		}

		if score >= m.cfg.ScoreThreshold {
			return &domain.DuplicateMatch{
				Document:   doc,
				Reason:     "high similarity across date, amount and vendor",
				Confidence: math.Min(0.89, float64(score)/100),
			}
		}
	}

	return nil
}
