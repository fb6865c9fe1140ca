package gemini

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zoesolar/intake/internal/core/domain"
)

// Normalize coerces a raw model response into ExtractedData. Models
// return dates in local formats, amounts with comma decimals and
// numbers as strings; everything is coerced tolerantly and anything
// suspicious lands in the rationale so the classifier can route the
// document to review.
func Normalize(raw map[string]any, now time.Time) *domain.ExtractedData {
	var warnings []string

	date, hadInput := parseDate(toString(raw["document_date"]))
	if date == "" {
		date = now.Format("2006-01-02")
		if hadInput {
			warnings = append(warnings, "date unclear, please verify")
		}
	}

	data := &domain.ExtractedData{
		VendorName:          strings.TrimSpace(toString(raw["vendor_name"])),
		VendorAddress:       strings.TrimSpace(toString(raw["vendor_address"])),
		VendorTaxID:         strings.TrimSpace(toString(raw["vendor_tax_id"])),
		DocumentDate:        date,
		VendorInvoiceNumber: strings.TrimSpace(toString(raw["vendor_invoice_number"])),
		TaxRate7:            toNumber(raw["tax_rate_7"]),
		TaxAmount7:          toNumber(raw["tax_amount_7"]),
		TaxRate19:           toNumber(raw["tax_rate_19"]),
		TaxAmount19:         toNumber(raw["tax_amount_19"]),
		PaymentMethod:       strings.TrimSpace(toString(raw["payment_method"])),
		PaymentDate:         strings.TrimSpace(toString(raw["payment_date"])),
		PaymentStatus:       strings.TrimSpace(toString(raw["payment_status"])),
		ReverseCharge:       toBool(raw["reverse_charge"]),
		CostCenter:          strings.TrimSpace(toString(raw["cost_center"])),
		Project:             strings.TrimSpace(toString(raw["project"])),
		Description:         strings.TrimSpace(toString(raw["description"])),
		TextContent:         toString(raw["text_content"]),
		LineItems:           parseLineItems(raw["line_items"]),
		OCRScore:            toNumber(raw["ocr_score"]),
		OCRRationale:        strings.TrimSpace(toString(raw["ocr_rationale"])),
	}

	if net, ok := parseNumber(raw["net_amount"]); ok {
		data.NetAmount = &net
	}

	gross, grossOK := parseNumber(raw["gross_amount"])
	net := 0.0
	if data.NetAmount != nil {
		net = *data.NetAmount
	}
	taxSum := data.TaxAmount7 + data.TaxAmount19
	netPlusTax := net + taxSum

	switch {
	case (!grossOK || gross == 0) && net > 0 && netPlusTax > 0:
		derived := math.Round(netPlusTax*100) / 100
		data.GrossAmount = &derived
	case grossOK:
		data.GrossAmount = &gross
		if net > 0 && netPlusTax > 0 {
			if diff := math.Abs(netPlusTax - gross); diff > 0.05 {
				warnings = append(warnings, fmt.Sprintf("totals contradictory (net+tax vs gross, delta %.2f)", diff))
			}
		}
	}

	if len(warnings) > 0 {
		joined := strings.Join(warnings, " | ")
		if data.OCRRationale == "" {
			data.OCRRationale = joined
		} else {
			data.OCRRationale += " | " + joined
		}
	}
	return data
}

var (
	dayFirstDate  = regexp.MustCompile(`^(\d{1,2})[./-](\d{1,2})[./-](\d{2}|\d{4})$`)
	yearFirstDate = regexp.MustCompile(`^(\d{4})[./-](\d{1,2})[./-](\d{1,2})$`)
)

// parseDate returns the ISO date and whether any input was present.
// Accepts ISO, day-first German formats and two-digit years with a
// sliding window (00-29 is 20xx).
func parseDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if _, err := time.Parse("2006-01-02", raw); err == nil {
		return raw, true
	}

	if m := dayFirstDate.FindStringSubmatch(raw); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			if year < 30 {
				year += 2000
			} else {
				year += 1900
			}
		}
		return isoFromParts(year, month, day), true
	}
	if m := yearFirstDate.FindStringSubmatch(raw); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return isoFromParts(year, month, day), true
	}
	return "", true
}

func isoFromParts(year, month, day int) string {
	if year < 1900 || year > 2200 {
		return ""
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow, so 2025-02-31 silently becomes
	// March. Reject anything that moved.
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return ""
	}
	return date.Format("2006-01-02")
}

var currencyJunk = regexp.MustCompile(`[€$£¥\s]|(?i)EURO?`)

// parseNumber accepts numbers and numeric strings in both German
// ("1.234,56") and English ("1,234.56") notation.
func parseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		s := currencyJunk.ReplaceAllString(strings.TrimSpace(n), "")
		if s == "" {
			return 0, false
		}
		if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
			s = "-" + s[1:len(s)-1]
		}

		hasComma := strings.Contains(s, ",")
		hasDot := strings.Contains(s, ".")
		switch {
		case hasComma && hasDot:
			if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
				s = strings.ReplaceAll(s, ".", "")
				s = strings.Replace(s, ",", ".", 1)
			} else {
				s = strings.ReplaceAll(s, ",", "")
			}
		case hasComma:
			s = strings.Replace(s, ",", ".", 1)
		}

		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func toNumber(v any) float64 {
	n, _ := parseNumber(v)
	return n
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes", "ja":
			return true
		}
	case float64:
		return b != 0
	}
	return false
}

func parseLineItems(v any) []domain.LineItem {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		description := strings.TrimSpace(toString(entry["description"]))
		if description == "" {
			continue
		}
		li := domain.LineItem{Description: description}
		if amount, ok := parseNumber(entry["amount"]); ok {
			li.Amount = &amount
		}
		out = append(out, li)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
