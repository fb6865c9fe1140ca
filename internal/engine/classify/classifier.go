package classify

import (
	"strings"

	"github.com/zoesolar/intake/internal/core/domain"
)

// technicalFailureMarkers are substrings in the model rationale that
// indicate an infrastructure failure rather than a bad document. Kept as
// a table so new markers can be added without touching control flow.
var technicalFailureMarkers = []string{
	"api key",
	"api_key",
	"quota",
	"rate limit",
	"http 4",
	"http 5",
	"payload too large",
	"file too large",
	"vision api error",
}

// reviewMarkers flag content-level ambiguity: OCR succeeded but a human
// should look at the result.
var reviewMarkers = []string{
	"date unclear",
	"ambiguous date",
	"totals contradictory",
	"contradictory totals",
}

// manualTemplateVendors mark placeholder records produced when the model
// returned nothing usable and a manual-entry template was substituted.
var manualTemplateVendors = []string{
	"manual entry",
}

const (
	defaultManualPrompt = "analysis failed, please fill in the fields manually"
	defaultReviewPrompt = "please verify the extracted data"
)

// Classifier maps extracted fields into completed/review/error. The
// review threshold separates "usable without human check" from "needs
// eyes"; it is policy, so it comes from configuration.
type Classifier struct {
	reviewScoreThreshold float64
}

func New(reviewScoreThreshold float64) *Classifier {
	if reviewScoreThreshold <= 0 {
		reviewScoreThreshold = 6
	}
	return &Classifier{reviewScoreThreshold: reviewScoreThreshold}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Classify is deterministic: equal input always yields the same outcome.
// Rules are evaluated in order, first match wins.
func (c *Classifier) Classify(data *domain.ExtractedData) domain.ClassificationOutcome {
	rationale := strings.ToLower(data.OCRRationale)
	description := strings.ToLower(data.Description)
	text := rationale
	if text == "" {
		text = description
	}

	if containsAny(text, technicalFailureMarkers) {
		msg := data.OCRRationale
		if msg == "" {
			msg = data.Description
		}
		if msg == "" {
			msg = defaultManualPrompt
		}
		return domain.ClassificationOutcome{Status: domain.StatusError, Error: msg}
	}

	gross, _ := data.Gross()
	manualTemplate := containsAny(strings.ToLower(data.VendorName), manualTemplateVendors) ||
		(data.OCRScore <= 0 && gross == 0)

	// Manual-template fallback with a technical marker present is already
	// covered above; what remains is a document the model could not read.
	if manualTemplate {
		msg := data.OCRRationale
		if msg == "" {
			msg = data.Description
		}
		if msg == "" {
			msg = defaultManualPrompt
		}
		return domain.ClassificationOutcome{Status: domain.StatusReviewNeeded, Error: msg}
	}

	if containsAny(rationale, reviewMarkers) || data.OCRScore < c.reviewScoreThreshold {
		msg := data.OCRRationale
		if msg == "" {
			msg = defaultReviewPrompt
		}
		return domain.ClassificationOutcome{Status: domain.StatusReviewNeeded, Error: msg}
	}

	return domain.ClassificationOutcome{Status: domain.StatusCompleted}
}
