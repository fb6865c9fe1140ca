package usecase

import (
	"bytes"
	"context"
	"time"

	"github.com/zoesolar/intake/internal/core/domain"
	"github.com/zoesolar/intake/internal/core/ports"
	"github.com/zoesolar/intake/internal/engine/dedup"
	"github.com/zoesolar/intake/internal/engine/rules"
)

// pipeline runs the per-document classification chain: exact-hash check,
// vision analysis, semantic duplicate matching, private detection,
// outcome classification and rule application. It never mutates the
// snapshot it compares against.
type pipeline struct {
	repo       ports.DocumentRepository
	storage    ports.ObjectStorage
	vision     ports.VisionService
	matcher    ports.DuplicateMatcher
	classifier ports.OutcomeClassifier
	rules      ports.RuleEngine
	private    ports.PrivateDetector
}

// process takes a document in StatusProcessing plus its file bytes and
// returns the same record moved to its resting state. Any failure is
// converted into an error-status record; it never returns a Go error so
// one bad file cannot abort sibling tasks.
func (p *pipeline) process(
	ctx context.Context,
	doc *domain.DocumentRecord,
	content []byte,
	snapshot []*domain.DocumentRecord,
	settings *domain.Settings,
) *domain.DocumentRecord {
	out := *doc
	out.UpdatedAt = time.Now().UTC()

	// Exact duplicate short-circuits everything, including the OCR call.
	for _, existing := range snapshot {
		if existing.ContentHash != "" && existing.ContentHash == out.ContentHash {
			_ = out.Transition(domain.StatusDuplicate)
			out.DuplicateOfID = existing.ID
			out.DuplicateReason = dedup.ReasonIdenticalContent
			out.DuplicateConfidence = 1
			return &out
		}
	}

	data, err := p.vision.Analyze(ctx, content, out.FileType)
	if err != nil {
		_ = out.Transition(domain.StatusError)
		out.Error = err.Error()
		return &out
	}
	out.Data = data

	if match := p.matcher.FindDuplicate(data, snapshot); match != nil {
		_ = out.Transition(domain.StatusDuplicate)
		out.DuplicateOfID = match.Document.ID
		out.DuplicateReason = match.Reason
		out.DuplicateConfidence = match.Confidence
		return &out
	}

	if check := p.private.Detect(data); check.IsPrivate {
		data.PrivatePortion = true
		if err := p.storage.SavePrivate(ctx, out.StorageKey, bytes.NewReader(content)); err != nil {
			_ = out.Transition(domain.StatusError)
			out.Error = err.Error()
			return &out
		}
		_ = out.Transition(domain.StatusPrivate)
		out.Error = check.Reason
		return &out
	}

	outcome := p.classifier.Classify(data)
	if outcome.Status != domain.StatusError {
		out.Data = p.rules.Apply(data, snapshot, settings, p.vendorOverride(ctx, data.VendorName))
	}

	_ = out.Transition(outcome.Status)
	out.Error = outcome.Error
	return &out
}

// vendorOverride looks up a learned rule; lookup failures fall back to
// the generic heuristics.
func (p *pipeline) vendorOverride(ctx context.Context, vendorName string) *domain.VendorRule {
	if vendorName == "" {
		return nil
	}
	rule, err := p.repo.GetVendorRule(ctx, rules.NormalizeVendor(vendorName))
	if err != nil {
		return nil
	}
	return rule
}
