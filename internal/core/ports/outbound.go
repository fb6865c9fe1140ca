package ports

import (
	"context"
	"io"

	"github.com/zoesolar/intake/internal/core/domain"
)

// DocumentRepository persists and reads document state. Saves are
// idempotent per id (re-saving overwrites).
type DocumentRepository interface {
	Save(ctx context.Context, doc *domain.DocumentRecord) error
	GetByID(ctx context.Context, id string) (*domain.DocumentRecord, error)
	GetAll(ctx context.Context) ([]*domain.DocumentRecord, error)
	Delete(ctx context.Context, id string) error

	GetVendorRule(ctx context.Context, vendorName string) (*domain.VendorRule, error)
	SaveVendorRule(ctx context.Context, rule domain.VendorRule) error

	GetSettings(ctx context.Context) (*domain.Settings, error)
}

// ObjectStorage stores original file bytes. Private documents are kept
// under a separate subtree.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	SavePrivate(ctx context.Context, key string, data io.Reader) error
}

// MessageQueue hands accepted batches from the API to the worker.
type MessageQueue interface {
	PublishBatchAccepted(ctx context.Context, documentIDs []string) error
	SubscribeBatchAccepted(ctx context.Context, handler func(context.Context, []string) error) error
}

// VisionService analyzes one document image/PDF and returns normalized
// extracted fields. There is no built-in retry; retries are user-triggered.
type VisionService interface {
	Analyze(ctx context.Context, content []byte, mimeType string) (*domain.ExtractedData, error)
}

// ContentHasher computes a collision-resistant content digest used for
// exact-duplicate detection.
type ContentHasher interface {
	Hash(content []byte) string
}

// OutcomeClassifier maps extracted fields into completed/review/error.
type OutcomeClassifier interface {
	Classify(data *domain.ExtractedData) domain.ClassificationOutcome
}

// DuplicateMatcher scores a candidate against previously ingested
// documents and returns the first match above threshold, if any.
type DuplicateMatcher interface {
	FindDuplicate(data *domain.ExtractedData, existing []*domain.DocumentRecord) *domain.DuplicateMatch
}

// RuleEngine enriches extracted data with account/tax assignments and an
// internal document number. Deterministic for equal inputs; a vendor
// override takes precedence over the generic heuristics.
type RuleEngine interface {
	Apply(data *domain.ExtractedData, prior []*domain.DocumentRecord, settings *domain.Settings, override *domain.VendorRule) *domain.ExtractedData
}

// PrivateDetector decides whether a document belongs to private storage.
type PrivateDetector interface {
	Detect(data *domain.ExtractedData) domain.PrivateCheck
}
