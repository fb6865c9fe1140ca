package ports

import (
	"context"

	"github.com/zoesolar/intake/internal/core/domain"
)

// BatchIngestor accepts uploaded files, publishes placeholder records and
// hands the batch to the processor.
type BatchIngestor interface {
	AcceptBatch(ctx context.Context, files []domain.BatchFile) ([]*domain.DocumentRecord, error)
}

// BatchProcessor runs the classification pipeline over an accepted batch.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, documentIDs []string) (*domain.BatchSummary, error)
}

// DocumentResolver covers the manual lifecycle operations: duplicate
// resolution, merge, retry and user edits.
type DocumentResolver interface {
	IgnoreDuplicate(ctx context.Context, id string) (*domain.DocumentRecord, error)
	MarkAsOriginal(ctx context.Context, id string) (*domain.DocumentRecord, error)
	Merge(ctx context.Context, sourceID, targetID string) (*domain.DocumentRecord, error)
	Retry(ctx context.Context, id string) (*domain.DocumentRecord, error)
	SaveEdit(ctx context.Context, doc *domain.DocumentRecord) error
}
