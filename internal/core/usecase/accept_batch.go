package usecase

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zoesolar/intake/internal/core/domain"
	"github.com/zoesolar/intake/internal/core/ports"
)

// AcceptBatchUseCase is the API-side half of batch ingestion: hash and
// store every file, publish placeholder records so progress is visible
// before any OCR call, then hand the batch to the worker.
type AcceptBatchUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	hasher  ports.ContentHasher
}

func NewAcceptBatchUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	hasher ports.ContentHasher,
) *AcceptBatchUseCase {
	return &AcceptBatchUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		hasher:  hasher,
	}
}

func (uc *AcceptBatchUseCase) AcceptBatch(ctx context.Context, files []domain.BatchFile) ([]*domain.DocumentRecord, error) {
	if len(files) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "accept batch", fmt.Errorf("empty batch"))
	}

	now := time.Now().UTC()
	records := make([]*domain.DocumentRecord, 0, len(files))
	ids := make([]string, 0, len(files))

	for _, file := range files {
		id := file.ID
		if id == "" {
			id = uuid.NewString()
		}
		storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(file.Name))

		if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(file.Content)); err != nil {
			return nil, fmt.Errorf("save file to object storage: %w", err)
		}

		doc := &domain.DocumentRecord{
			ID:          id,
			FileName:    file.Name,
			FileType:    file.MimeType,
			StorageKey:  storageKey,
			UploadedAt:  now,
			Status:      domain.StatusProcessing,
			ContentHash: uc.hasher.Hash(file.Content),
			UpdatedAt:   now,
		}
		if err := uc.repo.Save(ctx, doc); err != nil {
			return nil, fmt.Errorf("publish placeholder record: %w", err)
		}

		records = append(records, doc)
		ids = append(ids, id)
	}

	if err := uc.queue.PublishBatchAccepted(ctx, ids); err != nil {
		return nil, fmt.Errorf("publish batch event: %w", err)
	}
	return records, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
