package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/zoesolar/intake/internal/core/domain"
	"github.com/zoesolar/intake/internal/core/ports"
)

// ProcessBatchUseCase is the worker-side orchestrator. One immutable
// snapshot of the known collection is taken before fan-out and shared
// read-only by every per-file task; results are folded back in only
// after all tasks finish. Two files inside the same batch are therefore
// never matched against each other, only against documents that existed
// before the batch started.
type ProcessBatchUseCase struct {
	pipe   pipeline
	logger *slog.Logger
}

func NewProcessBatchUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	vision ports.VisionService,
	matcher ports.DuplicateMatcher,
	classifier ports.OutcomeClassifier,
	ruleEngine ports.RuleEngine,
	private ports.PrivateDetector,
	logger *slog.Logger,
) *ProcessBatchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessBatchUseCase{
		pipe: pipeline{
			repo:       repo,
			storage:    storage,
			vision:     vision,
			matcher:    matcher,
			classifier: classifier,
			rules:      ruleEngine,
			private:    private,
		},
		logger: logger,
	}
}

func (uc *ProcessBatchUseCase) ProcessBatch(ctx context.Context, documentIDs []string) (*domain.BatchSummary, error) {
	if len(documentIDs) == 0 {
		return &domain.BatchSummary{}, nil
	}

	settings, err := uc.pipe.repo.GetSettings(ctx)
	if err != nil {
		uc.logger.Warn("batch.settings_unavailable", "err", err)
		settings = nil
	}

	snapshot, err := uc.snapshot(ctx, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("take collection snapshot: %w", err)
	}

	type task struct {
		doc     *domain.DocumentRecord
		content []byte
	}
	tasks := make([]task, 0, len(documentIDs))
	results := make([]*domain.DocumentRecord, len(documentIDs))

	for i, id := range documentIDs {
		doc, err := uc.pipe.repo.GetByID(ctx, id)
		if err != nil {
			uc.logger.Error("batch.load_failed", "document_id", id, "err", err)
			continue
		}
		content, err := uc.readContent(ctx, doc.StorageKey)
		if err != nil {
			_ = doc.Transition(domain.StatusError)
			doc.Error = err.Error()
			results[i] = doc
			continue
		}
		tasks = append(tasks, task{doc: doc, content: content})
	}

	// Fan out. All per-file tasks are launched together and awaited
	// jointly; a failure in one task never aborts its siblings.
	var wg sync.WaitGroup
	for _, t := range tasks {
		idx := indexOf(documentIDs, t.doc.ID)
		if idx < 0 {
			continue
		}
		wg.Add(1)
		go func(t task, idx int) {
			defer wg.Done()
			results[idx] = uc.pipe.process(ctx, t.doc, t.content, snapshot, settings)
		}(t, idx)
	}
	wg.Wait()

	// Fold in. Persistence is per record with no cross-record
	// transaction; a failed save is logged and the batch continues.
	summary := &domain.BatchSummary{}
	for _, doc := range results {
		if doc == nil {
			continue
		}
		if err := uc.pipe.repo.Save(ctx, doc); err != nil {
			uc.logger.Error("batch.save_failed", "document_id", doc.ID, "err", err)
		}
		summary.Count(doc.Status)
		uc.logger.Info("batch.document_done",
			"document_id", doc.ID,
			"status", string(doc.Status),
		)
	}
	return summary, nil
}

// snapshot returns the comparison base for the whole batch: every
// persisted document that is not part of the batch itself and not a
// placeholder of another in-flight batch.
func (uc *ProcessBatchUseCase) snapshot(ctx context.Context, batchIDs []string) ([]*domain.DocumentRecord, error) {
	all, err := uc.pipe.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	inBatch := make(map[string]bool, len(batchIDs))
	for _, id := range batchIDs {
		inBatch[id] = true
	}
	snapshot := make([]*domain.DocumentRecord, 0, len(all))
	for _, doc := range all {
		if inBatch[doc.ID] || doc.Status == domain.StatusProcessing {
			continue
		}
		snapshot = append(snapshot, doc)
	}
	return snapshot, nil
}

func (uc *ProcessBatchUseCase) readContent(ctx context.Context, key string) ([]byte, error) {
	rc, err := uc.pipe.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open stored file: %w", err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read stored file: %w", err)
	}
	return content, nil
}

func indexOf(ids []string, id string) int {
	for i, candidate := range ids {
		if candidate == id {
			return i
		}
	}
	return -1
}
