package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/zoesolar/intake/internal/core/domain"
	"github.com/zoesolar/intake/internal/core/ports"
	"github.com/zoesolar/intake/internal/engine/rules"
)

// ResolveUseCase covers the manual lifecycle operations: duplicate
// resolution, merge, retry-OCR and user edits with vendor-rule learning.
type ResolveUseCase struct {
	pipe pipeline
}

func NewResolveUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	vision ports.VisionService,
	matcher ports.DuplicateMatcher,
	classifier ports.OutcomeClassifier,
	ruleEngine ports.RuleEngine,
	private ports.PrivateDetector,
) *ResolveUseCase {
	return &ResolveUseCase{
		pipe: pipeline{
			repo:       repo,
			storage:    storage,
			vision:     vision,
			matcher:    matcher,
			classifier: classifier,
			rules:      ruleEngine,
			private:    private,
		},
	}
}

// IgnoreDuplicate keeps the document as its own record for review; the
// duplicate linkage is cleared by the lifecycle transition.
func (uc *ResolveUseCase) IgnoreDuplicate(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	return uc.resolveDuplicate(ctx, id)
}

// MarkAsOriginal is the same transition with different user intent: the
// flagged document, not the matched one, is the one to keep.
func (uc *ResolveUseCase) MarkAsOriginal(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	return uc.resolveDuplicate(ctx, id)
}

func (uc *ResolveUseCase) resolveDuplicate(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	doc, err := uc.pipe.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if err := doc.Transition(domain.StatusReviewNeeded); err != nil {
		return nil, err
	}
	doc.UpdatedAt = time.Now().UTC()
	if err := uc.pipe.repo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save resolved document: %w", err)
	}
	return doc, nil
}

// Merge absorbs the source document into the target: the source itself
// becomes a synthetic attachment, its attachments follow, the target is
// persisted and the source deleted. All-or-nothing: precondition
// violations leave both records untouched.
func (uc *ResolveUseCase) Merge(ctx context.Context, sourceID, targetID string) (*domain.DocumentRecord, error) {
	if sourceID == targetID {
		return nil, domain.WrapError(domain.ErrInvalidInput, "merge", fmt.Errorf("source and target are the same document"))
	}

	source, err := uc.pipe.repo.GetByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("load merge source: %w", err)
	}
	target, err := uc.pipe.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("load merge target: %w", err)
	}

	if !source.Mergeable() {
		return nil, domain.WrapError(domain.ErrMergePrecondition, "merge",
			fmt.Errorf("source has status %s, resolve it first", source.Status))
	}
	if !target.Mergeable() {
		return nil, domain.WrapError(domain.ErrMergePrecondition, "merge",
			fmt.Errorf("target has status %s, resolve it first", target.Status))
	}

	synthetic := domain.Attachment{
		ID:       uuid.NewString(),
		Name:     source.FileName,
		MimeType: source.FileType,
		Key:      source.StorageKey,
	}
	attachments := make([]domain.Attachment, 0, len(target.Attachments)+1+len(source.Attachments))
	attachments = append(attachments, target.Attachments...)
	attachments = append(attachments, synthetic)
	attachments = append(attachments, source.Attachments...)
	target.Attachments = attachments
	target.UpdatedAt = time.Now().UTC()

	if err := uc.pipe.repo.Save(ctx, target); err != nil {
		return nil, fmt.Errorf("save merge target: %w", err)
	}
	if err := uc.pipe.repo.Delete(ctx, sourceID); err != nil {
		return nil, fmt.Errorf("delete merge source: %w", err)
	}
	return target, nil
}

// Retry re-enters processing and reruns the whole pipeline for a single
// document against the current collection. Duplicates cannot be retried
// directly; they must be resolved first.
func (uc *ResolveUseCase) Retry(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	doc, err := uc.pipe.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if err := doc.Transition(domain.StatusProcessing); err != nil {
		return nil, err
	}
	doc.Error = ""
	doc.UpdatedAt = time.Now().UTC()
	if err := uc.pipe.repo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save processing state: %w", err)
	}

	content, err := uc.readContent(ctx, doc.StorageKey)
	if err != nil {
		_ = doc.Transition(domain.StatusError)
		doc.Error = err.Error()
		if saveErr := uc.pipe.repo.Save(ctx, doc); saveErr != nil {
			return nil, fmt.Errorf("%w; save error state: %v", err, saveErr)
		}
		return doc, nil
	}

	settings, err := uc.pipe.repo.GetSettings(ctx)
	if err != nil {
		settings = nil
	}
	snapshot, err := uc.snapshotExcluding(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("take collection snapshot: %w", err)
	}

	result := uc.pipe.process(ctx, doc, content, snapshot, settings)
	if err := uc.pipe.repo.Save(ctx, result); err != nil {
		return nil, fmt.Errorf("save retried document: %w", err)
	}
	return result, nil
}

// SaveEdit persists a user correction. When the correction carries a
// vendor plus account and tax category, the combination is learned as a
// vendor rule for future ingestions.
func (uc *ResolveUseCase) SaveEdit(ctx context.Context, doc *domain.DocumentRecord) error {
	doc.UpdatedAt = time.Now().UTC()
	if err := uc.pipe.repo.Save(ctx, doc); err != nil {
		return fmt.Errorf("save document edit: %w", err)
	}

	d := doc.Data
	if d == nil || d.VendorName == "" || d.DebitAccount == "" || d.TaxCategory == "" {
		return nil
	}
	rule := domain.VendorRule{
		VendorName:  rules.NormalizeVendor(d.VendorName),
		AccountID:   d.DebitAccount,
		TaxCategory: d.TaxCategory,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := uc.pipe.repo.SaveVendorRule(ctx, rule); err != nil {
		return fmt.Errorf("save vendor rule: %w", err)
	}
	return nil
}

func (uc *ResolveUseCase) snapshotExcluding(ctx context.Context, id string) ([]*domain.DocumentRecord, error) {
	all, err := uc.pipe.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := make([]*domain.DocumentRecord, 0, len(all))
	for _, doc := range all {
		if doc.ID == id || doc.Status == domain.StatusProcessing {
			continue
		}
		snapshot = append(snapshot, doc)
	}
	return snapshot, nil
}

func (uc *ResolveUseCase) readContent(ctx context.Context, key string) ([]byte, error) {
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
