package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/zoesolar/intake/internal/core/domain"
	"github.com/zoesolar/intake/internal/engine/classify"
	"github.com/zoesolar/intake/internal/engine/dedup"
	"github.com/zoesolar/intake/internal/engine/privacy"
	"github.com/zoesolar/intake/internal/engine/rules"
)

type repoFake struct {
	mu       sync.Mutex
	docs     map[string]*domain.DocumentRecord
	rules    map[string]domain.VendorRule
	settings *domain.Settings

	saveErr     error
	saveErrFor  string
	deleted     []string
	savedRules  []domain.VendorRule
	settingsErr error
}

func newRepoFake() *repoFake {
	return &repoFake{
		docs:  make(map[string]*domain.DocumentRecord),
		rules: make(map[string]domain.VendorRule),
	}
}

func (f *repoFake) Save(_ context.Context, doc *domain.DocumentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil && (f.saveErrFor == "" || f.saveErrFor == doc.ID) {
		return f.saveErr
	}
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *repoFake) GetByID(_ context.Context, id string) (*domain.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *repoFake) GetAll(_ context.Context) ([]*domain.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.docs))
	for id := range f.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*domain.DocumentRecord, 0, len(ids))
	for _, id := range ids {
		copyDoc := *f.docs[id]
		out = append(out, &copyDoc)
	}
	return out, nil
}

func (f *repoFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", errors.New(id))
	}
	delete(f.docs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *repoFake) GetVendorRule(_ context.Context, vendorName string) (*domain.VendorRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rule, ok := f.rules[vendorName]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get vendor rule", errors.New(vendorName))
	}
	return &rule, nil
}

func (f *repoFake) SaveVendorRule(_ context.Context, rule domain.VendorRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[rule.VendorName] = rule
	f.savedRules = append(f.savedRules, rule)
	return nil
}

func (f *repoFake) GetSettings(_ context.Context) (*domain.Settings, error) {
	if f.settingsErr != nil {
		return nil, f.settingsErr
	}
	if f.settings == nil {
		return &domain.Settings{ID: "global"}, nil
	}
	return f.settings, nil
}

type storageFake struct {
	mu      sync.Mutex
	files   map[string][]byte
	private map[string][]byte
	saveErr error
	openErr error
}

func newStorageFake() *storageFake {
	return &storageFake{
		files:   make(map[string][]byte),
		private: make(map[string][]byte),
	}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = content
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[key]
	if !ok {
		return nil, errors.New("no such key: " + key)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (f *storageFake) SavePrivate(_ context.Context, key string, data io.Reader) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.private[key] = content
	return nil
}

type queueFake struct {
	mu        sync.Mutex
	published [][]string
	err       error
}

func (f *queueFake) PublishBatchAccepted(_ context.Context, ids []string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, ids)
	return nil
}

func (f *queueFake) SubscribeBatchAccepted(context.Context, func(context.Context, []string) error) error {
	return nil
}

// visionFake answers by file content so concurrent batch tests can give
// every file its own extraction result.
type visionFake struct {
	mu      sync.Mutex
	results map[string]*domain.ExtractedData
	errs    map[string]error
	calls   int
}

func newVisionFake() *visionFake {
	return &visionFake{
		results: make(map[string]*domain.ExtractedData),
		errs:    make(map[string]error),
	}
}

func (f *visionFake) Analyze(_ context.Context, content []byte, _ string) (*domain.ExtractedData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[string(content)]; ok {
		return nil, err
	}
	if data, ok := f.results[string(content)]; ok {
		copyData := *data
		return &copyData, nil
	}
	return &domain.ExtractedData{OCRScore: 8}, nil
}

func floatPtr(v float64) *float64 { return &v }

// harness wires the real engine implementations around the port fakes,
// so orchestration tests exercise the same classification chain the
// worker runs in production.
type harness struct {
	repo    *repoFake
	storage *storageFake
	vision  *visionFake
	queue   *queueFake
}

func newHarness() *harness {
	return &harness{
		repo:    newRepoFake(),
		storage: newStorageFake(),
		vision:  newVisionFake(),
		queue:   &queueFake{},
	}
}

func (h *harness) batchUC() *ProcessBatchUseCase {
	return NewProcessBatchUseCase(
		h.repo,
		h.storage,
		h.vision,
		dedup.NewMatcher(dedup.DefaultConfig()),
		classify.New(0),
		rules.New(rules.Config{}),
		privacy.New(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func (h *harness) resolveUC() *ResolveUseCase {
	return NewResolveUseCase(
		h.repo,
		h.storage,
		h.vision,
		dedup.NewMatcher(dedup.DefaultConfig()),
		classify.New(0),
		rules.New(rules.Config{}),
		privacy.New(),
	)
}

// seed persists a resting document and its stored bytes.
func (h *harness) seed(doc *domain.DocumentRecord, content []byte) {
	if doc.StorageKey == "" {
		doc.StorageKey = doc.ID + "_" + doc.FileName
	}
	if content != nil {
		h.storage.files[doc.StorageKey] = content
		if doc.ContentHash == "" {
			doc.ContentHash = dedup.NewHasher().Hash(content)
		}
	}
	copyDoc := *doc
	h.repo.docs[doc.ID] = &copyDoc
}
