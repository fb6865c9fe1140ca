package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/zoesolar/intake/internal/core/domain"
	"github.com/zoesolar/intake/internal/engine/dedup"
)

func TestAcceptBatchCreatesPlaceholders(t *testing.T) {
	h := newHarness()
	uc := NewAcceptBatchUseCase(h.repo, h.storage, h.queue, dedup.NewHasher())

	files := []domain.BatchFile{
		{Name: "march invoice.pdf", MimeType: "application/pdf", Content: []byte("pdf bytes")},
		{Name: "receipt.jpg", MimeType: "image/jpeg", Content: []byte("jpg bytes")},
	}
	records, err := uc.AcceptBatch(context.Background(), files)
	if err != nil {
		t.Fatalf("AcceptBatch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	for i, rec := range records {
		if rec.ID == "" {
			t.Fatalf("record %d has no id", i)
		}
		if rec.Status != domain.StatusProcessing {
			t.Errorf("record %d status = %s, want %s", i, rec.Status, domain.StatusProcessing)
		}
		if want := dedup.NewHasher().Hash(files[i].Content); rec.ContentHash != want {
			t.Errorf("record %d hash = %q, want %q", i, rec.ContentHash, want)
		}
		stored, ok := h.repo.docs[rec.ID]
		if !ok {
			t.Fatalf("record %d not persisted", i)
		}
		if stored.Status != domain.StatusProcessing {
			t.Errorf("persisted record %d status = %s", i, stored.Status)
		}
		if _, ok := h.storage.files[rec.StorageKey]; !ok {
			t.Errorf("record %d file not in object storage under %q", i, rec.StorageKey)
		}
	}

	if len(h.queue.published) != 1 {
		t.Fatalf("published events = %d, want 1", len(h.queue.published))
	}
	ids := h.queue.published[0]
	if len(ids) != 2 || ids[0] != records[0].ID || ids[1] != records[1].ID {
		t.Errorf("published ids = %v", ids)
	}
}

func TestAcceptBatchEmpty(t *testing.T) {
	h := newHarness()
	uc := NewAcceptBatchUseCase(h.repo, h.storage, h.queue, dedup.NewHasher())

	if _, err := uc.AcceptBatch(context.Background(), nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want %v", err, domain.ErrInvalidInput)
	}
	if len(h.queue.published) != 0 {
		t.Error("event published for empty batch")
	}
}

func TestAcceptBatchStorageFailure(t *testing.T) {
	h := newHarness()
	h.storage.saveErr = errors.New("disk full")
	uc := NewAcceptBatchUseCase(h.repo, h.storage, h.queue, dedup.NewHasher())

	_, err := uc.AcceptBatch(context.Background(), []domain.BatchFile{
		{Name: "a.pdf", MimeType: "application/pdf", Content: []byte("x")},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(h.queue.published) != 0 {
		t.Error("event published despite storage failure")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"march invoice.pdf", "march_invoice.pdf"},
		{"../../etc/passwd", "passwd"},
		{"Rechnung (Kopie).pdf", "Rechnung__Kopie_.pdf"},
		{"ümläut.pdf", "_ml_ut.pdf"},
		{"", "document.bin"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
