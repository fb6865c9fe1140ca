package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/zoesolar/intake/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, file_name, file_type, storage_key").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansDuplicateLinkage(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "file_name", "file_type", "storage_key", "uploaded_at", "status", "data",
		"content_hash", "error_message", "duplicate_of_id", "duplicate_reason",
		"duplicate_confidence", "attachments", "updated_at",
	}).AddRow(
		"doc-1", "a.pdf", "application/pdf", "doc-1_a.pdf", now, "duplicate",
		[]byte(`{"vendor_name":"Hetzner","ocr_score":9}`),
		"abc123", "", "doc-0", "identical file content", 1.0, []byte(`[]`), now,
	)
	mock.ExpectQuery("SELECT id, file_name, file_type, storage_key").
		WithArgs("doc-1").
		WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Status != domain.StatusDuplicate {
		t.Errorf("status = %s", doc.Status)
	}
	if doc.DuplicateOfID != "doc-0" || doc.DuplicateConfidence != 1.0 {
		t.Errorf("linkage = %q/%v", doc.DuplicateOfID, doc.DuplicateConfidence)
	}
	if doc.Data == nil || doc.Data.VendorName != "Hetzner" {
		t.Errorf("data = %+v", doc.Data)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveUpsertsDocument(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			"doc-1", "a.pdf", "application/pdf", "doc-1_a.pdf", now, "processing",
			nil, "abc123", "", "", "", 0.0, sqlmock.AnyArg(), now,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), &domain.DocumentRecord{
		ID:          "doc-1",
		FileName:    "a.pdf",
		FileType:    "application/pdf",
		StorageKey:  "doc-1_a.pdf",
		UploadedAt:  now,
		Status:      domain.StatusProcessing,
		ContentHash: "abc123",
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM documents").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetVendorRuleReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT vendor_name, account_id, tax_category").
		WithArgs("unknownvendor").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetVendorRule(context.Background(), "unknownvendor")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetSettingsDefaultsWhenUnset(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, tax_categories").
		WillReturnError(sql.ErrNoRows)

	settings, err := repo.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if settings.ID != "global" || len(settings.TaxCategories) != 0 {
		t.Errorf("settings = %+v", settings)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
