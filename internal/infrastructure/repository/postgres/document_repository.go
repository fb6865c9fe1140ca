package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/zoesolar/intake/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026030501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	file_type TEXT NOT NULL,
	storage_key TEXT NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	data JSONB,
	content_hash TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	duplicate_of_id TEXT NOT NULL DEFAULT '',
	duplicate_reason TEXT NOT NULL DEFAULT '',
	duplicate_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	attachments JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_content_hash ON documents(content_hash);
CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents(uploaded_at DESC);

CREATE TABLE IF NOT EXISTS vendor_rules (
	vendor_name TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	tax_category TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	id TEXT PRIMARY KEY,
	tax_categories JSONB NOT NULL DEFAULT '[]'::jsonb
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Save upserts: the same statement covers the placeholder insert at
// ingestion time and every later status update.
func (r *DocumentRepository) Save(ctx context.Context, doc *domain.DocumentRecord) error {
	var dataJSON any
	if doc.Data != nil {
		raw, err := json.Marshal(doc.Data)
		if err != nil {
			return fmt.Errorf("marshal extracted data: %w", err)
		}
		dataJSON = raw
	}
	attachments := doc.Attachments
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	attachmentsJSON, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, file_name, file_type, storage_key, uploaded_at, status, data, content_hash,
	error_message, duplicate_of_id, duplicate_reason, duplicate_confidence, attachments, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	data = EXCLUDED.data,
	content_hash = EXCLUDED.content_hash,
	error_message = EXCLUDED.error_message,
	duplicate_of_id = EXCLUDED.duplicate_of_id,
	duplicate_reason = EXCLUDED.duplicate_reason,
	duplicate_confidence = EXCLUDED.duplicate_confidence,
	attachments = EXCLUDED.attachments,
	updated_at = EXCLUDED.updated_at
`,
		doc.ID, doc.FileName, doc.FileType, doc.StorageKey, doc.UploadedAt, string(doc.Status),
		dataJSON, doc.ContentHash, doc.Error, doc.DuplicateOfID, doc.DuplicateReason,
		doc.DuplicateConfidence, attachmentsJSON, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

const documentColumns = `id, file_name, file_type, storage_key, uploaded_at, status, data, content_hash,
	error_message, duplicate_of_id, duplicate_reason, duplicate_confidence, attachments, updated_at`

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) GetAll(ctx context.Context) ([]*domain.DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
ORDER BY uploaded_at DESC, id
`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.DocumentRecord
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *DocumentRepository) GetVendorRule(ctx context.Context, vendorName string) (*domain.VendorRule, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT vendor_name, account_id, tax_category, updated_at
FROM vendor_rules
WHERE vendor_name = $1
`, vendorName)

	var rule domain.VendorRule
	err := row.Scan(&rule.VendorName, &rule.AccountID, &rule.TaxCategory, &rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get vendor rule", fmt.Errorf("vendor %s", vendorName))
		}
		return nil, fmt.Errorf("scan vendor rule: %w", err)
	}
	return &rule, nil
}

func (r *DocumentRepository) SaveVendorRule(ctx context.Context, rule domain.VendorRule) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO vendor_rules (vendor_name, account_id, tax_category, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (vendor_name) DO UPDATE SET
	account_id = EXCLUDED.account_id,
	tax_category = EXCLUDED.tax_category,
	updated_at = EXCLUDED.updated_at
`, rule.VendorName, rule.AccountID, rule.TaxCategory, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save vendor rule: %w", err)
	}
	return nil
}

// GetSettings returns stored settings, or defaults when none were saved.
func (r *DocumentRepository) GetSettings(ctx context.Context) (*domain.Settings, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, tax_categories
FROM settings
WHERE id = 'global'
`)

	var settings domain.Settings
	var categoriesRaw []byte
	err := row.Scan(&settings.ID, &categoriesRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.Settings{ID: "global"}, nil
		}
		return nil, fmt.Errorf("scan settings: %w", err)
	}
	if err := json.Unmarshal(categoriesRaw, &settings.TaxCategories); err != nil {
		return nil, fmt.Errorf("unmarshal tax categories: %w", err)
	}
	return &settings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.DocumentRecord, error) {
	var doc domain.DocumentRecord
	var status string
	var dataRaw, attachmentsRaw []byte

	err := row.Scan(
		&doc.ID, &doc.FileName, &doc.FileType, &doc.StorageKey, &doc.UploadedAt, &status,
		&dataRaw, &doc.ContentHash, &doc.Error, &doc.DuplicateOfID, &doc.DuplicateReason,
		&doc.DuplicateConfidence, &attachmentsRaw, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	if len(dataRaw) > 0 {
		doc.Data = &domain.ExtractedData{}
		if err := json.Unmarshal(dataRaw, doc.Data); err != nil {
			return nil, fmt.Errorf("unmarshal extracted data: %w", err)
		}
	}
	if len(attachmentsRaw) > 0 {
		if err := json.Unmarshal(attachmentsRaw, &doc.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}
