package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zoesolar/intake/internal/core/domain"
	"github.com/zoesolar/intake/internal/core/ports"
)

// Service produces SQL dumps and XLSX workbooks over a filtered slice of
// the document collection.
type Service struct {
	repo   ports.DocumentRepository
	logger *slog.Logger
}

func NewService(repo ports.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Filter restricts an export to a calendar year or month. The zero value
// exports everything.
type Filter struct {
	Year  int
	Month time.Month
}

// matches filters on the extracted document date and falls back to the
// upload time when no date was extracted.
func (f Filter) matches(doc *domain.DocumentRecord) bool {
	if f.Year == 0 {
		return true
	}
	when := doc.UploadedAt
	if doc.Data != nil && doc.Data.DocumentDate != "" {
		if parsed, err := time.Parse("2006-01-02", doc.Data.DocumentDate); err == nil {
			when = parsed
		}
	}
	if when.Year() != f.Year {
		return false
	}
	return f.Month == 0 || when.Month() == f.Month
}

func (s *Service) documents(ctx context.Context, filter Filter) ([]*domain.DocumentRecord, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	out := make([]*domain.DocumentRecord, 0, len(all))
	for _, doc := range all {
		if filter.matches(doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// ExportSQL returns a PostgreSQL dump of the filtered collection plus a
// suggested download filename.
func (s *Service) ExportSQL(ctx context.Context, filter Filter) ([]byte, string, error) {
	start := time.Now()
	docs, err := s.documents(ctx, filter)
	if err != nil {
		return nil, "", err
	}
	dump := BuildSQLDump(docs, time.Now().UTC())
	s.logger.Info("export.sql.ok", "rows", len(docs), "elapsed_ms", time.Since(start).Milliseconds())
	return dump, fmt.Sprintf("accounting_dump_%s.sql", time.Now().UTC().Format("2006-01-02")), nil
}

// ExportXLSX returns the filtered collection as an XLSX workbook plus a
// suggested download filename.
func (s *Service) ExportXLSX(ctx context.Context, filter Filter) ([]byte, string, error) {
	start := time.Now()
	docs, err := s.documents(ctx, filter)
	if err != nil {
		return nil, "", err
	}
	workbook, err := BuildWorkbook(docs)
	if err != nil {
		return nil, "", fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok", "rows", len(docs), "elapsed_ms", time.Since(start).Milliseconds())
	return workbook, fmt.Sprintf("accounting_export_%s.xlsx", time.Now().UTC().Format("2006-01-02")), nil
}
