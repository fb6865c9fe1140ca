package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zoesolar/intake/internal/core/domain"
	"github.com/zoesolar/intake/internal/core/ports"
	"github.com/zoesolar/intake/internal/export"
	"github.com/zoesolar/intake/internal/observability/metrics"
)

const maxBatchMemory = 32 << 20 // 32 MiB before multipart spills to disk

type Router struct {
	ingestUC ports.BatchIngestor
	resolver ports.DocumentResolver
	repo     ports.DocumentRepository
	exporter *export.Service
	logger   *slog.Logger

	metrics *metrics.HTTPServerMetrics
	service string
}

func NewRouter(
	ingestUC ports.BatchIngestor,
	resolver ports.DocumentResolver,
	repo ports.DocumentRepository,
	exporter *export.Service,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		ingestUC: ingestUC,
		resolver: resolver,
		repo:     repo,
		exporter: exporter,
		logger:   logger,
	}
}

// WithMetrics attaches the domain counters. Request-level metrics are
// still applied as middleware by the caller.
func (rt *Router) WithMetrics(service string, m *metrics.HTTPServerMetrics) *Router {
	rt.service = service
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/batches", rt.acceptBatch)
	mux.HandleFunc("/v1/documents", rt.listDocuments)
	mux.HandleFunc("/v1/documents/", rt.documentSubroute)
	mux.HandleFunc("/v1/documents/merge", rt.mergeDocuments)
	mux.HandleFunc("/v1/export/sql", rt.exportSQL)
	mux.HandleFunc("/v1/export/xlsx", rt.exportXLSX)
	return withRequestID(withAccessLog(rt.logger, mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) acceptBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if err := r.ParseMultipartForm(maxBatchMemory); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart body required"})
		return
	}

	var files []domain.BatchFile
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable file part"})
			return
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable file part"})
			return
		}
		files = append(files, domain.BatchFile{
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Content:  content,
		})
	}

	records, err := rt.ingestUC.AcceptBatch(r.Context(), files)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordBatchAccepted(rt.service, len(files))
	}
	writeJSON(w, http.StatusAccepted, records)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	docs, err := rt.repo.GetAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []*domain.DocumentRecord{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// documentSubroute dispatches /v1/documents/{id} and its nested actions.
func (rt *Router) documentSubroute(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			rt.getDocument(w, r, id)
		case http.MethodPut:
			rt.editDocument(w, r, id)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		}
	case "retry":
		rt.retryDocument(w, r, id)
	case "resolve":
		rt.resolveDocument(w, r, id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown action"})
	}
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := rt.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) editDocument(w http.ResponseWriter, r *http.Request, id string) {
	var data domain.ExtractedData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	doc, err := rt.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	doc.Data = &data
	if err := rt.resolver.SaveEdit(r.Context(), doc); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) retryDocument(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	doc, err := rt.resolver.Retry(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) resolveDocument(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	var doc *domain.DocumentRecord
	var err error
	switch req.Action {
	case "ignore":
		doc, err = rt.resolver.IgnoreDuplicate(r.Context(), id)
	case "mark_original":
		doc, err = rt.resolver.MarkAsOriginal(r.Context(), id)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "action must be 'ignore' or 'mark_original'"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordResolution(rt.service, req.Action)
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) mergeDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SourceID string `json:"source_id"`
		TargetID string `json:"target_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.SourceID == "" || req.TargetID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_id and target_id are required"})
		return
	}

	doc, err := rt.resolver.Merge(r.Context(), req.SourceID, req.TargetID)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordResolution(rt.service, "merge")
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) exportSQL(w http.ResponseWriter, r *http.Request) {
	rt.export(w, r, "application/sql", "sql", rt.exporter.ExportSQL)
}

func (rt *Router) exportXLSX(w http.ResponseWriter, r *http.Request) {
	rt.export(w, r, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx", rt.exporter.ExportXLSX)
}

func (rt *Router) export(
	w http.ResponseWriter,
	r *http.Request,
	contentType string,
	format string,
	run func(ctx context.Context, filter export.Filter) ([]byte, string, error),
) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	filter, err := parseExportFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	payload, filename, err := run(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordExport(rt.service, format)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func parseExportFilter(r *http.Request) (export.Filter, error) {
	var filter export.Filter
	if rawYear := r.URL.Query().Get("year"); rawYear != "" {
		year, err := strconv.Atoi(rawYear)
		if err != nil {
			return filter, errors.New("year must be numeric")
		}
		filter.Year = year
	}
	if rawMonth := r.URL.Query().Get("month"); rawMonth != "" {
		month, err := strconv.Atoi(rawMonth)
		if err != nil || month < 1 || month > 12 {
			return filter, errors.New("month must be 1..12")
		}
		if filter.Year == 0 {
			return filter, errors.New("month requires year")
		}
		filter.Month = time.Month(month)
	}
	return filter, nil
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
