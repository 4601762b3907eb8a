package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/stockgrader/internal/services/analysis"
	"github.com/ternarybob/stockgrader/internal/services/report"
)

// AnalysisHandler serves analysis, normalization, history and export
type AnalysisHandler struct {
	analysis *analysis.Service
	reports  *report.Service
	logger   arbor.ILogger
}

func NewAnalysisHandler(analysisService *analysis.Service, reports *report.Service, logger arbor.ILogger) *AnalysisHandler {
	return &AnalysisHandler{
		analysis: analysisService,
		reports:  reports,
		logger:   logger,
	}
}

// AnalyzeHandler handles POST /api/analyze
func (h *AnalysisHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req AnalyzeRequest
	if !DecodeRequest(w, r, &req) {
		return
	}

	result, err := h.analysis.Analyze(r.Context(), req.SessionID, req.CompanyName)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"session_id":  req.SessionID,
		"analysis_id": result.Record.ID,
		"analysis":    result.Record.Analysis,
		"grade_title": result.GradeTitle,
		"greeting":    result.Greeting,
	})
}

// NormalizeHandler handles POST /api/normalize: raw partial JSON in, normalized analysis out
func (h *AnalysisHandler) NormalizeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	normalized, err := h.analysis.Normalize(raw)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, normalized)
}

// ListHandler handles GET /api/analyses
func (h *AnalysisHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	records, err := h.analysis.List(r.Context(), GetLimitParam(r))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list analyses")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"count":    len(records),
		"analyses": records,
	})
}

// GetHandler handles GET /api/analyses/{id}
func (h *AnalysisHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	record, err := h.analysis.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, record)
}

// DeleteHandler handles DELETE /api/analyses/{id}
func (h *AnalysisHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.analysis.Delete(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      id,
	})
}

// ExportHandler handles GET /api/analyses/{id}/export?format=md|html|pdf|yaml|json
func (h *AnalysisHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.analysis.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	data, err := h.reports.Render(record, format)
	if err != nil {
		h.logger.Error().Err(err).Str("analysis_id", record.ID).Str("format", string(format)).Msg("Failed to export analysis")
		WriteError(w, http.StatusInternalServerError, "Failed to export analysis")
		return
	}

	filename := fmt.Sprintf("%s_%s.%s", record.Analysis.CompanyName, record.ID, format.Extension())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
