package handlers

import (
	"context"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/stockgrader/internal/common"
	"github.com/ternarybob/stockgrader/internal/services/analysis"
	"github.com/ternarybob/stockgrader/internal/services/chat"
)

type APIHandler struct {
	analysis *analysis.Service
	sessions *chat.Manager
	logger   arbor.ILogger
}

func NewAPIHandler(analysisService *analysis.Service, sessions *chat.Manager, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		analysis: analysisService,
		sessions: sessions,
		logger:   logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}

// HealthHandler returns health check status
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status := map[string]interface{}{
		"status":   "ok",
		"sessions": h.sessions.Count(),
	}

	provider := h.analysis.Provider()
	status["provider"] = provider.Name()
	status["model"] = provider.Model()

	count, err := h.analysis.Count(context.WithoutCancel(r.Context()))
	if err != nil {
		h.logger.Warn().Err(err).Msg("Health check could not count analyses")
		status["status"] = "degraded"
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	status["analyses"] = count

	WriteJSON(w, http.StatusOK, status)
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"success": false,
		"error":   "Not Found",
		"path":    r.URL.Path,
	})
}
