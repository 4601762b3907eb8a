package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/stockgrader/internal/services/chat"
)

// SessionHandler creates sessions and serves their transcripts
type SessionHandler struct {
	sessions *chat.Manager
	logger   arbor.ILogger
}

func NewSessionHandler(sessions *chat.Manager, logger arbor.ILogger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// CreateHandler handles POST /api/sessions
func (h *SessionHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	session := h.sessions.Create()
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success":    true,
		"session_id": session.ID,
	})
}

// MessagesHandler handles GET /api/sessions/{id}/messages
func (h *SessionHandler) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := r.PathValue("id")
	messages, err := h.sessions.Transcript(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	response := map[string]interface{}{
		"success":    true,
		"session_id": id,
		"messages":   messages,
	}
	if session, err := h.sessions.Get(id); err == nil {
		response["analysis_id"] = session.AnalysisID()
		response["company_name"] = session.CompanyName()
		response["analyzing"] = session.Analyzing()
	}
	WriteJSON(w, http.StatusOK, response)
}
