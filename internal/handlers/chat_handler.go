package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/stockgrader/internal/services/chat"
)

// ChatHandler streams chat replies over Server-Sent Events
type ChatHandler struct {
	sessions *chat.Manager
	logger   arbor.ILogger
}

func NewChatHandler(sessions *chat.Manager, logger arbor.ILogger) *ChatHandler {
	return &ChatHandler{sessions: sessions, logger: logger}
}

// StreamHandler handles POST /api/chat/stream.
// Emits fragment events, then one done or error event.
func (h *ChatHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req ChatRequest
	if !DecodeRequest(w, r, &req) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	events, err := h.sessions.Send(r.Context(), req.SessionID, req.Message)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range events {
		if err := h.sendEvent(w, flusher, string(event.Type), map[string]string{"text": event.Text}); err != nil {
			h.logger.Debug().Err(err).Str("session_id", req.SessionID).Msg("Chat stream client disconnected")
			return
		}
	}
}

func (h *ChatHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
