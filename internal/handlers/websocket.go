package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/stockgrader/internal/common"
	"github.com/ternarybob/stockgrader/internal/services/chat"
)

// ErrTooManyMessages is sent when a connection exceeds its message rate
const ErrTooManyMessages = "메시지를 너무 빠르게 보내고 있습니다. 잠시 후 다시 시도해주세요."

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSocketHandler serves bidirectional chat on /ws/chat
type WebSocketHandler struct {
	sessions *chat.Manager
	rate     rate.Limit
	burst    int
	logger   arbor.ILogger
}

func NewWebSocketHandler(sessions *chat.Manager, config *common.ChatConfig, logger arbor.ILogger) *WebSocketHandler {
	limit := rate.Limit(config.MessageRate)
	if config.MessageRate <= 0 {
		limit = rate.Inf
	}
	burst := config.MessageBurst
	if burst <= 0 {
		burst = 1
	}
	return &WebSocketHandler{
		sessions: sessions,
		rate:     limit,
		burst:    burst,
		logger:   logger,
	}
}

// HandleChat handles GET /ws/chat?session_id=
func (h *WebSocketHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if _, err := h.sessions.Get(sessionID); err != nil {
		WriteServiceError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := rate.NewLimiter(h.rate, h.burst)
	h.logger.Debug().Str("session_id", sessionID).Msg("Chat websocket connected")

	for {
		var msg wsChatMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Chat websocket read failed")
			}
			return
		}

		if !limiter.Allow() {
			if err := h.write(conn, chat.Event{Type: chat.EventError, Text: ErrTooManyMessages}); err != nil {
				return
			}
			continue
		}

		events, err := h.sessions.Send(ctx, sessionID, msg.Message)
		if err != nil {
			if err := h.write(conn, chat.Event{Type: chat.EventError, Text: err.Error()}); err != nil {
				return
			}
			continue
		}

		for event := range events {
			if err := h.write(conn, event); err != nil {
				h.logger.Debug().Err(err).Str("session_id", sessionID).Msg("Chat websocket write failed")
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, event chat.Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(event)
}
