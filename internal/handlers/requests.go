package handlers

// AnalyzeRequest is the body of POST /api/analyze.
// An empty company name is reported by the analysis service with its own message.
type AnalyzeRequest struct {
	SessionID   string `json:"session_id" validate:"required"`
	CompanyName string `json:"company_name"`
}

// ChatRequest is the body of POST /api/chat/stream
type ChatRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Message   string `json:"message"`
}

// wsChatMessage is an inbound websocket chat frame
type wsChatMessage struct {
	Message string `json:"message"`
}
