package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// UI
	mux.HandleFunc("/{$}", s.app.PageHandler.ServePage("index.html"))
	mux.HandleFunc("/static/", s.app.PageHandler.StaticFileHandler)

	// Sessions
	mux.HandleFunc("/api/sessions", s.app.SessionHandler.CreateHandler)                 // POST
	mux.HandleFunc("/api/sessions/{id}/messages", s.app.SessionHandler.MessagesHandler) // GET

	// Analysis
	mux.HandleFunc("/api/analyze", s.app.AnalysisHandler.AnalyzeHandler)     // POST
	mux.HandleFunc("/api/normalize", s.app.AnalysisHandler.NormalizeHandler) // POST

	// History and export
	mux.HandleFunc("/api/analyses", s.app.AnalysisHandler.ListHandler) // GET
	mux.HandleFunc("/api/analyses/{id}", s.handleAnalysisRoutes)       // GET/DELETE
	mux.HandleFunc("/api/analyses/{id}/export", s.app.AnalysisHandler.ExportHandler)

	// Follow-up chat
	mux.HandleFunc("/api/chat/stream", s.app.ChatHandler.StreamHandler) // POST, SSE
	mux.HandleFunc(wsChatPath, s.app.WSHandler.HandleChat)

	// Settings
	mux.HandleFunc("/api/kv", s.app.KVHandler.ListHandler) // GET
	mux.HandleFunc("/api/kv/{key}", s.handleKVRoutes)      // GET/PUT/DELETE

	// System
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	// 404 for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleAnalysisRoutes dispatches /api/analyses/{id} by method
func (s *Server) handleAnalysisRoutes(w http.ResponseWriter, r *http.Request) {
	RouteResourceItem(w, r,
		s.app.AnalysisHandler.GetHandler,
		s.app.AnalysisHandler.DeleteHandler,
	)
}

// handleKVRoutes dispatches /api/kv/{key} by method
func (s *Server) handleKVRoutes(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		http.MethodGet:    s.app.KVHandler.GetHandler,
		http.MethodPut:    s.app.KVHandler.PutHandler,
		http.MethodDelete: s.app.KVHandler.DeleteHandler,
	})
}
