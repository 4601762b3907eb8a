package handlers

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/stockgrader/internal/common"
	"github.com/ternarybob/stockgrader/internal/services/rating"
)

//go:embed web/templates/*.html web/static/*
var webFS embed.FS

type PageHandler struct {
	logger    arbor.ILogger
	templates *template.Template
	static    http.Handler
	provider  string
}

func NewPageHandler(provider string, logger arbor.ILogger) *PageHandler {
	templates := template.Must(template.ParseFS(webFS, "web/templates/*.html"))

	staticFS, err := fs.Sub(webFS, "web/static")
	if err != nil {
		panic(err)
	}

	return &PageHandler{
		logger:    logger,
		templates: templates,
		static:    http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))),
		provider:  provider,
	}
}

// ServePage creates a handler function for serving a specific page template
func (h *PageHandler) ServePage(templateName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !RequireMethod(w, r, http.MethodGet) {
			return
		}

		data := map[string]interface{}{
			"Version":  common.GetVersion(),
			"Provider": h.provider,
			"Sections": rating.SectionSpecs(),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := h.templates.ExecuteTemplate(w, templateName, data); err != nil {
			h.logger.Error().
				Err(err).
				Str("template", templateName).
				Msg("Failed to render page")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
}

// StaticFileHandler serves embedded CSS and JavaScript
func (h *PageHandler) StaticFileHandler(w http.ResponseWriter, r *http.Request) {
	h.static.ServeHTTP(w, r)
}
