package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/stockgrader/internal/interfaces"
	"github.com/ternarybob/stockgrader/internal/services/analysis"
	"github.com/ternarybob/stockgrader/internal/services/chat"
)

// maxRequestBody bounds JSON request bodies
const maxRequestBody = 1 << 20

var validate = validator.New()

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// WriteServiceError maps a service error to its HTTP status and writes it.
func WriteServiceError(w http.ResponseWriter, err error) error {
	return WriteError(w, StatusForError(err), err.Error())
}

// StatusForError returns the HTTP status for a service error.
func StatusForError(err error) int {
	var upstream *analysis.UpstreamError
	switch {
	case errors.Is(err, analysis.ErrEmptyCompanyName),
		errors.Is(err, analysis.ErrCompanyNameTooLong),
		errors.Is(err, analysis.ErrInvalidAnalysisJSON),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMessageTooLong):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrSessionNotFound),
		errors.Is(err, interfaces.ErrAnalysisNotFound):
		return http.StatusNotFound
	case errors.Is(err, analysis.ErrAnalysisInProgress),
		errors.Is(err, chat.ErrChatNotInitialized):
		return http.StatusConflict
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DecodeRequest reads a JSON body into dst and validates its struct tags.
// Writes a 400 response and returns false on failure.
func DecodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		WriteError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field() + " is " + verrs[0].Tag()
	}
	return err.Error()
}

// GetLimitParam reads a positive ?limit= value, or returns 0 when absent or invalid.
func GetLimitParam(r *http.Request) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			if n > 100 {
				return 100
			}
			return n
		}
	}
	return 0
}
