package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/stockgrader/internal/interfaces"
)

// KVHandler serves the runtime settings store. Provider API keys saved here
// are picked up by common.ResolveAPIKey when no environment variable is set.
type KVHandler struct {
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger
}

// KVPutRequest is the body of PUT /api/kv/{key}
type KVPutRequest struct {
	Value       string `json:"value" validate:"required"`
	Description string `json:"description"`
}

// NewKVHandler creates a new KV handler
func NewKVHandler(kv interfaces.KeyValueStorage, logger arbor.ILogger) *KVHandler {
	return &KVHandler{
		kv:     kv,
		logger: logger,
	}
}

// ListHandler handles GET /api/kv. Values are masked.
func (h *KVHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	pairs, err := h.kv.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list settings")
		WriteError(w, http.StatusInternalServerError, "Failed to list settings")
		return
	}

	out := make([]interfaces.KeyValuePair, len(pairs))
	for i, pair := range pairs {
		pair.Value = maskValue(pair.Value)
		out[i] = pair
	}

	WriteJSON(w, http.StatusOK, out)
}

// GetHandler handles GET /api/kv/{key}. The value is masked.
func (h *KVHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := kvKey(w, r)
	if !ok {
		return
	}

	value, err := h.kv.Get(r.Context(), key)
	if err != nil {
		h.writeKVError(w, key, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"key":   key,
		"value": maskValue(value),
	})
}

// PutHandler handles PUT /api/kv/{key}
func (h *KVHandler) PutHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := kvKey(w, r)
	if !ok {
		return
	}

	var req KVPutRequest
	if !DecodeRequest(w, r, &req) {
		return
	}

	if err := h.kv.Set(r.Context(), key, req.Value, req.Description); err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to store setting")
		WriteError(w, http.StatusInternalServerError, "Failed to store setting")
		return
	}

	h.logger.Info().Str("key", key).Msg("Setting stored")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"key":     key,
	})
}

// DeleteHandler handles DELETE /api/kv/{key}
func (h *KVHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := kvKey(w, r)
	if !ok {
		return
	}

	if err := h.kv.Delete(r.Context(), key); err != nil {
		h.writeKVError(w, key, err)
		return
	}

	h.logger.Info().Str("key", key).Msg("Setting deleted")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"key":     key,
	})
}

func (h *KVHandler) writeKVError(w http.ResponseWriter, key string, err error) {
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		WriteError(w, http.StatusNotFound, "Key not found")
		return
	}
	h.logger.Error().Err(err).Str("key", key).Msg("Settings store failed")
	WriteError(w, http.StatusInternalServerError, "Settings store failed")
}

func kvKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := strings.TrimSpace(r.PathValue("key"))
	if key == "" {
		WriteError(w, http.StatusBadRequest, "Missing key parameter")
		return "", false
	}
	return key, true
}

// maskValue keeps the first and last four characters of long values.
func maskValue(value string) string {
	if len(value) <= 8 {
		return "********"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
