package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"screenscout/config"
)

type SettingsHandler struct {
	Manager *config.Manager
}

func NewSettingsHandler(m *config.Manager) *SettingsHandler {
	return &SettingsHandler{Manager: m}
}

// Get handles GET /api/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Manager.Load()
	if err != nil {
		log.Printf("[handlers] failed to load settings: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Update handles PUT /api/settings. The client sends the full settings
// object; partial updates are done by fetching, editing, and putting back.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var settings config.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if settings.Server.Port <= 0 || settings.Server.Port > 65535 {
		writeError(w, http.StatusBadRequest, "invalid server port")
		return
	}
	if !knownProvider(settings.Assistant.Provider) {
		writeError(w, http.StatusBadRequest, "unknown assistant provider: "+settings.Assistant.Provider)
		return
	}

	if err := h.Manager.Save(&settings); err != nil {
		log.Printf("[handlers] failed to save settings: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func knownProvider(name string) bool {
	switch name {
	case "", "gemini", "openai", "openai-compatible":
		return true
	default:
		return false
	}
}
