package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/koki-187/200-sub000/internal/domain"
)

type settingsPayload struct {
	AutoSaveHistory            bool    `json:"auto_save_history"`
	DefaultConfidenceThreshold float64 `json:"default_confidence_threshold"`
	EnableBatchProcessing      bool    `json:"enable_batch_processing"`
	MaxBatchSize               int     `json:"max_batch_size"`
}

func viewSettings(s domain.Settings) settingsPayload {
	return settingsPayload{
		AutoSaveHistory:            s.AutoSaveHistory,
		DefaultConfidenceThreshold: s.ConfidenceThreshold,
		EnableBatchProcessing:      s.EnableBatch,
		MaxBatchSize:               s.MaxBatchSize,
	}
}

// GetOCRSettings returns the user's extraction settings, creating the
// default row on first access.
func (a *App) GetOCRSettings(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	settings, err := a.Settings.Get(r.Context(), ownerID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, viewSettings(settings))
}

// UpdateOCRSettings replaces the user's extraction settings.
func (a *App) UpdateOCRSettings(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var payload settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	settings := domain.Settings{
		OwnerID:             ownerID,
		AutoSaveHistory:     payload.AutoSaveHistory,
		ConfidenceThreshold: payload.DefaultConfidenceThreshold,
		EnableBatch:         payload.EnableBatchProcessing,
		MaxBatchSize:        payload.MaxBatchSize,
	}
	if err := a.Settings.Update(r.Context(), settings); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, viewSettings(settings))
}
