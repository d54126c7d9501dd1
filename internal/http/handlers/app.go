// Package handlers exposes the OCR pipeline over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/koki-187/200-sub000/internal/domain"
	"github.com/koki-187/200-sub000/internal/infra"
	"github.com/koki-187/200-sub000/internal/middleware"
	"github.com/koki-187/200-sub000/internal/ocr"
)

// App bundles the dependencies the HTTP handlers need.
type App struct {
	Orchestrator *ocr.Orchestrator
	History      domain.HistoryRepository
	Settings     domain.SettingsRepository
	Logger       infra.Logger
}

// NewApp creates the handler container.
func NewApp(orchestrator *ocr.Orchestrator, history domain.HistoryRepository, settings domain.SettingsRepository, logger infra.Logger) *App {
	return &App{
		Orchestrator: orchestrator,
		History:      history,
		Settings:     settings,
		Logger:       logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// domainError maps pipeline errors onto the HTTP taxonomy.
func (a *App) domainError(w http.ResponseWriter, err error) {
	var validation domain.ValidationError
	var conversion domain.PdfConversionError
	switch {
	case errors.As(err, &validation):
		a.error(w, http.StatusBadRequest, "validation_error", validation.Reason)
	case errors.As(err, &conversion):
		a.error(w, http.StatusBadRequest, "pdf_conversion_error", conversion.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", "resource belongs to another user")
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", "resource is already in a terminal state")
	default:
		a.Logger.Error().Err(err).Msg("handlers: internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
