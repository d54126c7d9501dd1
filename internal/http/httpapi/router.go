// Package httpapi assembles the chi router for the OCR pipeline API.
package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/koki-187/200-sub000/internal/http/handlers"
	"github.com/koki-187/200-sub000/internal/infra"
	"github.com/koki-187/200-sub000/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(logger),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))

		r.Route("/v1/ocr-jobs", func(r chi.Router) {
			r.Post("/", app.CreateOCRJob)
			r.Get("/{id}", app.GetOCRJob)
			r.Delete("/{id}", app.CancelOCRJob)
		})

		r.Route("/v1/ocr-history", func(r chi.Router) {
			r.Get("/", app.ListOCRHistory)
			r.Post("/", app.SaveOCRHistory)
			r.Delete("/{id}", app.DeleteOCRHistory)
		})

		r.Route("/v1/ocr-settings", func(r chi.Router) {
			r.Get("/", app.GetOCRSettings)
			r.Put("/", app.UpdateOCRSettings)
		})
	})

	return r
}
