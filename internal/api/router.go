// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/safetrail/safetrail/internal/config"
	"github.com/safetrail/safetrail/internal/metrics"
)

// NewRouter builds the HTTP routing tree.
func NewRouter(cfg *config.Config, h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The WebSocket endpoint sits outside the rate-limited API tree:
	// a reconnect storm after a network blip must not be throttled away.
	r.Get("/ws", h.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow))
		r.Use(metrics.HTTPMiddleware)

		r.Post("/tourists/location", h.IngestLocation)
		r.Get("/tourists/{id}/profile", h.GetProfile)

		r.Post("/anomaly/detect", h.DetectAnomaly)
		r.Post("/anomaly/retrain", h.Retrain)

		r.Route("/zones", func(r chi.Router) {
			r.Get("/", h.ListZones)
			r.Post("/", h.AddZone)
			r.Get("/nearby", h.NearbyZones)
			r.Delete("/{id}", h.RemoveZone)
		})

		r.Post("/emergency/panic", h.PanicAlert)
		r.Post("/reports/missing-person", h.MissingPerson)

		r.Get("/alerts", h.ListAlerts)
	})

	return r
}
