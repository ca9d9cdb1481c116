// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bibleos/ark/internal/config"
	"github.com/bibleos/ark/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler so it can sit in r.Use() stacks.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router assembles the HTTP surface.
type Router struct {
	handlers        *Handlers
	server          config.ServerConfig
	schedulerSecret string
}

// NewRouter wires a router.
func NewRouter(handlers *Handlers, server config.ServerConfig, schedulerSecret string) *Router {
	return &Router{handlers: handlers, server: server, schedulerSecret: schedulerSecret}
}

// Setup builds the route tree.
//
// The retention scan and the SOP sweep are fleet-wide jobs triggered by an
// external scheduler and sit behind the scheduler secret. The exit-survey
// sweep is company-scoped and triggered by the platform itself, so it only
// needs a valid company in the body.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID", middleware.SchedulerSecretHeader},
		MaxAge:         300,
	}))
	if !router.server.RateLimitDisabled {
		r.Use(httprate.LimitByIP(router.server.RateLimitReqs, router.server.RateLimitWindow))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Get("/health", router.handlers.Health)

		r.Route("/backups", func(r chi.Router) {
			r.Post("/", router.handlers.BackupRun)
			r.Post("/restore", router.handlers.BackupRestore)
			r.Get("/{id}", router.handlers.BackupGet)
		})

		r.Route("/retention", func(r chi.Router) {
			r.Use(chiMiddleware(middleware.SchedulerSecret(router.schedulerSecret)))
			r.Post("/scan", router.handlers.RetentionScan)
		})

		r.Route("/reminders", func(r chi.Router) {
			r.With(chiMiddleware(middleware.SchedulerSecret(router.schedulerSecret))).
				Post("/sop", router.handlers.SOPReminders)
			r.Post("/exit-survey", router.handlers.ExitSurveyReminders)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
