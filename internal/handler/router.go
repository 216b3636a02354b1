// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/hhaudit/internal/middleware"
)

// DefaultRequestTimeout bounds every route except the elapsed-time stream.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig collects the handlers and middleware of the API.
type RouterConfig struct {
	Auth    *AuthHandler
	Audit   *AuditHandler
	Reports *ReportsHandler
	Events  *EventsHandler
	Health  *HealthHandler

	SessionManager  *scs.SessionManager
	Observers       middleware.ObserverLookup
	LoginProtection *middleware.LoginProtection

	// CSRF guards state-changing requests; nil disables it.
	CSRF func(http.Handler) http.Handler

	RequestTimeout time.Duration
	IsDevelopment  bool
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment)))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteNotFound(w, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
	})

	r.Get("/health", cfg.Health.Health)
	r.Get("/health/live", cfg.Health.Liveness)

	r.Route("/api", func(r chi.Router) {
		r.Use(cfg.SessionManager.LoadAndSave)
		if cfg.CSRF != nil {
			r.Use(cfg.CSRF)
		}

		// Everything but the SSE stream gets a deadline.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))

			r.Group(func(r chi.Router) {
				if cfg.LoginProtection != nil {
					r.Use(cfg.LoginProtection.Middleware())
				}
				r.Post("/signup", cfg.Auth.Signup)
				r.Post("/login", cfg.Auth.Login)
			})
			r.Post("/logout", cfg.Auth.Logout)
			r.Get("/audit/options", cfg.Audit.Options)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireObserver(cfg.SessionManager, cfg.Observers))

				r.Get("/me", cfg.Auth.Me)

				r.Get("/audit", cfg.Audit.Current)
				r.Post("/audit/start", cfg.Audit.Start)
				r.Patch("/audit/header", cfg.Audit.SetHeader)
				r.Post("/audit/columns", cfg.Audit.AddColumn)
				r.Delete("/audit/columns/{col}", cfg.Audit.RemoveColumn)
				r.Put("/audit/columns/{col}/category", cfg.Audit.SetCategory)
				r.Post("/audit/columns/{col}/opportunities/{opp}/indications/{ind}", cfg.Audit.ToggleIndication)
				r.Put("/audit/columns/{col}/opportunities/{opp}/action", cfg.Audit.SetAction)
				r.Delete("/audit/columns/{col}/opportunities/{opp}/action", cfg.Audit.ClearAction)
				r.Post("/audit/save", cfg.Audit.Save)
				r.Post("/audit/discard", cfg.Audit.Discard)

				r.Get("/dashboard", cfg.Reports.Dashboard)
				r.Get("/sessions", cfg.Reports.Sessions)
				r.Delete("/sessions", cfg.Reports.DeleteSessions)
				r.Get("/export/csv", cfg.Reports.ExportCSV)
				r.Get("/export/pdf", cfg.Reports.ExportPDF)
				r.Get("/export/xlsx", cfg.Reports.ExportXLSX)

				r.Get("/events", cfg.Events.List)
			})
		})

		r.With(middleware.RequireObserver(cfg.SessionManager, cfg.Observers)).
			Get("/audit/elapsed", cfg.Audit.Elapsed)
	})

	return r
}
