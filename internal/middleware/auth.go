// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication, request
// protection and request context handling.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/hhaudit/internal/model"
	"github.com/olegiv/hhaudit/internal/session"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyObserver holds the authenticated model.Observer.
const ContextKeyObserver ContextKey = "observer"

// ObserverLookup resolves a session email to a registered observer.
type ObserverLookup interface {
	Lookup(email string) (model.Observer, bool)
}

// RequireObserver loads the logged-in observer into the request context and
// rejects the request with 401 when there is none. A session pointing at an
// unknown observer is destroyed.
func RequireObserver(sm *scs.SessionManager, observers ObserverLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := sm.GetString(r.Context(), session.ObserverKey)
			if email == "" {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Please log in", nil)
				return
			}

			obs, ok := observers.Lookup(email)
			if !ok {
				slog.Warn("session refers to unknown observer",
					"category", model.EventCategoryAuth, "email", email)
				_ = sm.Destroy(r.Context())
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Please log in", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithObserver(r.Context(), obs)))
		})
	}
}

// WithObserver returns a copy of ctx carrying obs.
func WithObserver(ctx context.Context, obs model.Observer) context.Context {
	return context.WithValue(ctx, ContextKeyObserver, obs)
}

// ObserverFrom returns the observer stored by RequireObserver.
func ObserverFrom(ctx context.Context) (model.Observer, bool) {
	obs, ok := ctx.Value(ContextKeyObserver).(model.Observer)
	return obs, ok
}
