// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/hhaudit/internal/middleware"
	"github.com/olegiv/hhaudit/internal/model"
	"github.com/olegiv/hhaudit/internal/service"
	"github.com/olegiv/hhaudit/internal/session"
)

// AuthHandler handles signup, login and logout.
type AuthHandler struct {
	accounts        *service.Accounts
	sessionManager  *scs.SessionManager
	eventService    *service.EventService
	loginProtection *middleware.LoginProtection
}

// NewAuthHandler creates a new AuthHandler. lp and events may be nil.
func NewAuthHandler(accounts *service.Accounts, sm *scs.SessionManager, events *service.EventService, lp *middleware.LoginProtection) *AuthHandler {
	return &AuthHandler{
		accounts:        accounts,
		sessionManager:  sm,
		eventService:    events,
		loginProtection: lp,
	}
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup registers an observer and logs them in.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if !decodeJSON(w, r, &in) {
		return
	}

	obs, err := h.accounts.Signup(r.Context(), in)
	switch {
	case errors.Is(err, service.ErrDuplicateEmail):
		WriteConflict(w, err.Error())
		return
	case errors.Is(err, service.ErrInvalidSignup):
		WriteBadRequest(w, err.Error())
		return
	case err != nil:
		logAndInternalError(w, "signup failed", "error", err)
		return
	}

	if !h.startSession(w, r, obs) {
		return
	}
	_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelInfo, "Observer signed up",
		middleware.ClientIP(r), map[string]any{"email": obs.Email})
	WriteCreated(w, obs)
}

// Login authenticates an observer. Unknown emails and wrong passwords get
// the same response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.Email == "" || in.Password == "" {
		WriteBadRequest(w, "Email and password are required")
		return
	}

	clientIP := middleware.ClientIP(r)

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsAccountLocked(in.Email); locked {
			_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelWarning, "Login attempt on locked account",
				clientIP, map[string]any{"email": in.Email})
			writeLocked(w, remaining)
			return
		}
	}

	obs, err := h.accounts.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		slog.Debug("login failed", "email", in.Email)
		_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelWarning, "Login failed",
			clientIP, map[string]any{"email": in.Email})

		// Unknown emails count too, so lockout does not reveal which accounts exist.
		if h.loginProtection != nil {
			if locked, lockDuration := h.loginProtection.RecordFailedAttempt(in.Email); locked {
				_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelWarning, "Account locked due to failed attempts",
					clientIP, map[string]any{"email": in.Email, "duration": lockDuration.String()})
				writeLocked(w, lockDuration)
				return
			}
		}
		middleware.WriteAPIError(w, http.StatusUnauthorized, "invalid_credentials",
			service.ErrInvalidCredentials.Error(), nil)
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(in.Email)
	}
	if !h.startSession(w, r, obs) {
		return
	}

	slog.Info("observer logged in", "email", obs.Email, "ip", clientIP)
	_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelInfo, "Observer logged in",
		clientIP, map[string]any{"email": obs.Email})
	WriteSuccess(w, obs, nil)
}

// Logout clears the current observer from the session. Saved sessions and
// any draft in progress are kept.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	email := h.sessionManager.GetString(r.Context(), session.ObserverKey)

	h.sessionManager.Remove(r.Context(), session.ObserverKey)
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		logAndInternalError(w, "failed to renew session token", "error", err)
		return
	}

	if email != "" {
		_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelInfo, "Observer logged out",
			middleware.ClientIP(r), map[string]any{"email": email})
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the logged-in observer.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	obs, ok := requireObserver(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, obs, nil)
}

// startSession renews the session token and stores the observer in it.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, obs model.Observer) bool {
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		logAndInternalError(w, "failed to renew session token", "error", err)
		return false
	}
	h.sessionManager.Put(r.Context(), session.ObserverKey, obs.Email)
	return true
}

func writeLocked(w http.ResponseWriter, d time.Duration) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(d.Round(time.Second).Seconds())))
	middleware.WriteAPIError(w, http.StatusTooManyRequests, "account_locked",
		fmt.Sprintf("Too many failed attempts. Try again in %s.", formatDuration(d)), nil)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
