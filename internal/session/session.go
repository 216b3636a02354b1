// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session configures the cookie session that remembers which
// observer is logged in.
package session

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// ObserverKey holds the logged-in observer's email. It is the only value
// kept in the session.
const ObserverKey = "observer_email"

// Lifetime is the absolute session lifetime.
const Lifetime = 24 * time.Hour

// New creates a session manager backed by the sessions table of db.
func New(db *sql.DB, isDev bool) *scs.SessionManager {
	return newManager(sqlite3store.New(db), isDev)
}

// NewWithoutCleanup is New without the background expiry sweep, for callers
// that close db before the process exits.
func NewWithoutCleanup(db *sql.DB, isDev bool) *scs.SessionManager {
	return newManager(sqlite3store.NewWithCleanupInterval(db, 0), isDev)
}

func newManager(store scs.Store, isDev bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = store

	sm.Lifetime = Lifetime
	sm.IdleTimeout = 2 * time.Hour
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	sm.Cookie.Secure = !isDev
	if !isDev {
		// __Host- requires Secure, Path=/ and no Domain.
		sm.Cookie.Name = "__Host-session"
	}
	return sm
}
