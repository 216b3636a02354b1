// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"

	"filippo.io/csrf/gorilla"

	"github.com/olegiv/hhaudit/internal/model"
)

// CSRFConfig holds configuration for cross-origin request protection.
// filippo.io/csrf/gorilla checks Fetch metadata and Origin headers, so no
// token or cookie round-trip is needed by API clients.
type CSRFConfig struct {
	// AuthKey is a 32-byte key; kept for gorilla/csrf API compatibility.
	AuthKey []byte

	// ErrorHandler is called when validation fails.
	ErrorHandler http.Handler

	// TrustedOrigins are host[:port] values allowed to make cross-origin
	// state-changing requests.
	TrustedOrigins []string
}

// DefaultCSRFConfig returns a CSRFConfig with sensible defaults.
func DefaultCSRFConfig(authKey []byte, isDev bool, trusted []string) CSRFConfig {
	cfg := CSRFConfig{
		AuthKey:        authKey,
		TrustedOrigins: append([]string(nil), trusted...),
	}

	// The csrf library expects host-only values, not full URLs.
	if isDev {
		cfg.TrustedOrigins = append(cfg.TrustedOrigins, "localhost:8080", "127.0.0.1:8080")
	}
	return cfg
}

// CSRF returns a middleware that rejects cross-origin state-changing requests.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	var opts []csrf.Option

	if cfg.ErrorHandler != nil {
		opts = append(opts, csrf.ErrorHandler(cfg.ErrorHandler))
	} else {
		opts = append(opts, csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)))
	}

	if len(cfg.TrustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(cfg.TrustedOrigins))
	}

	return csrf.Protect(cfg.AuthKey, opts...)
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	reasonStr := "unknown"
	if reason := csrf.FailureReason(r); reason != nil {
		reasonStr = reason.Error()
	}
	slog.Warn("cross-origin request rejected",
		"category", model.EventCategoryAuth,
		"reason", reasonStr,
		"method", r.Method,
		"path", r.URL.Path,
		"origin", r.Header.Get("Origin"),
		"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
	)
	WriteAPIError(w, http.StatusForbidden, "csrf", "Cross-origin request rejected", nil)
}
