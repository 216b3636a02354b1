// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuthKey = []byte("12345678901234567890123456789012")

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	})
}

func TestDefaultCSRFConfig(t *testing.T) {
	dev := DefaultCSRFConfig(testAuthKey, true, []string{"audit.example.org"})
	assert.Equal(t, []string{"audit.example.org", "localhost:8080", "127.0.0.1:8080"}, dev.TrustedOrigins)

	prod := DefaultCSRFConfig(testAuthKey, false, nil)
	assert.Empty(t, prod.TrustedOrigins)
	assert.Len(t, prod.AuthKey, 32)
}

func TestCSRF_RejectsCrossSitePost(t *testing.T) {
	handler := CSRF(DefaultCSRFConfig(testAuthKey, false, nil))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "https://audit.example.org/api/audit/save", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "csrf", body.Error.Code)
}

func TestCSRF_AllowsSameOriginAndSafeMethods(t *testing.T) {
	handler := CSRF(DefaultCSRFConfig(testAuthKey, false, nil))(okHandler())

	post := httptest.NewRequest(http.MethodPost, "https://audit.example.org/api/audit/save", nil)
	post.Header.Set("Sec-Fetch-Site", "same-origin")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, post)
	assert.Equal(t, http.StatusOK, rec.Code)

	get := httptest.NewRequest(http.MethodGet, "https://audit.example.org/api/dashboard", nil)
	get.Header.Set("Sec-Fetch-Site", "cross-site")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, get)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name     string
		isDev    bool
		wantHSTS string
	}{
		{"production", false, "max-age=31536000; includeSubDomains"},
		{"development", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := SecurityHeaders(DefaultSecurityHeadersConfig(tt.isDev))(okHandler())
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

			h := rec.Header()
			assert.Equal(t, tt.wantHSTS, h.Get("Strict-Transport-Security"))
			assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
			assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
			assert.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
			assert.Equal(t, "no-store", h.Get("Cache-Control"))
			assert.Contains(t, h.Get("Content-Security-Policy"), "default-src 'none'")
		})
	}
}

func TestTimeout_NormalRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	Timeout(5*time.Second)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", rec.Body.String())
}

func TestTimeout_SlowRequest(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
			w.WriteHeader(http.StatusOK)
		case <-r.Context().Done():
		}
	})

	rec := httptest.NewRecorder()
	Timeout(50*time.Millisecond)(slow).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "timeout", body.Error.Code)
}

func TestWriteAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAPIError(rec, http.StatusBadRequest, "invalid", "Bad input", map[string]string{"field": "ward"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":{"code":"invalid","message":"Bad input","details":{"field":"ward"}}}`, rec.Body.String())
}

func TestTimeoutWriter_DropsWritesAfterTimeout(t *testing.T) {
	rec := httptest.NewRecorder()
	tw := &timeoutWriter{ResponseWriter: rec, wroteHeader: true, timedOut: true}

	_, err := tw.Write([]byte("late"))
	assert.ErrorIs(t, err, http.ErrHandlerTimeout)
	assert.Empty(t, rec.Body.String())
}
