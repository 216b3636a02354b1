// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestProtection(t *testing.T, maxAttempts int, lockout, window time.Duration) (*LoginProtection, *fakeClock) {
	t.Helper()
	lp := NewLoginProtection(LoginProtectionConfig{
		IPRateLimit:       10,
		IPBurst:           100,
		MaxFailedAttempts: maxAttempts,
		LockoutDuration:   lockout,
		AttemptWindow:     window,
	})
	t.Cleanup(lp.Stop)
	clock := &fakeClock{t: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
	lp.now = clock.now
	return lp, clock
}

func TestNewLoginProtection_Defaults(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{})
	defer lp.Stop()

	assert.Equal(t, 5, lp.maxFailedAttempts)
	assert.Equal(t, 15*time.Minute, lp.lockoutDuration)
	assert.Equal(t, 15*time.Minute, lp.attemptWindow)
}

func TestLoginProtection_LockoutAfterMaxAttempts(t *testing.T) {
	lp, clock := newTestProtection(t, 3, time.Minute, 10*time.Minute)
	email := "ada@clinic.org"

	for i := 0; i < 2; i++ {
		locked, _ := lp.RecordFailedAttempt(email)
		assert.False(t, locked)
	}
	assert.Equal(t, 1, lp.GetRemainingAttempts(email))

	locked, d := lp.RecordFailedAttempt("ADA@clinic.org")
	require.True(t, locked, "emails are folded")
	assert.Equal(t, time.Minute, d)

	locked, remaining := lp.IsAccountLocked(email)
	assert.True(t, locked)
	assert.Equal(t, time.Minute, remaining)

	clock.advance(61 * time.Second)
	locked, _ = lp.IsAccountLocked(email)
	assert.False(t, locked)
}

func TestLoginProtection_ExponentialBackoff(t *testing.T) {
	lp, clock := newTestProtection(t, 1, time.Minute, time.Hour)
	email := "ada@clinic.org"

	_, d1 := lp.RecordFailedAttempt(email)
	clock.advance(d1)
	_, d2 := lp.RecordFailedAttempt(email)
	clock.advance(d2)
	_, d3 := lp.RecordFailedAttempt(email)

	assert.Equal(t, []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute}, []time.Duration{d1, d2, d3})
}

func TestLoginProtection_WindowResets(t *testing.T) {
	lp, clock := newTestProtection(t, 3, time.Minute, 5*time.Minute)
	email := "ada@clinic.org"

	lp.RecordFailedAttempt(email)
	lp.RecordFailedAttempt(email)
	clock.advance(6 * time.Minute)

	assert.Equal(t, 3, lp.GetRemainingAttempts(email))
	locked, _ := lp.RecordFailedAttempt(email)
	assert.False(t, locked)
	assert.Equal(t, 2, lp.GetRemainingAttempts(email))
}

func TestLoginProtection_SuccessClears(t *testing.T) {
	lp, _ := newTestProtection(t, 3, time.Minute, 5*time.Minute)

	lp.RecordFailedAttempt("ada@clinic.org")
	lp.RecordSuccessfulLogin("Ada@Clinic.org")
	assert.Equal(t, 3, lp.GetRemainingAttempts("ada@clinic.org"))
}

func TestLoginProtection_CleanupStaleEntries(t *testing.T) {
	lp, clock := newTestProtection(t, 3, time.Minute, 5*time.Minute)

	lp.RecordFailedAttempt("ada@clinic.org")
	clock.advance(10 * time.Minute)
	lp.cleanupStaleEntries()

	lp.attemptsMu.RLock()
	defer lp.attemptsMu.RUnlock()
	assert.Empty(t, lp.failedAttempts)
}

func TestLoginProtection_Middleware(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{IPRateLimit: 0.001, IPBurst: 2})
	defer lp.Stop()

	handler := lp.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	post := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, post("10.0.0.1:1111"))
	assert.Equal(t, http.StatusOK, post("10.0.0.1:2222"))
	assert.Equal(t, http.StatusTooManyRequests, post("10.0.0.1:3333"), "limited per IP, not per port")
	assert.Equal(t, http.StatusOK, post("10.0.0.2:1111"))

	req := httptest.NewRequest(http.MethodGet, "/api/login", nil)
	req.RemoteAddr = "10.0.0.1:4444"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "only POST is limited")
}

func TestLimiterCache_ClearIfExceeds(t *testing.T) {
	lc := newLimiterCache[string](1, 1)
	lc.get("a")
	lc.get("b")
	assert.Same(t, lc.get("a"), lc.get("a"))

	assert.False(t, lc.clearIfExceeds(2))
	lc.get("c")
	assert.True(t, lc.clearIfExceeds(2))
	assert.Zero(t, lc.size())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))

	req.RemoteAddr = "192.0.2.7"
	assert.Equal(t, "192.0.2.7", ClientIP(req))
}
