// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLoginProtection(t *testing.T, maxAttempts int) (*LoginProtection, *time.Time) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	lp := NewLoginProtection(ctx, LoginProtectionConfig{
		IPRateLimit:       10,
		IPBurst:           100,
		MaxFailedAttempts: maxAttempts,
		LockoutDuration:   time.Minute,
		AttemptWindow:     10 * time.Minute,
	})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lp.now = func() time.Time { return now }
	return lp, &now
}

func TestNewLoginProtectionDefaults(t *testing.T) {
	lp := NewLoginProtection(context.Background(), LoginProtectionConfig{})
	def := DefaultLoginProtectionConfig()

	if lp.maxFailedAttempts != def.MaxFailedAttempts {
		t.Errorf("maxFailedAttempts = %d, want %d", lp.maxFailedAttempts, def.MaxFailedAttempts)
	}
	if lp.lockoutDuration != def.LockoutDuration {
		t.Errorf("lockoutDuration = %v, want %v", lp.lockoutDuration, def.LockoutDuration)
	}
}

func TestLoginLockout(t *testing.T) {
	lp, now := newTestLoginProtection(t, 3)

	for i := 0; i < 2; i++ {
		if locked, _ := lp.RecordFailure("Ann"); locked {
			t.Fatalf("locked after %d failures", i+1)
		}
	}
	if got := lp.RemainingAttempts("ann"); got != 1 {
		t.Errorf("RemainingAttempts = %d, want 1", got)
	}

	locked, d := lp.RecordFailure("ann ")
	if !locked || d != time.Minute {
		t.Fatalf("RecordFailure = %v, %v; want true, 1m", locked, d)
	}
	if locked, _ := lp.IsLocked("ANN"); !locked {
		t.Error("IsLocked = false right after lockout")
	}

	*now = now.Add(2 * time.Minute)
	if locked, _ := lp.IsLocked("ann"); locked {
		t.Error("IsLocked = true after lockout expired")
	}

	// The second lockout doubles.
	for i := 0; i < 2; i++ {
		lp.RecordFailure("ann")
	}
	if _, d := lp.RecordFailure("ann"); d != 2*time.Minute {
		t.Errorf("second lockout = %v, want 2m", d)
	}
}

func TestLoginAttemptWindowResets(t *testing.T) {
	lp, now := newTestLoginProtection(t, 3)

	lp.RecordFailure("ann")
	lp.RecordFailure("ann")
	*now = now.Add(11 * time.Minute)

	if locked, _ := lp.RecordFailure("ann"); locked {
		t.Error("locked although the window had passed")
	}
	if got := lp.RemainingAttempts("ann"); got != 2 {
		t.Errorf("RemainingAttempts = %d, want 2", got)
	}
}

func TestLoginSuccessClears(t *testing.T) {
	lp, _ := newTestLoginProtection(t, 3)

	lp.RecordFailure("ann")
	lp.RecordSuccess("ann")
	if got := lp.RemainingAttempts("ann"); got != 3 {
		t.Errorf("RemainingAttempts = %d, want 3", got)
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	lp, now := newTestLoginProtection(t, 3)

	lp.RecordFailure("ann")
	*now = now.Add(time.Hour)
	lp.cleanupStaleEntries()

	if len(lp.attempts) != 0 {
		t.Errorf("attempts = %d after cleanup, want 0", len(lp.attempts))
	}
}

func TestLoginProtectionMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lp := NewLoginProtection(ctx, LoginProtectionConfig{IPRateLimit: 0.001, IPBurst: 1})
	h := lp.Middleware(okHandler())

	send := func(method string) int {
		req := httptest.NewRequest(method, "/login/", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(http.MethodPost); code != http.StatusOK {
		t.Errorf("first POST = %d, want 200", code)
	}
	if code := send(http.MethodPost); code != http.StatusTooManyRequests {
		t.Errorf("second POST = %d, want 429", code)
	}
	if code := send(http.MethodGet); code != http.StatusOK {
		t.Errorf("GET = %d, want 200", code)
	}
}
