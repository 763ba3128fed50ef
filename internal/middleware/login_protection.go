// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/olegiv/oevent/internal/i18n"
	"github.com/olegiv/oevent/internal/util"
)

// maxLockout caps the doubling lockout duration.
const maxLockout = 24 * time.Hour

// LoginProtection combines per-IP rate limiting of login posts with
// per-username lockout after repeated failures.
type LoginProtection struct {
	ipLimiters *limiterCache[string]

	mu       sync.Mutex
	attempts map[string]*loginAttempt

	maxFailedAttempts int
	lockoutDuration   time.Duration
	attemptWindow     time.Duration
	now               func() time.Time
}

type loginAttempt struct {
	count       int
	firstFailed time.Time
	lockedUntil time.Time
	lockouts    int
}

// LoginProtectionConfig holds login protection settings.
type LoginProtectionConfig struct {
	// IPRateLimit is login posts per second per IP.
	IPRateLimit float64
	IPBurst     int
	// MaxFailedAttempts within AttemptWindow lock the username.
	MaxFailedAttempts int
	// LockoutDuration doubles with each successive lockout.
	LockoutDuration time.Duration
	AttemptWindow   time.Duration
}

// DefaultLoginProtectionConfig returns the production settings.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:       0.5,
		IPBurst:           5,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
	}
}

// NewLoginProtection creates a LoginProtection. Zero config values take the
// defaults. Stale entries are swept every ten minutes until ctx is done.
func NewLoginProtection(ctx context.Context, cfg LoginProtectionConfig) *LoginProtection {
	def := DefaultLoginProtectionConfig()
	if cfg.IPRateLimit <= 0 {
		cfg.IPRateLimit = def.IPRateLimit
	}
	if cfg.IPBurst <= 0 {
		cfg.IPBurst = def.IPBurst
	}
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = def.AttemptWindow
	}

	lp := &LoginProtection{
		ipLimiters:        newLimiterCache[string](cfg.IPRateLimit, cfg.IPBurst),
		attempts:          make(map[string]*loginAttempt),
		maxFailedAttempts: cfg.MaxFailedAttempts,
		lockoutDuration:   cfg.LockoutDuration,
		attemptWindow:     cfg.AttemptWindow,
		now:               time.Now,
	}
	go sweep(ctx, 10*time.Minute, lp.cleanupStaleEntries)
	return lp
}

func attemptKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// IsLocked reports whether username is locked and for how much longer.
func (lp *LoginProtection) IsLocked(username string) (bool, time.Duration) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	attempt, ok := lp.attempts[attemptKey(username)]
	if !ok {
		return false, 0
	}
	if now := lp.now(); now.Before(attempt.lockedUntil) {
		return true, attempt.lockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailure counts a failed login and reports whether it locked the
// username, with the lockout length.
func (lp *LoginProtection) RecordFailure(username string) (bool, time.Duration) {
	key := attemptKey(username)
	now := lp.now()

	lp.mu.Lock()
	attempt, ok := lp.attempts[key]
	if !ok || now.Sub(attempt.firstFailed) > lp.attemptWindow {
		if !ok {
			attempt = &loginAttempt{}
			lp.attempts[key] = attempt
		}
		attempt.count = 0
		attempt.firstFailed = now
	}
	attempt.count++

	if attempt.count < lp.maxFailedAttempts {
		lp.mu.Unlock()
		return false, 0
	}

	lockFor := lp.lockoutDuration
	for i := 0; i < attempt.lockouts && lockFor < maxLockout; i++ {
		lockFor *= 2
	}
	if lockFor > maxLockout {
		lockFor = maxLockout
	}
	attempt.lockedUntil = now.Add(lockFor)
	attempt.lockouts++
	attempt.count = 0
	lockouts := attempt.lockouts
	lp.mu.Unlock()

	slog.Warn("login locked after failed attempts", "username", key, "lockouts", lockouts, "duration", lockFor)
	return true, lockFor
}

// RecordSuccess forgets failures for username.
func (lp *LoginProtection) RecordSuccess(username string) {
	lp.mu.Lock()
	delete(lp.attempts, attemptKey(username))
	lp.mu.Unlock()
}

// RemainingAttempts returns how many failures are left before a lockout.
func (lp *LoginProtection) RemainingAttempts(username string) int {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	attempt, ok := lp.attempts[attemptKey(username)]
	if !ok || lp.now().Sub(attempt.firstFailed) > lp.attemptWindow {
		return lp.maxFailedAttempts
	}
	return max(lp.maxFailedAttempts-attempt.count, 0)
}

func (lp *LoginProtection) cleanupStaleEntries() {
	if lp.ipLimiters.clearIfExceeds(maxLimiters) {
		slog.Debug("cleared login IP rate limiters")
	}

	now := lp.now()
	lp.mu.Lock()
	for key, attempt := range lp.attempts {
		if now.After(attempt.lockedUntil) && now.Sub(attempt.firstFailed) > lp.attemptWindow {
			delete(lp.attempts, key)
		}
	}
	lp.mu.Unlock()
}

// Middleware rate limits login POSTs per client IP.
func (lp *LoginProtection) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		ip := util.ClientIP(r)
		if !lp.ipLimiters.get(ip).Allow() {
			slog.Warn("login rate limit exceeded", "ip", ip)
			http.Error(w, i18n.T(GetLanguage(r), "flash.login_rate_limited"), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
