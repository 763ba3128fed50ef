// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session configures the cookie session store and the flash
// messages carried across redirects.
package session

import (
	"context"
	"database/sql"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// Session keys.
const (
	KeyUserID = "user_id"
	keyFlash  = "flash"
)

// Lifetime is how long a session stays valid.
const Lifetime = 14 * 24 * time.Hour

// Flash levels.
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Flash is a one-shot message shown on the next page.
type Flash struct {
	Level   string
	Message string
}

func init() {
	gob.Register([]Flash{})
}

// New creates a session manager backed by the sessions table.
func New(db *sql.DB, isDev bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = sqlite3store.New(db)

	sm.Lifetime = Lifetime
	sm.Cookie.Name = "oevent_session"
	sm.Cookie.Path = "/"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = !isDev
	if !isDev {
		sm.Cookie.Name = "__Host-oevent_session"
	}

	return sm
}

// AddFlash queues a message for the next rendered page.
func AddFlash(ctx context.Context, sm *scs.SessionManager, level, message string) {
	flashes, _ := sm.Get(ctx, keyFlash).([]Flash)
	sm.Put(ctx, keyFlash, append(flashes, Flash{Level: level, Message: message}))
}

// PopFlashes returns and clears the queued messages.
func PopFlashes(ctx context.Context, sm *scs.SessionManager) []Flash {
	flashes, _ := sm.Pop(ctx, keyFlash).([]Flash)
	return flashes
}

// Login renews the session token and stores the user id.
func Login(ctx context.Context, sm *scs.SessionManager, userID int64) error {
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}
	sm.Put(ctx, KeyUserID, userID)
	return nil
}

// Logout destroys the session.
func Logout(ctx context.Context, sm *scs.SessionManager) error {
	return sm.Destroy(ctx)
}

// UserID returns the logged-in user id, or 0.
func UserID(ctx context.Context, sm *scs.SessionManager) int64 {
	return sm.GetInt64(ctx, KeyUserID)
}
