// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// role gates, language detection and request hardening.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/oevent/internal/i18n"
	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/session"
	"github.com/olegiv/oevent/internal/store"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// Context keys.
const (
	ContextKeyUser     ContextKey = "user"
	ContextKeyLanguage ContextKey = "language"
)

// LoginPath is where anonymous users are sent.
const LoginPath = "/login/"

// UserLoader loads the session user.
type UserLoader interface {
	GetUser(ctx context.Context, id int64) (store.User, error)
}

// RoleChecker decides dashboard access.
type RoleChecker interface {
	HasRole(ctx context.Context, user store.User, role model.Role) (bool, error)
}

// LoadUser puts the logged-in user into the request context. A session that
// points at a missing or deactivated user is destroyed and the request
// continues anonymously.
func LoadUser(sm *scs.SessionManager, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := session.UserID(r.Context(), sm)
			if userID == 0 {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetUser(r.Context(), userID)
			if err != nil || !user.IsActive {
				_ = session.Logout(r.Context(), sm)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireLogin redirects anonymous users to the login page with a next
// parameter pointing back at the request.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUser(r) == nil {
			http.Redirect(w, r, LoginRedirectURL(r), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoginRedirectURL returns the login URL that comes back to r afterwards.
func LoginRedirectURL(r *http.Request) string {
	return LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
}

// RequireRole lets through users passing the gate for role. Anyone else gets
// the flash message under flashKey and is sent to the login page.
func RequireRole(sm *scs.SessionManager, checker RoleChecker, role model.Role, flashKey string) func(http.Handler) http.Handler {
	return RequireRoleOr(sm, checker, role, flashKey, LoginPath)
}

// RequireRoleOr is RequireRole with a custom redirect for logged-in users
// failing the gate.
func RequireRoleOr(sm *scs.SessionManager, checker RoleChecker, role model.Role, flashKey, redirect string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				http.Redirect(w, r, LoginRedirectURL(r), http.StatusSeeOther)
				return
			}

			ok, err := checker.HasRole(r.Context(), *user, role)
			if err != nil {
				slog.Error("role check failed", "user_id", user.ID, "role", role, "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !ok {
				slog.Info("access denied", "user_id", user.ID, "role", role, "path", r.URL.Path)
				session.AddFlash(r.Context(), sm, session.LevelError, i18n.T(GetLanguage(r), flashKey))
				http.Redirect(w, r, redirect, http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUser returns the logged-in user, or nil.
func GetUser(r *http.Request) *store.User {
	user, ok := r.Context().Value(ContextKeyUser).(store.User)
	if !ok {
		return nil
	}
	return &user
}

// GetUserIDPtr returns the logged-in user's id for audit entries, or nil.
func GetUserIDPtr(r *http.Request) *int64 {
	if user := GetUser(r); user != nil {
		id := user.ID
		return &id
	}
	return nil
}
