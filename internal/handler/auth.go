// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/oevent/internal/middleware"
	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/render"
	"github.com/olegiv/oevent/internal/service"
	"github.com/olegiv/oevent/internal/session"
	"github.com/olegiv/oevent/internal/util"
)

// AuthHandler handles signup, login, logout, activation and password reset.
type AuthHandler struct {
	pages
	accounts        *service.AccountService
	rbac            *service.RBACService
	audit           *service.AuditService
	loginProtection *middleware.LoginProtection
}

// NewAuthHandler creates a new AuthHandler. lp may be nil to disable
// account lockout.
func NewAuthHandler(renderer *render.Renderer, sm *scs.SessionManager, accounts *service.AccountService,
	rbac *service.RBACService, audit *service.AuditService, lp *middleware.LoginProtection, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		pages:           pages{renderer: renderer, sessions: sm, logger: logger},
		accounts:        accounts,
		rbac:            rbac,
		audit:           audit,
		loginProtection: lp,
	}
}

// SignupForm handles GET /signup/.
func (h *AuthHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, tmplSignup, render.TemplateData{Title: "Sign up"})
}

// Signup handles POST /signup/. The account is created inactive and an
// activation link is emailed.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	user, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Username:  r.PostFormValue("username"),
		Email:     r.PostFormValue("email"),
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Password:  r.PostFormValue("password1"),
		Password2: r.PostFormValue("password2"),
	})
	switch {
	case err == nil:
		h.flashAndRedirect(w, r, redirectLogin, session.LevelSuccess, "flash.signup_success")
	case errors.Is(err, service.ErrNotification):
		h.logger.Warn("activation email failed", "user_id", user.ID, "error", err)
		h.flashAndRedirect(w, r, redirectLogin, session.LevelWarning, "flash.signup_mail_failed")
	default:
		if fields, ok := formErrors(err); ok {
			r.PostForm.Del("password1")
			r.PostForm.Del("password2")
			h.render(w, r, tmplSignup, render.TemplateData{Title: "Sign up", Form: r.PostForm, Errors: fields})
			return
		}
		h.internalError(w, r, "signup failed", "error", err)
	}
}

// Activate handles GET /activate/{uid}/{token}/.
func (h *AuthHandler) Activate(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Activate(r.Context(), chi.URLParam(r, "uid"), chi.URLParam(r, "token"))
	if err != nil {
		var aerr *service.ActivationError
		if errors.As(err, &aerr) {
			h.logger.Debug("activation link rejected", "error", err)
			h.render(w, r, tmplActivationInvalid, render.TemplateData{Title: "Activation failed"})
			return
		}
		h.internalError(w, r, "activation failed", "error", err)
		return
	}

	_ = h.audit.LogInfo(r.Context(), model.AuditCategoryAuth, "Account activated", &user.ID, util.ClientIP(r), nil)
	h.flashAndRedirect(w, r, redirectLogin, session.LevelSuccess, "flash.activated")
}

// LoginForm handles GET /login/. Logged-in users go to their dashboard.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if user := middleware.GetUser(r); user != nil {
		role, err := h.rbac.RoleOf(r.Context(), *user)
		if err == nil {
			http.Redirect(w, r, role.DashboardPath(), http.StatusSeeOther)
			return
		}
	}
	h.render(w, r, tmplLogin, render.TemplateData{Title: "Log in", Data: safeNext(r.URL.Query().Get("next"))})
}

// Login handles POST /login/.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	next := safeNext(r.PostFormValue("next"))
	clientIP := util.ClientIP(r)
	meta := h.audit.ClientMetadata(r.UserAgent(), clientIP)
	meta["username"] = username

	retry := func(key string) {
		h.flash(r, session.LevelError, key)
		form := r.PostForm
		form.Del("password")
		h.render(w, r, tmplLogin, render.TemplateData{Title: "Log in", Form: form, Data: next})
	}

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsLocked(username); locked {
			meta["retry_in"] = remaining.Round(time.Second).String()
			_ = h.audit.LogWarning(r.Context(), model.AuditCategoryAuth, "Login attempt on locked account", nil, clientIP, meta)
			retry("flash.login_locked")
			return
		}
	}

	user, err := h.accounts.Authenticate(r.Context(), username, password)
	if err != nil {
		if !errors.Is(err, service.ErrInvalidCredentials) {
			h.internalError(w, r, "login failed", "error", err)
			return
		}
		_ = h.audit.LogWarning(r.Context(), model.AuditCategoryAuth, "Login failed", nil, clientIP, meta)
		if h.loginProtection != nil {
			if locked, d := h.loginProtection.RecordFailure(username); locked {
				meta["lockout"] = d.String()
				_ = h.audit.LogWarning(r.Context(), model.AuditCategoryAuth, "Account locked after failed logins", nil, clientIP, meta)
				retry("flash.login_locked")
				return
			}
		}
		retry("flash.login_invalid")
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccess(username)
	}

	role, err := h.rbac.ResolveLogin(r.Context(), user)
	if err != nil {
		h.internalError(w, r, "resolving role at login", "user_id", user.ID, "error", err)
		return
	}
	if err := session.Login(r.Context(), h.sessions, user.ID); err != nil {
		h.internalError(w, r, "starting session", "user_id", user.ID, "error", err)
		return
	}

	meta["role"] = string(role)
	_ = h.audit.LogInfo(r.Context(), model.AuditCategoryAuth, "User logged in", &user.ID, clientIP, meta)

	// Superusers always land on the admin dashboard.
	target := role.DashboardPath()
	if next != "" && !user.IsSuperuser {
		target = next
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Logout handles GET and POST /logout/.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if user := middleware.GetUser(r); user != nil {
		_ = h.audit.LogInfo(r.Context(), model.AuditCategoryAuth, "User logged out", &user.ID, util.ClientIP(r), nil)
	}
	if err := session.Logout(r.Context(), h.sessions); err != nil {
		h.logger.Error("destroying session", "error", err)
	}
	h.flashAndRedirect(w, r, redirectLogin, session.LevelInfo, "flash.logged_out")
}

// PasswordResetForm handles GET /password_reset/.
func (h *AuthHandler) PasswordResetForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, tmplPasswordReset, render.TemplateData{Title: "Password reset"})
}

// PasswordReset handles POST /password_reset/. The response is the same
// whether or not an account uses the address.
func (h *AuthHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err := h.accounts.RequestPasswordReset(r.Context(), r.PostFormValue("email"))
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNotification):
		h.logger.Warn("password reset email failed", "error", err)
	default:
		if fields, ok := formErrors(err); ok {
			h.render(w, r, tmplPasswordReset, render.TemplateData{Title: "Password reset", Form: r.PostForm, Errors: fields})
			return
		}
		h.internalError(w, r, "password reset request failed", "error", err)
		return
	}
	http.Redirect(w, r, redirectPasswordResetDone, http.StatusSeeOther)
}

// PasswordResetDone handles GET /password_reset/done/.
func (h *AuthHandler) PasswordResetDone(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, tmplPasswordResetDone, render.TemplateData{Title: "Password reset sent"})
}

// PasswordResetConfirmForm handles GET /reset/{uid}/{token}/.
func (h *AuthHandler) PasswordResetConfirmForm(w http.ResponseWriter, r *http.Request) {
	_, err := h.accounts.CheckResetLink(r.Context(), chi.URLParam(r, "uid"), chi.URLParam(r, "token"))
	h.renderResetForm(w, r, err)
}

// PasswordResetConfirm handles POST /reset/{uid}/{token}/.
func (h *AuthHandler) PasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	user, err := h.accounts.ResetPassword(r.Context(), chi.URLParam(r, "uid"), chi.URLParam(r, "token"),
		r.PostFormValue("new_password1"), r.PostFormValue("new_password2"))
	if err != nil {
		h.renderResetForm(w, r, err)
		return
	}

	_ = h.audit.LogInfo(r.Context(), model.AuditCategoryAuth, "Password reset", &user.ID, util.ClientIP(r), nil)
	http.Redirect(w, r, redirectPasswordResetEnd, http.StatusSeeOther)
}

// renderResetForm shows the new-password form, the invalid-link page or
// the form with field errors depending on err.
func (h *AuthHandler) renderResetForm(w http.ResponseWriter, r *http.Request, err error) {
	data := render.TemplateData{Title: "Choose a new password", Data: true}
	if err != nil {
		var aerr *service.ActivationError
		if errors.As(err, &aerr) {
			h.logger.Debug("reset link rejected", "error", err)
			data.Data = false
			h.render(w, r, tmplPasswordResetForm, data)
			return
		}
		fields, ok := formErrors(err)
		if !ok {
			h.internalError(w, r, "password reset failed", "error", err)
			return
		}
		data.Errors = fields
	}
	h.render(w, r, tmplPasswordResetForm, data)
}

// PasswordResetComplete handles GET /reset/done/.
func (h *AuthHandler) PasswordResetComplete(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, tmplPasswordResetEnd, render.TemplateData{Title: "Password reset complete"})
}
