// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/oevent/internal/middleware"
	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/render"
	"github.com/olegiv/oevent/internal/service"
	"github.com/olegiv/oevent/internal/session"
	"github.com/olegiv/oevent/internal/store"
	"github.com/olegiv/oevent/internal/util"
)

// ProfileHandler handles the logged-in user's profile pages.
type ProfileHandler struct {
	pages
	accounts *service.AccountService
	events   *service.EventService
	audit    *service.AuditService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(renderer *render.Renderer, sm *scs.SessionManager, accounts *service.AccountService,
	events *service.EventService, audit *service.AuditService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		pages:    pages{renderer: renderer, sessions: sm, logger: logger},
		accounts: accounts,
		events:   events,
		audit:    audit,
	}
}

// ProfileData is the data of the profile page.
type ProfileData struct {
	User  store.User
	RSVPs []store.Event
}

// Show handles GET /profile/.
func (h *ProfileHandler) Show(w http.ResponseWriter, r *http.Request) {
	user := *middleware.GetUser(r)

	rsvps, err := h.events.ListByRSVP(r.Context(), user.ID)
	if err != nil {
		h.internalError(w, r, "listing RSVPs", "user_id", user.ID, "error", err)
		return
	}
	h.render(w, r, tmplProfile, render.TemplateData{Title: "Profile", Data: ProfileData{User: user, RSVPs: rsvps}})
}

// EditForm handles GET /profile/edit/.
func (h *ProfileHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	user := *middleware.GetUser(r)

	form := url.Values{}
	form.Set("first_name", user.FirstName)
	form.Set("last_name", user.LastName)
	form.Set("email", user.Email)
	form.Set("phone_number", user.PhoneNumber)
	h.render(w, r, tmplProfileEdit, render.TemplateData{Title: "Edit profile", Data: user, Form: form})
}

// Edit handles POST /profile/edit/.
func (h *ProfileHandler) Edit(w http.ResponseWriter, r *http.Request) {
	user := *middleware.GetUser(r)

	picture, cleanup, err := parseUpload(w, r, "profile_picture")
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer cleanup()

	_, err = h.accounts.UpdateProfile(r.Context(), user.ID, service.ProfileInput{
		FirstName:   r.PostFormValue("first_name"),
		LastName:    r.PostFormValue("last_name"),
		Email:       r.PostFormValue("email"),
		PhoneNumber: r.PostFormValue("phone_number"),
		Picture:     picture,
	})
	if err != nil {
		if fields, ok := formErrors(err); ok {
			h.render(w, r, tmplProfileEdit, render.TemplateData{Title: "Edit profile", Data: user, Form: r.PostForm, Errors: fields})
			return
		}
		h.serviceError(w, r, err, redirectProfile, "updating profile", "user_id", user.ID)
		return
	}

	h.flashAndRedirect(w, r, redirectProfile, session.LevelSuccess, "flash.profile_updated")
}

// ChangePasswordForm handles GET /profile/change_password/.
func (h *ProfileHandler) ChangePasswordForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, tmplChangePassword, render.TemplateData{Title: "Change password"})
}

// ChangePassword handles POST /profile/change_password/. The session is
// renewed so the user stays logged in.
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	user := middleware.GetUser(r)

	_, err := h.accounts.ChangePassword(r.Context(), user.ID,
		r.PostFormValue("old_password"), r.PostFormValue("new_password1"), r.PostFormValue("new_password2"))
	if err != nil {
		if fields, ok := formErrors(err); ok {
			h.render(w, r, tmplChangePassword, render.TemplateData{Title: "Change password", Errors: fields})
			return
		}
		h.serviceError(w, r, err, redirectProfile, "changing password", "user_id", user.ID)
		return
	}

	if err := session.Login(r.Context(), h.sessions, user.ID); err != nil {
		h.internalError(w, r, "renewing session", "user_id", user.ID, "error", err)
		return
	}
	_ = h.audit.LogInfo(r.Context(), model.AuditCategoryAuth, "Password changed", &user.ID, util.ClientIP(r), nil)
	h.flashAndRedirect(w, r, redirectProfile, session.LevelSuccess, "flash.password_changed")
}
