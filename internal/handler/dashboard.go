// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/oevent/internal/middleware"
	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/render"
	"github.com/olegiv/oevent/internal/scheduler"
	"github.com/olegiv/oevent/internal/service"
	"github.com/olegiv/oevent/internal/session"
	"github.com/olegiv/oevent/internal/store"
	"github.com/olegiv/oevent/internal/util"
)

// recentAuditEntries is how many audit entries the admin dashboard shows.
const recentAuditEntries = 20

// JobRunner lists and triggers scheduled jobs.
type JobRunner interface {
	List() []scheduler.JobInfo
	TriggerNow(name string) error
}

// DashboardHandler serves the three role dashboards and the admin user
// management actions.
type DashboardHandler struct {
	pages
	rbac     *service.RBACService
	accounts *service.AccountService
	events   *service.EventService
	groups   *service.GroupService
	audit    *service.AuditService
	jobs     JobRunner
}

// NewDashboardHandler creates a new DashboardHandler. jobs may be nil.
func NewDashboardHandler(renderer *render.Renderer, sm *scs.SessionManager, rbac *service.RBACService,
	accounts *service.AccountService, events *service.EventService, groups *service.GroupService,
	audit *service.AuditService, jobs JobRunner, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		pages:    pages{renderer: renderer, sessions: sm, logger: logger},
		rbac:     rbac,
		accounts: accounts,
		events:   events,
		groups:   groups,
		audit:    audit,
		jobs:     jobs,
	}
}

// AdminDashboardData is the data of the admin dashboard.
type AdminDashboardData struct {
	Users  []service.UserWithRole
	Events []store.Event
	Groups []store.Group
	Audit  []store.AuditEntry
	Jobs   []scheduler.JobInfo
}

// Admin handles GET /dashboard/admin/.
func (h *DashboardHandler) Admin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		data AdminDashboardData
		err  error
	)

	if data.Users, err = h.rbac.ListUsers(ctx); err != nil {
		h.internalError(w, r, "listing users", "error", err)
		return
	}
	if data.Events, err = h.events.List(ctx); err != nil {
		h.internalError(w, r, "listing events", "error", err)
		return
	}
	if data.Groups, err = h.groups.List(ctx); err != nil {
		h.internalError(w, r, "listing groups", "error", err)
		return
	}
	if data.Audit, err = h.audit.Recent(ctx, recentAuditEntries, 0); err != nil {
		h.logger.Warn("listing audit entries", "error", err)
	}
	if h.jobs != nil {
		data.Jobs = h.jobs.List()
	}

	h.render(w, r, tmplDashboardAdmin, render.TemplateData{Title: "Admin dashboard", Data: data})
}

// Organizer handles GET /dashboard/organizer/ with every event.
func (h *DashboardHandler) Organizer(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context())
	if err != nil {
		h.internalError(w, r, "listing events", "error", err)
		return
	}
	h.render(w, r, tmplDashboardOrganizer, render.TemplateData{Title: "Organizer dashboard", Data: events})
}

// Participant handles GET /dashboard/participant/ with the events the
// user has RSVPed to.
func (h *DashboardHandler) Participant(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	events, err := h.events.ListByRSVP(r.Context(), user.ID)
	if err != nil {
		h.internalError(w, r, "listing RSVPs", "user_id", user.ID, "error", err)
		return
	}
	h.render(w, r, tmplDashboardPartic, render.TemplateData{Title: "Participant dashboard", Data: events})
}

// RoleChangeData is the confirm page model for a role change.
type RoleChangeData struct {
	Target store.User
	Role   model.Role
}

// ChangeRoleConfirm handles GET /dashboard/admin/change_role/{user_id}/{role}/.
// It only asks for confirmation; the change itself needs a POST.
func (h *DashboardHandler) ChangeRoleConfirm(w http.ResponseWriter, r *http.Request) {
	targetID, ok := parseIDParam(r, "user_id")
	if !ok {
		h.notFound(w, r)
		return
	}
	role, ok := model.AssignableRole(chi.URLParam(r, "role"))
	if !ok {
		h.messageAndRedirect(w, r, redirectAdminDashboard, session.LevelError, "Invalid role specified.")
		return
	}
	target, err := h.accounts.GetUser(r.Context(), targetID)
	if err != nil {
		h.serviceError(w, r, err, redirectAdminDashboard, "loading user", "user_id", targetID)
		return
	}
	h.render(w, r, tmplChangeRole, render.TemplateData{
		Title: "Change role of " + target.Username,
		Data:  RoleChangeData{Target: target, Role: role},
	})
}

// ChangeRole handles /dashboard/admin/change_role/{user_id}/{role}/. Every
// outcome returns to the admin dashboard.
func (h *DashboardHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r)
	targetID, ok := parseIDParam(r, "user_id")
	if !ok {
		h.notFound(w, r)
		return
	}

	change, err := h.rbac.ChangeRole(r.Context(), *actor, targetID, chi.URLParam(r, "role"))
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			h.messageAndRedirect(w, r, redirectAdminDashboard, session.LevelError, verr.Message("role"))
			return
		}
		h.serviceError(w, r, err, redirectAdminDashboard, "changing role", "user_id", targetID)
		return
	}

	_ = h.audit.LogInfo(r.Context(), model.AuditCategoryUser, "User role changed", &actor.ID, util.ClientIP(r),
		map[string]any{"target_id": change.Target.ID, "group": change.Group})

	if change.GroupCreated {
		h.flash(r, session.LevelInfo, "flash.group_auto_created", change.Group)
	}
	h.flashAndRedirect(w, r, redirectAdminDashboard, session.LevelSuccess, "flash.role_changed", change.Target.Username, change.Group)
}

// DeleteUserConfirm handles GET /dashboard/admin/delete_user/{id}/.
func (h *DashboardHandler) DeleteUserConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		h.notFound(w, r)
		return
	}
	target, err := h.accounts.GetUser(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err, redirectAdminDashboard, "loading user", "user_id", id)
		return
	}
	h.render(w, r, tmplDeleteUser, render.TemplateData{Title: "Delete " + target.Username, Data: target})
}

// DeleteUser handles POST /dashboard/admin/delete_user/{id}/. Events the
// user organized go with them, so cached event reads are dropped.
func (h *DashboardHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r)
	id, ok := parseIDParam(r, "id")
	if !ok {
		h.notFound(w, r)
		return
	}

	target, err := h.rbac.DeleteUser(r.Context(), *actor, id)
	if err != nil {
		h.serviceError(w, r, err, redirectAdminDashboard, "deleting user", "user_id", id)
		return
	}
	h.events.Invalidate(r.Context())

	_ = h.audit.LogInfo(r.Context(), model.AuditCategoryUser, "User deleted", &actor.ID, util.ClientIP(r),
		map[string]any{"target_id": target.ID, "username": target.Username})
	h.flashAndRedirect(w, r, redirectAdminDashboard, session.LevelSuccess, "flash.user_deleted", target.Username)
}

// RunJob handles POST /dashboard/admin/jobs/{name}/run/.
func (h *DashboardHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		h.notFound(w, r)
		return
	}

	name := chi.URLParam(r, "name")
	err := h.jobs.TriggerNow(name)
	switch {
	case err == nil:
		_ = h.audit.LogInfo(r.Context(), model.AuditCategorySystem, "Job triggered manually", middleware.GetUserIDPtr(r),
			util.ClientIP(r), map[string]any{"job": name})
		h.flashAndRedirect(w, r, redirectAdminDashboard, session.LevelSuccess, "flash.job_triggered", name)
	case errors.Is(err, scheduler.ErrJobNotFound):
		h.notFound(w, r)
	case errors.Is(err, scheduler.ErrTriggerLimited):
		h.flashAndRedirect(w, r, redirectAdminDashboard, session.LevelWarning, "flash.job_rate_limited")
	default:
		h.flashAndRedirect(w, r, redirectAdminDashboard, session.LevelError, "flash.job_failed", name)
	}
}
