// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/oevent/internal/middleware"
	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/render"
	"github.com/olegiv/oevent/internal/service"
	"github.com/olegiv/oevent/internal/session"
	"github.com/olegiv/oevent/internal/store"
	"github.com/olegiv/oevent/internal/util"
)

// GroupsHandler handles group management.
type GroupsHandler struct {
	pages
	groups *service.GroupService
	audit  *service.AuditService
}

// NewGroupsHandler creates a new GroupsHandler.
func NewGroupsHandler(renderer *render.Renderer, sm *scs.SessionManager, groups *service.GroupService,
	audit *service.AuditService, logger *slog.Logger) *GroupsHandler {
	return &GroupsHandler{
		pages:  pages{renderer: renderer, sessions: sm, logger: logger},
		groups: groups,
		audit:  audit,
	}
}

// GroupDetailData is the data of the group detail page.
type GroupDetailData struct {
	Group   store.Group
	Members []store.User
}

// CreateForm handles GET /group/create/.
func (h *GroupsHandler) CreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, tmplGroupCreate, render.TemplateData{Title: "Create group"})
}

// Create handles POST /group/create/. Naming an existing group is not an
// error; it is reported and nothing changes.
func (h *GroupsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	actor := middleware.GetUser(r)

	group, created, err := h.groups.Create(r.Context(), *actor, r.PostFormValue("name"))
	if err != nil {
		if fields, ok := formErrors(err); ok {
			h.render(w, r, tmplGroupCreate, render.TemplateData{Title: "Create group", Form: r.PostForm, Errors: fields})
			return
		}
		h.serviceError(w, r, err, redirectAdminDashboard, "creating group")
		return
	}

	if !created {
		h.flashAndRedirect(w, r, redirectAdminDashboard, session.LevelInfo, "flash.group_exists", group.Name)
		return
	}
	_ = h.audit.LogInfo(r.Context(), model.AuditCategoryGroup, "Group created", &actor.ID, util.ClientIP(r),
		map[string]any{"group_id": group.ID, "name": group.Name})
	h.flashAndRedirect(w, r, redirectAdminDashboard, session.LevelSuccess, "flash.group_created", group.Name)
}

// Detail handles GET /group/{id}/.
func (h *GroupsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		h.notFound(w, r)
		return
	}

	group, members, err := h.groups.Detail(r.Context(), *middleware.GetUser(r), id)
	if err != nil {
		h.serviceError(w, r, err, redirectAdminDashboard, "loading group", "group_id", id)
		return
	}
	h.render(w, r, tmplGroupDetail, render.TemplateData{Title: group.Name, Data: GroupDetailData{Group: group, Members: members}})
}

// DeleteConfirm handles GET /group/delete/{id}/.
func (h *GroupsHandler) DeleteConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		h.notFound(w, r)
		return
	}

	group, err := h.groups.Get(r.Context(), *middleware.GetUser(r), id)
	if err != nil {
		h.serviceError(w, r, err, redirectAdminDashboard, "loading group", "group_id", id)
		return
	}
	h.render(w, r, tmplGroupDelete, render.TemplateData{Title: "Delete " + group.Name, Data: group})
}

// Delete handles POST /group/delete/{id}/.
func (h *GroupsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r)
	id, ok := parseIDParam(r, "id")
	if !ok {
		h.notFound(w, r)
		return
	}

	group, err := h.groups.Delete(r.Context(), *actor, id)
	if err != nil {
		h.serviceError(w, r, err, redirectAdminDashboard, "deleting group", "group_id", id)
		return
	}

	_ = h.audit.LogInfo(r.Context(), model.AuditCategoryGroup, "Group deleted", &actor.ID, util.ClientIP(r),
		map[string]any{"group_id": group.ID, "name": group.Name})
	h.flashAndRedirect(w, r, redirectAdminDashboard, session.LevelSuccess, "flash.group_deleted", group.Name)
}
