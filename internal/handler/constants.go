// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

// Route patterns for chi router registration.
const (
	RouteRoot   = "/"
	RouteSignup = "/signup"
	RouteLogin  = "/login"
	RouteLogout = "/logout"

	RouteActivate             = "/activate/{uid}/{token}"
	RoutePasswordReset        = "/password_reset"
	RoutePasswordResetDone    = "/password_reset/done"
	RoutePasswordResetConfirm = "/reset/{uid}/{token}"
	RoutePasswordResetFinish  = "/reset/done"

	RouteEventNew    = "/event/new"
	RouteEventID     = "/event/{id}"
	RouteEventEdit   = RouteEventID + "/edit"
	RouteEventDelete = RouteEventID + "/delete"
	RouteEventRSVP   = RouteEventID + "/rsvp"

	RouteDashboardAdmin       = "/dashboard/admin"
	RouteDashboardChangeRole  = RouteDashboardAdmin + "/change_role/{user_id}/{role}"
	RouteDashboardDeleteUser  = RouteDashboardAdmin + "/delete_user/{id}"
	RouteDashboardRunJob      = RouteDashboardAdmin + "/jobs/{name}/run"
	RouteDashboardOrganizer   = "/dashboard/organizer"
	RouteDashboardParticipant = "/dashboard/participant"

	RouteGroupCreate = "/group/create"
	RouteGroupDelete = "/group/delete/{id}"
	RouteGroupID     = "/group/{id}"

	RouteProfile               = "/profile"
	RouteProfileEdit           = "/profile/edit"
	RouteProfileChangePassword = "/profile/change_password"

	RouteMedia   = "/media/*"
	RouteHealth  = "/health"
	RouteRobots  = "/robots.txt"
	RouteSitemap = "/sitemap.xml"
)

// Redirect targets. Pages are linked with a trailing slash; the router
// strips it before matching.
const (
	redirectHome              = "/"
	redirectLogin             = "/login/"
	redirectAdminDashboard    = "/dashboard/admin/"
	redirectProfile           = "/profile/"
	redirectPasswordResetDone = "/password_reset/done/"
	redirectPasswordResetEnd  = "/reset/done/"
	redirectEventF            = "/event/%d/"
)

// Template names.
const (
	tmplEventList          = "events/list"
	tmplEventDetail        = "events/detail"
	tmplEventForm          = "events/form"
	tmplEventDelete        = "events/confirm_delete"
	tmplSignup             = "accounts/signup"
	tmplLogin              = "accounts/login"
	tmplActivationInvalid  = "accounts/activation_invalid"
	tmplPasswordReset      = "accounts/password_reset"
	tmplPasswordResetDone  = "accounts/password_reset_done"
	tmplPasswordResetForm  = "accounts/password_reset_confirm"
	tmplPasswordResetEnd   = "accounts/password_reset_complete"
	tmplProfile            = "accounts/profile"
	tmplProfileEdit        = "accounts/profile_edit"
	tmplChangePassword     = "accounts/change_password"
	tmplDashboardAdmin     = "dashboard/admin"
	tmplDashboardOrganizer = "dashboard/organizer"
	tmplDashboardPartic    = "dashboard/participant"
	tmplDeleteUser         = "dashboard/confirm_delete_user"
	tmplChangeRole         = "dashboard/confirm_change_role"
	tmplGroupCreate        = "groups/create"
	tmplGroupDetail        = "groups/detail"
	tmplGroupDelete        = "groups/confirm_delete"
	tmplNotFound           = "errors/404"
	tmplServerError        = "errors/500"
)

// maxFormMemory bounds in-memory multipart parsing; larger parts spill to disk.
const maxFormMemory = 8 << 20

// HeaderContentType is the Content-Type HTTP header name.
const HeaderContentType = "Content-Type"
