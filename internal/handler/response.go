// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/oevent/internal/i18n"
	"github.com/olegiv/oevent/internal/middleware"
	"github.com/olegiv/oevent/internal/render"
	"github.com/olegiv/oevent/internal/service"
	"github.com/olegiv/oevent/internal/session"
)

// pages bundles what every HTML handler needs to answer a request.
type pages struct {
	renderer *render.Renderer
	sessions *scs.SessionManager
	logger   *slog.Logger
}

// flash queues a translated message for the next rendered page.
func (p pages) flash(r *http.Request, level, key string, args ...any) {
	session.AddFlash(r.Context(), p.sessions, level, i18n.T(middleware.GetLanguage(r), key, args...))
}

// flashAndRedirect queues a translated flash message and redirects with
// 303 See Other.
func (p pages) flashAndRedirect(w http.ResponseWriter, r *http.Request, target, level, key string, args ...any) {
	p.flash(r, level, key, args...)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// messageAndRedirect queues an already formatted message, such as the text
// of a PermissionError.
func (p pages) messageAndRedirect(w http.ResponseWriter, r *http.Request, target, level, message string) {
	session.AddFlash(r.Context(), p.sessions, level, message)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (p pages) render(w http.ResponseWriter, r *http.Request, name string, data render.TemplateData) {
	p.renderStatus(w, r, http.StatusOK, name, data)
}

func (p pages) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data render.TemplateData) {
	if err := p.renderer.RenderStatus(w, r, status, name, data); err != nil {
		logAndInternalError(w, p.logger, "failed to render page", "template", name, "error", err)
	}
}

// notFound renders the 404 page.
func (p pages) notFound(w http.ResponseWriter, r *http.Request) {
	p.renderStatus(w, r, http.StatusNotFound, tmplNotFound, render.TemplateData{Title: "Not found"})
}

// NotFound is the router's 404 handler.
func (p pages) NotFound(w http.ResponseWriter, r *http.Request) {
	p.notFound(w, r)
}

// serviceError answers a failed service call. A NotFoundError renders the
// 404 page; a PermissionError is flashed and redirected to fallback;
// anything else is logged as a 500.
func (p pages) serviceError(w http.ResponseWriter, r *http.Request, err error, fallback, logMsg string, args ...any) {
	var nf *service.NotFoundError
	var perm *service.PermissionError
	switch {
	case errors.As(err, &nf):
		p.notFound(w, r)
	case errors.As(err, &perm):
		p.messageAndRedirect(w, r, fallback, session.LevelError, perm.Message)
	default:
		p.internalError(w, r, logMsg, append(args, "error", err)...)
	}
}

// internalError logs an error and renders the 500 page.
func (p pages) internalError(w http.ResponseWriter, r *http.Request, logMsg string, args ...any) {
	p.logger.Error(logMsg, args...)
	if err := p.renderer.RenderStatus(w, r, http.StatusInternalServerError, tmplServerError, render.TemplateData{Title: "Server error"}); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// logAndInternalError logs an error and writes a 500 Internal Server Error response.
func logAndInternalError(w http.ResponseWriter, logger *slog.Logger, logMsg string, args ...any) {
	logger.Error(logMsg, args...)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// formErrors extracts per-field messages from a validation or integrity
// error. ok is false for any other error.
func formErrors(err error) (fields map[string]string, ok bool) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields, true
	}
	var ierr *service.IntegrityError
	if errors.As(err, &ierr) {
		return map[string]string{ierr.Field: ierr.Message}, true
	}
	return nil, false
}

// parseIDParam reads a positive integer URL parameter.
func parseIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// safeNext returns next when it is a local path, otherwise "".
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return ""
	}
	return next
}
