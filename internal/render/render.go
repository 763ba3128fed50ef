// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package render parses the HTML templates once and renders pages with the
// request's user, language and flash messages filled in.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/oevent/internal/middleware"
	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/session"
	"github.com/olegiv/oevent/internal/store"
)

const (
	baseLayout  = "layouts/base.html"
	partialsDir = "partials"
	pagesDir    = "pages"
)

// RoleResolver resolves the navigation role of the logged-in user.
type RoleResolver interface {
	RoleOf(ctx context.Context, user store.User) (model.Role, error)
}

// Renderer holds the parsed page templates.
type Renderer struct {
	templates      map[string]*template.Template
	sessionManager *scs.SessionManager
	roles          RoleResolver
	siteName       string
	logger         *slog.Logger
}

// Config holds renderer configuration.
type Config struct {
	TemplatesFS    fs.FS
	SessionManager *scs.SessionManager
	Roles          RoleResolver
	SiteName       string
	Logger         *slog.Logger
}

// TemplateData is passed to every page.
type TemplateData struct {
	Title string
	Data  any

	// Form holds submitted values to re-fill a form; Errors holds
	// per-field messages.
	Form   url.Values
	Errors map[string]string

	SiteName    string
	User        *store.User
	Role        model.Role
	Lang        string
	Flashes     []session.Flash
	CurrentPath string
	CurrentYear int
}

// New parses every page under pages/ together with the base layout and the
// partials. A page at pages/events/list.html is rendered as "events/list".
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		templates:      make(map[string]*template.Template),
		sessionManager: cfg.SessionManager,
		roles:          cfg.Roles,
		siteName:       cfg.SiteName,
		logger:         cfg.Logger,
	}
	if r.siteName == "" {
		r.siteName = "Event Management"
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	if err := r.parseTemplates(cfg.TemplatesFS); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) parseTemplates(templatesFS fs.FS) error {
	partials, err := fs.Glob(templatesFS, partialsDir+"/*.html")
	if err != nil {
		return fmt.Errorf("listing partials: %w", err)
	}

	return fs.WalkDir(templatesFS, pagesDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".html") {
			return nil
		}

		name := strings.TrimSuffix(strings.TrimPrefix(p, pagesDir+"/"), ".html")
		files := append([]string{baseLayout}, partials...)
		files = append(files, p)

		tmpl, err := template.New(path.Base(baseLayout)).Funcs(templateFuncs()).ParseFS(templatesFS, files...)
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", name, err)
		}
		r.templates[name] = tmpl
		return nil
	})
}

// Has reports whether a page template exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// Render writes the named page with status 200.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, name string, data TemplateData) error {
	return r.RenderStatus(w, req, http.StatusOK, name, data)
}

// RenderStatus writes the named page with the given status. The page is
// rendered to a buffer first so a template error never sends half a page.
func (r *Renderer) RenderStatus(w http.ResponseWriter, req *http.Request, status int, name string, data TemplateData) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}

	r.fill(req, &data)

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, "base", data); err != nil {
		return fmt.Errorf("executing template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func (r *Renderer) fill(req *http.Request, data *TemplateData) {
	ctx := req.Context()

	data.SiteName = r.siteName
	data.CurrentYear = time.Now().Year()
	data.CurrentPath = req.URL.Path
	data.Lang = middleware.GetLanguage(req)
	data.User = middleware.GetUser(req)
	if data.Errors == nil {
		data.Errors = map[string]string{}
	}
	if data.Form == nil {
		data.Form = url.Values{}
	}

	if data.User != nil && r.roles != nil && data.Role == model.RoleNone {
		role, err := r.roles.RoleOf(ctx, *data.User)
		if err != nil {
			r.logger.Debug("resolving navigation role", "user_id", data.User.ID, "error", err)
		}
		data.Role = role
	}

	if r.sessionManager != nil {
		data.Flashes = append(data.Flashes, session.PopFlashes(ctx, r.sessionManager)...)
	}
}
