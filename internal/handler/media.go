// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/oevent/internal/render"
	"github.com/olegiv/oevent/internal/util"
)

// MediaHandler serves uploaded event images and profile pictures.
type MediaHandler struct {
	pages
	uploadsDir string
}

// NewMediaHandler creates a new MediaHandler rooted at uploadsDir.
func NewMediaHandler(renderer *render.Renderer, sm *scs.SessionManager, uploadsDir string, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		pages:      pages{renderer: renderer, sessions: sm, logger: logger},
		uploadsDir: uploadsDir,
	}
}

// Serve handles GET /media/*. Paths that escape the uploads directory,
// directories and missing files are 404.
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if rel == "" {
		h.notFound(w, r)
		return
	}

	path, err := util.SafeJoinPath(h.uploadsDir, strings.Split(rel, "/")...)
	if err != nil {
		h.notFound(w, r)
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		h.notFound(w, r)
		return
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, path)
}
