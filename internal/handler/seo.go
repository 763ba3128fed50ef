// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/olegiv/oevent/internal/seo"
	"github.com/olegiv/oevent/internal/store"
)

// EventLister lists every event.
type EventLister interface {
	List(ctx context.Context) ([]store.Event, error)
}

// SEOHandler serves robots.txt and sitemap.xml.
type SEOHandler struct {
	events      EventLister
	siteURL     string
	disallowAll bool
	logger      *slog.Logger
}

// NewSEOHandler creates a new SEOHandler. With disallowAll set, robots.txt
// blocks every crawler.
func NewSEOHandler(events EventLister, siteURL string, disallowAll bool, logger *slog.Logger) *SEOHandler {
	return &SEOHandler{events: events, siteURL: siteURL, disallowAll: disallowAll, logger: logger}
}

// Robots handles GET /robots.txt.
func (h *SEOHandler) Robots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(HeaderContentType, "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write([]byte(seo.GenerateRobots(seo.RobotsConfig{SiteURL: h.siteURL, DisallowAll: h.disallowAll})))
}

// Sitemap handles GET /sitemap.xml.
func (h *SEOHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context())
	if err != nil {
		logAndInternalError(w, h.logger, "listing events for sitemap", "error", err)
		return
	}

	entries := make([]seo.SitemapEvent, 0, len(events))
	for _, e := range events {
		entries = append(entries, seo.SitemapEvent{ID: e.ID, Date: e.Date, UpdatedAt: e.UpdatedAt})
	}

	data, err := seo.GenerateSitemap(h.siteURL, time.Now(), entries)
	if err != nil {
		logAndInternalError(w, h.logger, "building sitemap", "error", err)
		return
	}

	w.Header().Set(HeaderContentType, "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(data)
}
