// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/olegiv/oevent/internal/store"
	"github.com/olegiv/oevent/internal/testutil"
)

type stubEvents struct {
	events []store.Event
	err    error
}

func (s stubEvents) List(context.Context) ([]store.Event, error) {
	return s.events, s.err
}

func TestRobots(t *testing.T) {
	h := NewSEOHandler(stubEvents{}, "https://events.example.com", false, testutil.TestLoggerSilent())

	rec := httptest.NewRecorder()
	h.Robots(rec, httptest.NewRequest(http.MethodGet, "/robots.txt", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Sitemap: https://events.example.com/sitemap.xml") {
		t.Errorf("robots.txt = %q, want sitemap reference", rec.Body.String())
	}
}

func TestSitemap(t *testing.T) {
	events := []store.Event{
		{ID: 3, Title: "Jazz Night", Date: time.Now().Add(24 * time.Hour), UpdatedAt: time.Now()},
	}
	h := NewSEOHandler(stubEvents{events: events}, "https://events.example.com", false, testutil.TestLoggerSilent())

	rec := httptest.NewRecorder()
	h.Sitemap(rec, httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get(HeaderContentType); !strings.HasPrefix(ct, "application/xml") {
		t.Errorf("Content-Type = %q, want application/xml", ct)
	}
	if !strings.Contains(rec.Body.String(), "<loc>https://events.example.com/event/3/</loc>") {
		t.Errorf("sitemap does not list the event:\n%s", rec.Body.String())
	}
}

func TestSitemapError(t *testing.T) {
	h := NewSEOHandler(stubEvents{err: errors.New("db down")}, "https://events.example.com", false, testutil.TestLoggerSilent())

	rec := httptest.NewRecorder()
	h.Sitemap(rec, httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
