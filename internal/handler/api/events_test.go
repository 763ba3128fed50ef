// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/oevent/internal/service"
	"github.com/olegiv/oevent/internal/store"
	"github.com/olegiv/oevent/internal/testutil"
)

type fakeEvents struct {
	events    []store.Event
	attendees map[int64][]store.User
	organizer map[int64]store.User
	err       error
}

func (f *fakeEvents) List(context.Context) ([]store.Event, error) {
	return f.events, f.err
}

func (f *fakeEvents) Get(_ context.Context, id int64) (store.Event, error) {
	if f.err != nil {
		return store.Event{}, f.err
	}
	for _, e := range f.events {
		if e.ID == id {
			return e, nil
		}
	}
	return store.Event{}, &service.NotFoundError{Resource: "event", ID: id}
}

func (f *fakeEvents) Attendees(_ context.Context, id int64) ([]store.User, error) {
	return f.attendees[id], nil
}

func (f *fakeEvents) Organizer(_ context.Context, e store.Event) (store.User, bool, error) {
	u, ok := f.organizer[e.ID]
	return u, ok, nil
}

func sampleEvents() *fakeEvents {
	date := time.Date(2026, 5, 1, 19, 30, 0, 0, time.UTC)
	return &fakeEvents{
		events: []store.Event{
			{ID: 1, Title: "Jazz Night", Slug: "jazz-night", Category: "music", Date: date, Image: "events/a.png", OrganizerID: sql.NullInt64{Int64: 3, Valid: true}},
			{ID: 2, Title: "Go Meetup", Slug: "go-meetup", Category: "tech", Date: date.Add(24 * time.Hour)},
		},
		attendees: map[int64][]store.User{1: {{ID: 5}, {ID: 6}}},
		organizer: map[int64]store.User{1: {ID: 3, Username: "olga"}},
	}
}

func get(t *testing.T, h http.HandlerFunc, target string, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if params != nil {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestListEvents(t *testing.T) {
	h := NewHandler(sampleEvents(), testutil.TestLoggerSilent())

	rec := get(t, h.ListEvents, "/api/v1/events", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp struct {
		Data []EventResponse `json:"data"`
		Meta Meta            `json:"meta"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Meta.Total != 2 || len(resp.Data) != 2 {
		t.Fatalf("total = %d, len = %d, want 2", resp.Meta.Total, len(resp.Data))
	}
	if resp.Data[0].ImageURL != "/media/events/a.png" {
		t.Errorf("ImageURL = %q", resp.Data[0].ImageURL)
	}
	if resp.Data[1].CategoryLabel != "Technology" {
		t.Errorf("CategoryLabel = %q", resp.Data[1].CategoryLabel)
	}
}

func TestListEventsCategoryFilter(t *testing.T) {
	h := NewHandler(sampleEvents(), testutil.TestLoggerSilent())

	rec := get(t, h.ListEvents, "/api/v1/events?category=tech", nil)
	var resp struct {
		Data []EventResponse `json:"data"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Data) != 1 || resp.Data[0].Slug != "go-meetup" {
		t.Errorf("filtered = %+v", resp.Data)
	}

	rec = get(t, h.ListEvents, "/api/v1/events?category=cooking", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown category status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestListEventsError(t *testing.T) {
	h := NewHandler(&fakeEvents{err: errors.New("db down")}, testutil.TestLoggerSilent())

	rec := get(t, h.ListEvents, "/api/v1/events", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestGetEvent(t *testing.T) {
	h := NewHandler(sampleEvents(), testutil.TestLoggerSilent())

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{"found", "1", http.StatusOK},
		{"missing", "99", http.StatusNotFound},
		{"not a number", "abc", http.StatusBadRequest},
		{"zero", "0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h.GetEvent, "/api/v1/events/"+tt.id, map[string]string{"id": tt.id})
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}

	rec := get(t, h.GetEvent, "/api/v1/events/1", map[string]string{"id": "1"})
	var resp struct {
		Data EventResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Organizer != "olga" {
		t.Errorf("Organizer = %q, want olga", resp.Data.Organizer)
	}
	if resp.Data.Attendees == nil || *resp.Data.Attendees != 2 {
		t.Errorf("Attendees = %v, want 2", resp.Data.Attendees)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for unknown origin = %q, want empty", got)
	}
}
