// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/service"
	"github.com/olegiv/oevent/internal/store"
)

// EventReader is the part of service.EventService the API reads from.
type EventReader interface {
	List(ctx context.Context) ([]store.Event, error)
	Get(ctx context.Context, id int64) (store.Event, error)
	Attendees(ctx context.Context, eventID int64) ([]store.User, error)
	Organizer(ctx context.Context, event store.Event) (store.User, bool, error)
}

// Handler serves /api/v1.
type Handler struct {
	events EventReader
	logger *slog.Logger
}

// NewHandler creates an API handler.
func NewHandler(events EventReader, logger *slog.Logger) *Handler {
	return &Handler{events: events, logger: logger}
}

// EventResponse represents an event in API responses.
type EventResponse struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description"`
	Date          time.Time `json:"date"`
	Category      string    `json:"category"`
	CategoryLabel string    `json:"category_label"`
	ImageURL      string    `json:"image_url,omitempty"`
	Organizer     string    `json:"organizer,omitempty"`
	Attendees     *int      `json:"attendees,omitempty"`
}

func eventToResponse(e store.Event) EventResponse {
	resp := EventResponse{
		ID:            e.ID,
		Title:         e.Title,
		Slug:          e.Slug,
		Description:   e.Description,
		Date:          e.Date.UTC(),
		Category:      e.Category,
		CategoryLabel: model.Category(e.Category).Label(),
	}
	if e.Image != "" {
		resp.ImageURL = "/media/" + e.Image
	}
	return resp
}

// ListEvents handles GET /api/v1/events. ?category= filters by category.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category != "" && !model.Category(category).Valid() {
		WriteBadRequest(w, "unknown category")
		return
	}

	events, err := h.events.List(r.Context())
	if err != nil {
		h.logger.Error("api: listing events", "error", err)
		WriteInternalError(w)
		return
	}

	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, eventToResponse(e))
	}
	WriteSuccess(w, out, &Meta{Total: len(out)})
}

// GetEvent handles GET /api/v1/events/{id}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteBadRequest(w, "invalid event id")
		return
	}

	event, err := h.events.Get(r.Context(), id)
	if err != nil {
		var nf *service.NotFoundError
		if errors.As(err, &nf) {
			WriteNotFound(w, "event not found")
			return
		}
		h.logger.Error("api: loading event", "event_id", id, "error", err)
		WriteInternalError(w)
		return
	}

	resp := eventToResponse(event)
	if organizer, ok, err := h.events.Organizer(r.Context(), event); err == nil && ok {
		resp.Organizer = organizer.Username
	}
	if attendees, err := h.events.Attendees(r.Context(), event.ID); err == nil {
		n := len(attendees)
		resp.Attendees = &n
	}
	WriteSuccess(w, resp, nil)
}
