// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/oevent/internal/middleware"
	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/render"
	"github.com/olegiv/oevent/internal/service"
	"github.com/olegiv/oevent/internal/session"
	"github.com/olegiv/oevent/internal/store"
	"github.com/olegiv/oevent/internal/util"
)

// EventsHandler handles the public event pages, event CRUD and RSVP.
type EventsHandler struct {
	pages
	events *service.EventService
	audit  *service.AuditService
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(renderer *render.Renderer, sm *scs.SessionManager, events *service.EventService,
	audit *service.AuditService, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		pages:  pages{renderer: renderer, sessions: sm, logger: logger},
		events: events,
		audit:  audit,
	}
}

// EventDetailData is the data of the event detail page.
type EventDetailData struct {
	Event     store.Event
	Organizer *store.User
	Attendees []store.User
	HasRSVP   bool
}

// List handles GET / with every event ordered by date.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context())
	if err != nil {
		h.internalError(w, r, "listing events", "error", err)
		return
	}
	h.render(w, r, tmplEventList, render.TemplateData{Title: "Events", Data: events})
}

// Detail handles GET /event/{id}/.
func (h *EventsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		h.notFound(w, r)
		return
	}

	event, err := h.events.Get(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err, redirectHome, "loading event", "event_id", id)
		return
	}

	data := EventDetailData{Event: event}
	if organizer, found, err := h.events.Organizer(r.Context(), event); err != nil {
		h.logger.Warn("loading organizer", "event_id", id, "error", err)
	} else if found {
		data.Organizer = &organizer
	}

	data.Attendees, err = h.events.Attendees(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "loading attendees", "event_id", id, "error", err)
		return
	}

	if user := middleware.GetUser(r); user != nil {
		data.HasRSVP, err = h.events.HasRSVP(r.Context(), id, user.ID)
		if err != nil {
			h.logger.Warn("checking RSVP", "event_id", id, "user_id", user.ID, "error", err)
		}
	}

	h.render(w, r, tmplEventDetail, render.TemplateData{Title: event.Title, Data: data})
}

// NewForm handles GET /event/new/.
func (h *EventsHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	form := url.Values{}
	form.Set("category", string(model.DefaultCategory))
	h.render(w, r, tmplEventForm, render.TemplateData{Title: "New event", Form: form})
}

// Create handles POST /event/new/. The creator becomes the organizer.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	in, cleanup, ok := h.parseEventForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	event, err := h.events.Create(r.Context(), in, *user)
	if err != nil {
		if fields, ok := formErrors(err); ok {
			h.render(w, r, tmplEventForm, render.TemplateData{Title: "New event", Form: r.PostForm, Errors: fields})
			return
		}
		h.internalError(w, r, "creating event", "error", err)
		return
	}

	_ = h.audit.LogInfo(r.Context(), model.AuditCategoryEvent, "Event created", &user.ID, util.ClientIP(r),
		map[string]any{"event_id": event.ID, "title": event.Title})
	h.flashAndRedirect(w, r, fmt.Sprintf(redirectEventF, event.ID), session.LevelSuccess, "flash.event_created", event.Title)
}

// EditForm handles GET /event/{id}/edit/.
func (h *EventsHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}

	form := url.Values{}
	form.Set("title", event.Title)
	form.Set("description", event.Description)
	form.Set("date", event.Date.UTC().Format(model.DateInputLayout))
	form.Set("category", event.Category)
	h.render(w, r, tmplEventForm, render.TemplateData{Title: "Edit " + event.Title, Data: &event, Form: form})
}

// Update handles POST /event/{id}/edit/. The slug is kept.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}

	in, cleanup, ok := h.parseEventForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	updated, err := h.events.Update(r.Context(), event.ID, in)
	if err != nil {
		if fields, ok := formErrors(err); ok {
			h.render(w, r, tmplEventForm, render.TemplateData{Title: "Edit " + event.Title, Data: &event, Form: r.PostForm, Errors: fields})
			return
		}
		h.serviceError(w, r, err, redirectHome, "updating event", "event_id", event.ID)
		return
	}

	_ = h.audit.LogInfo(r.Context(), model.AuditCategoryEvent, "Event updated", middleware.GetUserIDPtr(r), util.ClientIP(r),
		map[string]any{"event_id": updated.ID})
	h.flashAndRedirect(w, r, fmt.Sprintf(redirectEventF, updated.ID), session.LevelSuccess, "flash.event_updated", updated.Title)
}

// DeleteConfirm handles GET /event/{id}/delete/.
func (h *EventsHandler) DeleteConfirm(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}
	h.render(w, r, tmplEventDelete, render.TemplateData{Title: "Delete " + event.Title, Data: event})
}

// Delete handles POST /event/{id}/delete/.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		h.notFound(w, r)
		return
	}

	event, err := h.events.Delete(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err, redirectHome, "deleting event", "event_id", id)
		return
	}

	_ = h.audit.LogInfo(r.Context(), model.AuditCategoryEvent, "Event deleted", middleware.GetUserIDPtr(r), util.ClientIP(r),
		map[string]any{"event_id": event.ID, "title": event.Title})
	h.flashAndRedirect(w, r, redirectHome, session.LevelSuccess, "flash.event_deleted", event.Title)
}

// RSVP handles POST /event/{id}/rsvp/. Repeating an RSVP is harmless.
func (h *EventsHandler) RSVP(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	id, ok := parseIDParam(r, "id")
	if !ok {
		h.notFound(w, r)
		return
	}

	result, err := h.events.RSVP(r.Context(), user.ID, id)
	target := fmt.Sprintf(redirectEventF, id)
	switch {
	case err == nil:
		h.flashAndRedirect(w, r, target, session.LevelSuccess, "flash.rsvp_success")
	case errors.Is(err, service.ErrNotification):
		h.logger.Warn("RSVP confirmation email failed", "event_id", result.Event.ID, "user_id", user.ID, "error", err)
		h.flashAndRedirect(w, r, target, session.LevelWarning, "flash.rsvp_mail_failed")
	default:
		h.serviceError(w, r, err, redirectHome, "recording RSVP", "event_id", id, "user_id", user.ID)
	}
}

func (h *EventsHandler) loadEvent(w http.ResponseWriter, r *http.Request) (store.Event, bool) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		h.notFound(w, r)
		return store.Event{}, false
	}
	event, err := h.events.Get(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err, redirectHome, "loading event", "event_id", id)
		return store.Event{}, false
	}
	return event, true
}

// parseEventForm reads the multipart event form. The returned cleanup
// releases the uploaded file and any temporary files.
func (h *EventsHandler) parseEventForm(w http.ResponseWriter, r *http.Request) (service.EventInput, func(), bool) {
	file, cleanup, err := parseUpload(w, r, "image")
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return service.EventInput{}, nil, false
	}

	return service.EventInput{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		Date:        r.PostFormValue("date"),
		Category:    r.PostFormValue("category"),
		Image:       file,
	}, cleanup, true
}

// parseUpload parses a multipart form and opens the optional file field.
// A missing or empty file yields a nil reader.
func parseUpload(w http.ResponseWriter, r *http.Request, field string) (io.Reader, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormMemory*2)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, func() {}, err
	}

	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	file, header, err := r.FormFile(field)
	if err != nil || header.Size == 0 {
		if file != nil {
			_ = file.Close()
		}
		return nil, cleanup, nil
	}

	return file, func() {
		_ = file.Close()
		cleanup()
	}, nil
}
