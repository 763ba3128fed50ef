// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/olegiv/oevent/internal/cache"
	"github.com/olegiv/oevent/internal/imaging"
	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/store"
	"github.com/olegiv/oevent/internal/util"
)

// Cache keys for public event reads.
const (
	cacheKeyPrefix    = "events:"
	cacheKeyEventList = cacheKeyPrefix + "list"
)

const (
	msgDuplicateTitle = "An event with this title already exists."
	msgTitleNoSlug    = "Title must contain at least one letter or digit."
	msgInvalidDate    = "Enter a valid date/time."
)

// EventInput is the event form. A nil Image keeps the current image.
type EventInput struct {
	Title       string
	Description string
	Date        string // model.DateInputLayout, interpreted as UTC
	Category    string
	Image       io.Reader
}

// RSVPResult describes a completed RSVP call.
type RSVPResult struct {
	Event   store.Event
	Created bool // false when the user had already RSVPed
}

// EventService manages events and RSVPs.
type EventService struct {
	db        *sql.DB
	queries   *store.Queries
	processor *imaging.Processor
	notifier  Notifier
	events    *cache.TypedCache[store.Event]
	lists     *cache.TypedCache[[]store.Event]
	cache     cache.Cache
	logger    *slog.Logger
}

// NewEventService creates an EventService. c caches public reads and is
// invalidated on every mutation.
func NewEventService(db *sql.DB, processor *imaging.Processor, notifier Notifier, c cache.Cache, ttl time.Duration, logger *slog.Logger) *EventService {
	return &EventService{
		db:        db,
		queries:   store.New(db),
		processor: processor,
		notifier:  notifier,
		events:    cache.NewTypedCache[store.Event](c, ttl),
		lists:     cache.NewTypedCache[[]store.Event](c, ttl),
		cache:     c,
		logger:    logger,
	}
}

type eventFields struct {
	title       string
	description string
	date        time.Time
	category    model.Category
}

func parseEventInput(in EventInput) (eventFields, *ValidationError) {
	verr := &ValidationError{}
	f := eventFields{
		title:       strings.TrimSpace(in.Title),
		description: strings.TrimSpace(in.Description),
		category:    model.Category(strings.TrimSpace(in.Category)),
	}

	switch {
	case f.title == "":
		verr.Add("title", msgRequired)
	case utf8.RuneCountInString(f.title) > model.MaxTitleLength:
		verr.Add("title", fmt.Sprintf("Ensure this value has at most %d characters.", model.MaxTitleLength))
	}

	if f.description == "" {
		verr.Add("description", msgRequired)
	}

	date := strings.TrimSpace(in.Date)
	if date == "" {
		verr.Add("date", msgRequired)
	} else if t, err := time.ParseInLocation(model.DateInputLayout, date, time.UTC); err != nil {
		verr.Add("date", msgInvalidDate)
	} else {
		f.date = t
	}

	if f.category == "" {
		f.category = model.DefaultCategory
	} else if !f.category.Valid() {
		verr.Add("category", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", f.category))
	}
	return f, verr
}

// Create validates the form and stores a new event organized by organizer.
// The slug is derived from the title; a collision yields an *IntegrityError.
func (s *EventService) Create(ctx context.Context, in EventInput, organizer store.User) (store.Event, error) {
	f, verr := parseEventInput(in)
	slug := util.Slugify(f.title)
	if f.title != "" && slug == "" {
		verr.Add("title", msgTitleNoSlug)
	}
	if err := verr.orNil(); err != nil {
		return store.Event{}, err
	}

	var image string
	if in.Image != nil {
		var err error
		if image, err = saveImage(s.processor, in.Image, imaging.KindEvent, "image"); err != nil {
			return store.Event{}, err
		}
	}

	var event store.Event
	err := store.InTx(ctx, s.db, func(q *store.Queries) error {
		if _, err := q.GetEventBySlug(ctx, slug); err == nil {
			return &IntegrityError{Field: "title", Message: msgDuplicateTitle}
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking slug: %w", err)
		}

		now := time.Now().UTC()
		var err error
		event, err = q.CreateEvent(ctx, store.CreateEventParams{
			Title:       f.title,
			Slug:        slug,
			Description: f.description,
			Date:        f.date,
			Category:    string(f.category),
			Image:       image,
			OrganizerID: sql.NullInt64{Int64: organizer.ID, Valid: organizer.ID != 0},
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if isUniqueViolation(err, "events.slug") {
			return &IntegrityError{Field: "title", Message: msgDuplicateTitle}
		}
		if err != nil {
			return fmt.Errorf("creating event: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = s.processor.Delete(image)
		return store.Event{}, err
	}

	s.Invalidate(ctx)
	s.logger.Info("event created", "event_id", event.ID, "slug", event.Slug, "organizer_id", organizer.ID)
	return event, nil
}

// Update validates the form and saves it over an existing event. The slug
// assigned at creation is kept.
func (s *EventService) Update(ctx context.Context, id int64, in EventInput) (store.Event, error) {
	current, err := s.queries.GetEventByID(ctx, id)
	if err != nil {
		return store.Event{}, notFound(err, "event", id)
	}

	f, verr := parseEventInput(in)
	if err := verr.orNil(); err != nil {
		return store.Event{}, err
	}

	image := current.Image
	if in.Image != nil {
		if image, err = saveImage(s.processor, in.Image, imaging.KindEvent, "image"); err != nil {
			return store.Event{}, err
		}
	}

	event, err := s.queries.UpdateEvent(ctx, store.UpdateEventParams{
		Title:       f.title,
		Description: f.description,
		Date:        f.date,
		Category:    string(f.category),
		Image:       image,
		UpdatedAt:   time.Now().UTC(),
		ID:          id,
	})
	if err != nil {
		if image != current.Image {
			_ = s.processor.Delete(image)
		}
		return store.Event{}, notFound(err, "event", id)
	}

	if image != current.Image && current.Image != "" {
		if err := s.processor.Delete(current.Image); err != nil {
			s.logger.Warn("failed to remove old event image", "event_id", id, "error", err)
		}
	}

	s.Invalidate(ctx)
	s.logger.Info("event updated", "event_id", id)
	return event, nil
}

// Delete removes an event, its RSVPs and its image.
func (s *EventService) Delete(ctx context.Context, id int64) (store.Event, error) {
	event, err := s.queries.GetEventByID(ctx, id)
	if err != nil {
		return store.Event{}, notFound(err, "event", id)
	}
	if err := s.queries.DeleteEvent(ctx, id); err != nil {
		return store.Event{}, fmt.Errorf("deleting event %d: %w", id, err)
	}
	if err := s.processor.Delete(event.Image); err != nil {
		s.logger.Warn("failed to remove event image", "event_id", id, "error", err)
	}

	s.Invalidate(ctx)
	s.logger.Info("event deleted", "event_id", id)
	return event, nil
}

// Get loads an event by id through the cache.
func (s *EventService) Get(ctx context.Context, id int64) (store.Event, error) {
	event, err := s.events.GetOrSet(ctx, cacheKeyPrefix+strconv.FormatInt(id, 10), func() (store.Event, error) {
		return s.queries.GetEventByID(ctx, id)
	})
	if err != nil {
		return store.Event{}, notFound(err, "event", id)
	}
	return event, nil
}

// List returns all events ordered by date through the cache.
func (s *EventService) List(ctx context.Context) ([]store.Event, error) {
	events, err := s.lists.GetOrSet(ctx, cacheKeyEventList, func() ([]store.Event, error) {
		return s.queries.ListEvents(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

// ListByRSVP returns the events the user has RSVPed to, ordered by date.
func (s *EventService) ListByRSVP(ctx context.Context, userID int64) ([]store.Event, error) {
	events, err := s.queries.ListUserRSVPEvents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing RSVPs of user %d: %w", userID, err)
	}
	return events, nil
}

// Attendees returns the users who RSVPed to the event.
func (s *EventService) Attendees(ctx context.Context, eventID int64) ([]store.User, error) {
	users, err := s.queries.ListEventAttendees(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing attendees of event %d: %w", eventID, err)
	}
	return users, nil
}

// HasRSVP reports whether the user has RSVPed to the event.
func (s *EventService) HasRSVP(ctx context.Context, eventID, userID int64) (bool, error) {
	return s.queries.HasRSVP(ctx, store.HasRSVPParams{EventID: eventID, UserID: userID})
}

// Organizer returns the organizing user, or false when there is none.
func (s *EventService) Organizer(ctx context.Context, event store.Event) (store.User, bool, error) {
	if !event.OrganizerID.Valid {
		return store.User{}, false, nil
	}
	user, err := s.queries.GetUserByID(ctx, event.OrganizerID.Int64)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, false, nil
	}
	if err != nil {
		return store.User{}, false, fmt.Errorf("loading organizer: %w", err)
	}
	return user, true, nil
}

// RSVP records the user's attendance. Repeating it is a no-op; only the
// first RSVP sends a confirmation email. A delivery failure is returned
// wrapped in ErrNotification with the RSVP already recorded.
func (s *EventService) RSVP(ctx context.Context, userID, eventID int64) (RSVPResult, error) {
	event, err := s.queries.GetEventByID(ctx, eventID)
	if err != nil {
		return RSVPResult{}, notFound(err, "event", eventID)
	}

	added, err := s.queries.AddRSVP(ctx, store.AddRSVPParams{
		EventID:   eventID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return RSVPResult{}, fmt.Errorf("adding RSVP: %w", err)
	}

	result := RSVPResult{Event: event, Created: added == 1}
	if !result.Created {
		return result, nil
	}

	user, err := s.queries.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Debug("skipping RSVP confirmation, user not found", "user_id", userID, "error", err)
		return result, nil
	}
	if err := s.notifier.SendRSVPConfirmation(ctx, recipient(user), event.Title, event.Date); err != nil {
		return result, notificationError(err)
	}
	return result, nil
}

// Invalidate drops cached event reads. Call it after changes made outside
// EventService, such as deleting a user who organizes events.
func (s *EventService) Invalidate(ctx context.Context) {
	if err := s.cache.DeleteByPrefix(ctx, cacheKeyPrefix); err != nil {
		s.logger.Warn("failed to invalidate event cache", "error", err)
	}
}
