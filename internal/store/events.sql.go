// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const eventColumns = `id, title, slug, description, date, category, image,
    organizer_id, created_at, updated_at`

func scanEvent(row rowScanner) (Event, error) {
	var e Event
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Slug,
		&e.Description,
		&e.Date,
		&e.Category,
		&e.Image,
		&e.OrganizerID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	return e, err
}

func collectEvents(rows *sql.Rows, err error) ([]Event, error) {
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createEvent = `INSERT INTO events (
    title, slug, description, date, category, image, organizer_id,
    created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + eventColumns

// CreateEventParams holds the values for CreateEvent.
type CreateEventParams struct {
	Title       string
	Slug        string
	Description string
	Date        time.Time
	Category    string
	Image       string
	OrganizerID sql.NullInt64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (Event, error) {
	row := q.db.QueryRowContext(ctx, createEvent,
		arg.Title,
		arg.Slug,
		arg.Description,
		arg.Date,
		arg.Category,
		arg.Image,
		arg.OrganizerID,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanEvent(row)
}

const getEventByID = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`

func (q *Queries) GetEventByID(ctx context.Context, id int64) (Event, error) {
	return scanEvent(q.db.QueryRowContext(ctx, getEventByID, id))
}

const getEventBySlug = `SELECT ` + eventColumns + ` FROM events WHERE slug = ?`

func (q *Queries) GetEventBySlug(ctx context.Context, slug string) (Event, error) {
	return scanEvent(q.db.QueryRowContext(ctx, getEventBySlug, slug))
}

const listEvents = `SELECT ` + eventColumns + ` FROM events ORDER BY date, id`

func (q *Queries) ListEvents(ctx context.Context) ([]Event, error) {
	return collectEvents(q.db.QueryContext(ctx, listEvents))
}

const countEvents = `SELECT COUNT(*) FROM events`

func (q *Queries) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countEvents).Scan(&count)
	return count, err
}

const updateEvent = `UPDATE events SET
    title = ?, description = ?, date = ?, category = ?, image = ?, updated_at = ?
WHERE id = ?
RETURNING ` + eventColumns

// UpdateEventParams holds the values for UpdateEvent.
type UpdateEventParams struct {
	Title       string
	Description string
	Date        time.Time
	Category    string
	Image       string
	UpdatedAt   time.Time
	ID          int64
}

func (q *Queries) UpdateEvent(ctx context.Context, arg UpdateEventParams) (Event, error) {
	row := q.db.QueryRowContext(ctx, updateEvent,
		arg.Title,
		arg.Description,
		arg.Date,
		arg.Category,
		arg.Image,
		arg.UpdatedAt,
		arg.ID,
	)
	return scanEvent(row)
}

const deleteEvent = `DELETE FROM events WHERE id = ?`

func (q *Queries) DeleteEvent(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteEvent, id)
	return err
}

const addRSVP = `INSERT OR IGNORE INTO event_rsvps (event_id, user_id, created_at) VALUES (?, ?, ?)`

// AddRSVPParams holds the values for AddRSVP.
type AddRSVPParams struct {
	EventID   int64
	UserID    int64
	CreatedAt time.Time
}

// AddRSVP inserts the membership if absent and reports how many rows were
// added (0 when the user had already RSVPed).
func (q *Queries) AddRSVP(ctx context.Context, arg AddRSVPParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, addRSVP, arg.EventID, arg.UserID, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const hasRSVP = `SELECT COUNT(*) FROM event_rsvps WHERE event_id = ? AND user_id = ?`

// HasRSVPParams holds the values for HasRSVP.
type HasRSVPParams struct {
	EventID int64
	UserID  int64
}

func (q *Queries) HasRSVP(ctx context.Context, arg HasRSVPParams) (bool, error) {
	var count int64
	if err := q.db.QueryRowContext(ctx, hasRSVP, arg.EventID, arg.UserID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

const countRSVPs = `SELECT COUNT(*) FROM event_rsvps WHERE event_id = ?`

func (q *Queries) CountRSVPs(ctx context.Context, eventID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countRSVPs, eventID).Scan(&count)
	return count, err
}

const listEventAttendees = `SELECT u.id, u.username, u.email, u.password_hash, u.first_name,
    u.last_name, u.phone_number, u.profile_picture, u.is_active, u.is_superuser,
    u.last_login_at, u.created_at, u.updated_at
FROM users u
JOIN event_rsvps r ON r.user_id = u.id
WHERE r.event_id = ?
ORDER BY r.created_at, u.id`

func (q *Queries) ListEventAttendees(ctx context.Context, eventID int64) ([]User, error) {
	return collectUsers(q.db.QueryContext(ctx, listEventAttendees, eventID))
}

const listUserRSVPEvents = `SELECT e.id, e.title, e.slug, e.description, e.date, e.category,
    e.image, e.organizer_id, e.created_at, e.updated_at
FROM events e
JOIN event_rsvps r ON r.event_id = e.id
WHERE r.user_id = ?
ORDER BY e.date, e.id`

func (q *Queries) ListUserRSVPEvents(ctx context.Context, userID int64) ([]Event, error) {
	return collectEvents(q.db.QueryContext(ctx, listUserRSVPEvents, userID))
}
