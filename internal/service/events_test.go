// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/store"
	"github.com/olegiv/oevent/internal/testutil"
)

func jazzNight() EventInput {
	return EventInput{
		Title:       "Jazz Night",
		Description: "Live **jazz** downtown.",
		Date:        "2026-05-01T19:30",
		Category:    "music",
	}
}

func TestCreateEvent(t *testing.T) {
	env := newTestEnv(t)
	organizer := testutil.CreateUser(t, env.db, "olivia")

	in := jazzNight()
	in.Category = ""
	event, err := env.events.Create(context.Background(), in, organizer)
	require.NoError(t, err)

	assert.Equal(t, "jazz-night", event.Slug)
	assert.Equal(t, string(model.DefaultCategory), event.Category)
	assert.Equal(t, time.Date(2026, 5, 1, 19, 30, 0, 0, time.UTC), event.Date.UTC())
	assert.True(t, event.OrganizerID.Valid)
	assert.Equal(t, organizer.ID, event.OrganizerID.Int64)
	assert.Empty(t, event.Image)
}

func TestCreateEventValidation(t *testing.T) {
	env := newTestEnv(t)
	organizer := testutil.CreateUser(t, env.db, "olivia")

	tests := []struct {
		name   string
		modify func(*EventInput)
		field  string
	}{
		{"missing title", func(in *EventInput) { in.Title = "" }, "title"},
		{"long title", func(in *EventInput) { in.Title = strings.Repeat("a", model.MaxTitleLength+1) }, "title"},
		{"symbols only title", func(in *EventInput) { in.Title = "!!!" }, "title"},
		{"missing description", func(in *EventInput) { in.Description = " " }, "description"},
		{"missing date", func(in *EventInput) { in.Date = "" }, "date"},
		{"bad date", func(in *EventInput) { in.Date = "01/05/2026 19:30" }, "date"},
		{"bad category", func(in *EventInput) { in.Category = "poetry" }, "category"},
		{"bad image", func(in *EventInput) { in.Image = strings.NewReader("not an image") }, "image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := jazzNight()
			tt.modify(&in)

			_, err := env.events.Create(context.Background(), in, organizer)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.NotEmpty(t, verr.Message(tt.field), "fields: %v", verr.Fields)
		})
	}
}

func TestCreateEventDuplicateTitle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := testutil.CreateUser(t, env.db, "olivia")

	_, err := env.events.Create(ctx, jazzNight(), organizer)
	require.NoError(t, err)

	for _, title := range []string{"Jazz Night", "jazz night!"} {
		in := jazzNight()
		in.Title = title
		_, err = env.events.Create(ctx, in, organizer)

		var ierr *IntegrityError
		require.ErrorAs(t, err, &ierr, "title %q", title)
		assert.Equal(t, "title", ierr.Field)
		assert.Equal(t, msgDuplicateTitle, ierr.Message)
	}

	events, err := env.events.List(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestCreateEventWithImage(t *testing.T) {
	env := newTestEnv(t)
	organizer := testutil.CreateUser(t, env.db, "olivia")

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))

	in := jazzNight()
	in.Image = &buf
	event, err := env.events.Create(context.Background(), in, organizer)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(event.Image, "events/"), "image = %q", event.Image)
}

func TestUpdateEventKeepsSlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := testutil.CreateUser(t, env.db, "olivia")

	event, err := env.events.Create(ctx, jazzNight(), organizer)
	require.NoError(t, err)

	in := jazzNight()
	in.Title = "Jazz Night: Encore"
	in.Category = "art"
	updated, err := env.events.Update(ctx, event.ID, in)
	require.NoError(t, err)

	assert.Equal(t, "Jazz Night: Encore", updated.Title)
	assert.Equal(t, "jazz-night", updated.Slug)
	assert.Equal(t, "art", updated.Category)

	_, err = env.events.Update(ctx, 9999, in)
	var nerr *NotFoundError
	assert.ErrorAs(t, err, &nerr)
}

func TestListIsInvalidatedByMutations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := testutil.CreateUser(t, env.db, "olivia")

	events, err := env.events.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	created, err := env.events.Create(ctx, jazzNight(), organizer)
	require.NoError(t, err)

	events, err = env.events.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got, err := env.events.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jazz Night", got.Title)

	in := jazzNight()
	in.Title = "Renamed"
	_, err = env.events.Update(ctx, created.ID, in)
	require.NoError(t, err)

	got, err = env.events.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	_, err = env.events.Delete(ctx, created.ID)
	require.NoError(t, err)

	events, err = env.events.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = env.events.Get(ctx, created.ID)
	var nerr *NotFoundError
	assert.ErrorAs(t, err, &nerr)
}

func TestListOrderedByDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := testutil.CreateUser(t, env.db, "olivia")

	for _, tc := range []struct{ title, date string }{
		{"Later", "2026-09-01T10:00"},
		{"Sooner", "2026-03-01T10:00"},
	} {
		_, err := env.events.Create(ctx, EventInput{Title: tc.title, Description: "d", Date: tc.date}, organizer)
		require.NoError(t, err)
	}

	events, err := env.events.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Sooner", events[0].Title)
	assert.Equal(t, "Later", events[1].Title)
}

func TestRSVPIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := testutil.CreateUser(t, env.db, "olivia")
	guest := testutil.CreateUser(t, env.db, "pablo")

	event, err := env.events.Create(ctx, jazzNight(), organizer)
	require.NoError(t, err)

	first, err := env.events.RSVP(ctx, guest.ID, event.ID)
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := env.events.RSVP(ctx, guest.ID, event.ID)
	require.NoError(t, err)
	assert.False(t, second.Created)

	attendees, err := env.events.Attendees(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 1)
	assert.Equal(t, "pablo", attendees[0].Username)

	msgs := env.mail.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "RSVP Confirmation for Jazz Night", msgs[0].Subject)
	assert.Contains(t, msgs[0].Body, "The event is scheduled for 2026-05-01 19:30:00.")

	has, err := env.events.HasRSVP(ctx, event.ID, guest.ID)
	require.NoError(t, err)
	assert.True(t, has)

	mine, err := env.events.ListByRSVP(ctx, guest.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, event.ID, mine[0].ID)
}

func TestRSVPConcurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := testutil.CreateUser(t, env.db, "olivia")
	guest := testutil.CreateUser(t, env.db, "pablo")

	event, err := env.events.Create(ctx, jazzNight(), organizer)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.events.RSVP(ctx, guest.ID, event.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("RSVP: %v", err)
	}

	count, err := store.New(env.db).CountRSVPs(ctx, event.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Len(t, env.mail.Messages(), 1)
}

func TestRSVPNotificationFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := testutil.CreateUser(t, env.db, "olivia")
	guest := testutil.CreateUser(t, env.db, "pablo")

	event, err := env.events.Create(ctx, jazzNight(), organizer)
	require.NoError(t, err)

	env.mail.Err = errors.New("smtp down")
	result, err := env.events.RSVP(ctx, guest.ID, event.ID)
	assert.ErrorIs(t, err, ErrNotification)
	assert.True(t, result.Created)

	has, err := env.events.HasRSVP(ctx, event.ID, guest.ID)
	require.NoError(t, err)
	assert.True(t, has, "the RSVP is kept when the email fails")
}

func TestRSVPMissingEvent(t *testing.T) {
	env := newTestEnv(t)
	guest := testutil.CreateUser(t, env.db, "pablo")

	_, err := env.events.RSVP(context.Background(), guest.ID, 42)
	var nerr *NotFoundError
	assert.ErrorAs(t, err, &nerr)
}

func TestOrganizer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizer := testutil.CreateUser(t, env.db, "olivia")

	event, err := env.events.Create(ctx, jazzNight(), organizer)
	require.NoError(t, err)

	got, ok, err := env.events.Organizer(ctx, event)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "olivia", got.Username)

	event.OrganizerID.Valid = false
	_, ok, err = env.events.Organizer(ctx, event)
	require.NoError(t, err)
	assert.False(t, ok)
}
