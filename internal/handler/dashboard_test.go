// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/scheduler"
	"github.com/olegiv/oevent/internal/service"
	"github.com/olegiv/oevent/internal/session"
	"github.com/olegiv/oevent/internal/testutil"
)

type fakeJobs struct {
	err       error
	triggered []string
}

func (f *fakeJobs) List() []scheduler.JobInfo {
	return []scheduler.JobInfo{{Name: "audit-prune", Description: "Prune old audit entries", Schedule: "@daily"}}
}

func (f *fakeJobs) TriggerNow(name string) error {
	f.triggered = append(f.triggered, name)
	return f.err
}

func newDashboardHandler(env *testEnv, jobs JobRunner) *DashboardHandler {
	return NewDashboardHandler(env.renderer, env.sm, env.rbac, env.accounts, env.events, env.groups,
		env.audit, jobs, testutil.TestLoggerSilent())
}

func hasLevel(res result, level string) bool {
	for _, f := range res.flashes {
		if f.Level == level {
			return true
		}
	}
	return false
}

func TestAdminDashboard(t *testing.T) {
	env := newTestEnv(t)
	h := newDashboardHandler(env, &fakeJobs{})
	admin := testutil.CreateUser(t, env.db, "root", testutil.Superuser())
	testutil.CreateUser(t, env.db, "pat")
	createEvent(t, env, admin)

	res := env.serve(t, RouteDashboardAdmin, h.Admin, get(RouteDashboardAdmin), &admin)

	assertStatus(t, res, http.StatusOK)
	body := res.Body.String()
	for _, want := range []string{"root", "pat", "Jazz Night", "audit-prune"} {
		assert.Contains(t, body, want)
	}
}

func TestOrganizerAndParticipantDashboards(t *testing.T) {
	env := newTestEnv(t)
	h := newDashboardHandler(env, nil)
	organizer := testutil.CreateUser(t, env.db, "olga")
	participant := testutil.CreateUser(t, env.db, "pat")
	event := createEvent(t, env, organizer)

	res := env.serve(t, RouteDashboardOrganizer, h.Organizer, get(RouteDashboardOrganizer), &organizer)
	assertStatus(t, res, http.StatusOK)
	assert.Contains(t, res.Body.String(), "Jazz Night")

	res = env.serve(t, RouteDashboardParticipant, h.Participant, get(RouteDashboardParticipant), &participant)
	assertStatus(t, res, http.StatusOK)
	assert.NotContains(t, res.Body.String(), "Jazz Night")

	_, err := env.events.RSVP(context.Background(), participant.ID, event.ID)
	require.NoError(t, err)

	res = env.serve(t, RouteDashboardParticipant, h.Participant, get(RouteDashboardParticipant), &participant)
	assertStatus(t, res, http.StatusOK)
	assert.Contains(t, res.Body.String(), "Jazz Night")
}

func TestChangeRole(t *testing.T) {
	env := newTestEnv(t)
	h := newDashboardHandler(env, nil)
	admin := testutil.CreateUser(t, env.db, "root", testutil.Superuser())
	target := testutil.CreateUser(t, env.db, "pat")
	testutil.AddToGroup(t, env.db, target.ID, model.GroupParticipant)

	path := fmt.Sprintf("/dashboard/admin/change_role/%d/Organizer", target.ID)
	res := env.serve(t, RouteDashboardChangeRole, h.ChangeRole, postForm(path, nil), &admin)

	assertRedirect(t, res, redirectAdminDashboard)
	assert.True(t, res.hasFlash(session.LevelSuccess, "User pat's role changed to Organizer."), "flashes = %v", res.flashes)

	role, err := env.rbac.RoleOf(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOrganizer, role)
}

func TestChangeRoleGetOnlyConfirms(t *testing.T) {
	env := newTestEnv(t)
	h := newDashboardHandler(env, nil)
	admin := testutil.CreateUser(t, env.db, "root", testutil.Superuser())
	target := testutil.CreateUser(t, env.db, "pat")
	testutil.AddToGroup(t, env.db, target.ID, model.GroupParticipant)

	path := fmt.Sprintf("/dashboard/admin/change_role/%d/organizer", target.ID)
	res := env.serve(t, RouteDashboardChangeRole, h.ChangeRoleConfirm, get(path), &admin)

	assertStatus(t, res, http.StatusOK)
	assert.Contains(t, res.Body.String(), `method="post"`)
	assert.Contains(t, res.Body.String(), "pat")

	role, err := env.rbac.RoleOf(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, model.RoleParticipant, role)

	res = env.serve(t, RouteDashboardChangeRole, h.ChangeRoleConfirm,
		get(fmt.Sprintf("/dashboard/admin/change_role/%d/admin", target.ID)), &admin)
	assertRedirect(t, res, redirectAdminDashboard)
	assert.True(t, hasLevel(res, session.LevelError), "flashes = %v", res.flashes)
}

func TestChangeRoleRejected(t *testing.T) {
	tests := []struct {
		name    string
		actorSU bool
		role    string
		target  string
		status  int
	}{
		{"invalid role", true, "admin", "", http.StatusSeeOther},
		{"not an admin", false, "organizer", "", http.StatusSeeOther},
		{"unknown user", true, "organizer", "999", http.StatusNotFound},
		{"bad user id", true, "organizer", "abc", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			h := newDashboardHandler(env, nil)
			var opts []testutil.UserOption
			if tt.actorSU {
				opts = append(opts, testutil.Superuser())
			}
			actor := testutil.CreateUser(t, env.db, "actor", opts...)
			target := testutil.CreateUser(t, env.db, "pat")

			id := tt.target
			if id == "" {
				id = fmt.Sprint(target.ID)
			}
			path := "/dashboard/admin/change_role/" + id + "/" + tt.role
			res := env.serve(t, RouteDashboardChangeRole, h.ChangeRole, postForm(path, nil), &actor)

			assertStatus(t, res, tt.status)
			if tt.status == http.StatusSeeOther {
				assert.Equal(t, redirectAdminDashboard, res.location())
				assert.True(t, hasLevel(res, session.LevelError), "flashes = %v", res.flashes)
			}

			role, err := env.rbac.RoleOf(context.Background(), target)
			require.NoError(t, err)
			assert.Equal(t, model.RoleNone, role)
		})
	}
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	h := newDashboardHandler(env, nil)
	admin := testutil.CreateUser(t, env.db, "root", testutil.Superuser())
	target := testutil.CreateUser(t, env.db, "pat")
	createEvent(t, env, target)

	path := fmt.Sprintf("/dashboard/admin/delete_user/%d", target.ID)
	res := env.serve(t, RouteDashboardDeleteUser, h.DeleteUserConfirm, get(path), &admin)
	assertStatus(t, res, http.StatusOK)

	res = env.serve(t, RouteDashboardDeleteUser, h.DeleteUser, postForm(path, nil), &admin)
	assertRedirect(t, res, redirectAdminDashboard)
	assert.True(t, res.hasFlash(session.LevelSuccess, "User pat deleted."), "flashes = %v", res.flashes)

	_, err := env.accounts.GetUser(context.Background(), target.ID)
	var nf *service.NotFoundError
	assert.True(t, errors.As(err, &nf), "GetUser() error = %v, want NotFoundError", err)

	events, err := env.events.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDeleteUserRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	h := newDashboardHandler(env, nil)
	actor := testutil.CreateUser(t, env.db, "olga")
	target := testutil.CreateUser(t, env.db, "pat")

	path := fmt.Sprintf("/dashboard/admin/delete_user/%d", target.ID)
	res := env.serve(t, RouteDashboardDeleteUser, h.DeleteUser, postForm(path, nil), &actor)

	assertRedirect(t, res, redirectAdminDashboard)
	assert.True(t, hasLevel(res, session.LevelError))
	_, err := env.accounts.GetUser(context.Background(), target.ID)
	assert.NoError(t, err)
}

func TestRunJob(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		level  string
	}{
		{"success", nil, http.StatusSeeOther, session.LevelSuccess},
		{"rate limited", scheduler.ErrTriggerLimited, http.StatusSeeOther, session.LevelWarning},
		{"failed", errors.New("disk full"), http.StatusSeeOther, session.LevelError},
		{"unknown", fmt.Errorf("%w: nope", scheduler.ErrJobNotFound), http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			jobs := &fakeJobs{err: tt.err}
			h := newDashboardHandler(env, jobs)
			admin := testutil.CreateUser(t, env.db, "root", testutil.Superuser())

			res := env.serve(t, RouteDashboardRunJob, h.RunJob, postForm("/dashboard/admin/jobs/audit-prune/run", nil), &admin)

			assertStatus(t, res, tt.status)
			assert.Equal(t, []string{"audit-prune"}, jobs.triggered)
			if tt.level != "" {
				assert.True(t, hasLevel(res, tt.level), "flashes = %v", res.flashes)
			}
		})
	}
}

func TestRunJobWithoutScheduler(t *testing.T) {
	env := newTestEnv(t)
	h := newDashboardHandler(env, nil)
	admin := testutil.CreateUser(t, env.db, "root", testutil.Superuser())

	res := env.serve(t, RouteDashboardRunJob, h.RunJob, postForm("/dashboard/admin/jobs/x/run", nil), &admin)
	assertStatus(t, res, http.StatusNotFound)
	assert.False(t, strings.Contains(res.Body.String(), "Internal Server Error"))
}
