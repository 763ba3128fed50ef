// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"testing"

	"github.com/olegiv/oevent/internal/session"
	"github.com/olegiv/oevent/internal/testutil"
)

func newAuthHandler(env *testEnv) *AuthHandler {
	return NewAuthHandler(env.renderer, env.sm, env.accounts, env.rbac, env.audit, nil, testutil.TestLoggerSilent())
}

func signupForm() url.Values {
	return url.Values{
		"username":   {"newbie"},
		"email":      {"newbie@example.com"},
		"first_name": {"New"},
		"last_name":  {"Bie"},
		"password1":  {"Correct-Horse-42"},
		"password2":  {"Correct-Horse-42"},
	}
}

var resetLink = regexp.MustCompile(`/reset/([^/]+)/([^/]+)/`)

func TestSignup(t *testing.T) {
	env := newTestEnv(t)
	h := newAuthHandler(env)

	res := env.serve(t, RouteSignup, h.Signup, postForm(RouteSignup, signupForm()), nil)

	assertRedirect(t, res, redirectLogin)
	if !res.hasFlash(session.LevelSuccess, "Account created! Check your email to activate your account.") {
		t.Errorf("flashes = %v, want signup success", res.flashes)
	}
	if got := len(env.mail.Messages()); got != 1 {
		t.Errorf("sent %d emails, want 1", got)
	}
}

func TestSignupMailFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mail.Err = errors.New("smtp down")
	h := newAuthHandler(env)

	res := env.serve(t, RouteSignup, h.Signup, postForm(RouteSignup, signupForm()), nil)

	assertRedirect(t, res, redirectLogin)
	if len(res.flashes) != 1 || res.flashes[0].Level != session.LevelWarning {
		t.Errorf("flashes = %v, want one warning", res.flashes)
	}
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)
	h := newAuthHandler(env)

	form := signupForm()
	form.Set("password2", "something-else")
	res := env.serve(t, RouteSignup, h.Signup, postForm(RouteSignup, form), nil)

	assertStatus(t, res, http.StatusOK)
	if got := len(env.mail.Messages()); got != 0 {
		t.Errorf("sent %d emails, want 0", got)
	}
}

func TestActivate(t *testing.T) {
	env := newTestEnv(t)
	h := newAuthHandler(env)
	user := testutil.CreateUser(t, env.db, "dormant", testutil.Inactive())

	uid, token, err := env.accounts.IssueActivationToken(user)
	if err != nil {
		t.Fatalf("IssueActivationToken() error = %v", err)
	}

	res := env.serve(t, RouteActivate, h.Activate, get("/activate/"+uid+"/"+token), nil)
	assertRedirect(t, res, redirectLogin)
	if !res.hasFlash(session.LevelSuccess, "Your account has been activated! You can now log in.") {
		t.Errorf("flashes = %v, want activation success", res.flashes)
	}

	activated, err := env.accounts.GetUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if !activated.IsActive {
		t.Error("IsActive = false, want true")
	}
}

func TestActivateInvalidLink(t *testing.T) {
	env := newTestEnv(t)
	h := newAuthHandler(env)

	res := env.serve(t, RouteActivate, h.Activate, get("/activate/bogus/bogus-token"), nil)
	assertStatus(t, res, http.StatusOK)
	if len(res.flashes) != 0 {
		t.Errorf("flashes = %v, want none", res.flashes)
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name string
		next string
		want string
	}{
		{"dashboard", "", "/dashboard/participant/"},
		{"local next", "/event/7/", "/event/7/"},
		{"external next", "//evil.example.com/", "/dashboard/participant/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			h := newAuthHandler(env)
			user := testutil.CreateUser(t, env.db, "pat")

			form := url.Values{"username": {"pat"}, "password": {testutil.TestPassword}, "next": {tt.next}}
			res := env.serve(t, RouteLogin, h.Login, postForm(RouteLogin, form), nil)

			assertRedirect(t, res, tt.want)
			if res.sessionID != user.ID {
				t.Errorf("session user = %d, want %d", res.sessionID, user.ID)
			}
		})
	}
}

func TestLoginSuperuserGoesToAdmin(t *testing.T) {
	env := newTestEnv(t)
	h := newAuthHandler(env)
	testutil.CreateUser(t, env.db, "root", testutil.Superuser())

	for _, next := range []string{"", "/event/7/", "/dashboard/participant/"} {
		form := url.Values{"username": {"root"}, "password": {testutil.TestPassword}, "next": {next}}
		res := env.serve(t, RouteLogin, h.Login, postForm(RouteLogin, form), nil)

		assertRedirect(t, res, redirectAdminDashboard)
	}
}

func TestLoginInvalid(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "pat", "nope"},
		{"unknown user", "ghost", testutil.TestPassword},
		{"inactive user", "sleepy", testutil.TestPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			h := newAuthHandler(env)
			testutil.CreateUser(t, env.db, "pat")
			testutil.CreateUser(t, env.db, "sleepy", testutil.Inactive())

			form := url.Values{"username": {tt.username}, "password": {tt.password}}
			res := env.serve(t, RouteLogin, h.Login, postForm(RouteLogin, form), nil)

			assertStatus(t, res, http.StatusOK)
			if res.sessionID != 0 {
				t.Errorf("session user = %d, want 0", res.sessionID)
			}
			if !res.hasFlash(session.LevelError, "Invalid username or password.") {
				t.Errorf("flashes = %v, want login_invalid", res.flashes)
			}
		})
	}
}

func TestLoginFormRedirectsLoggedInUser(t *testing.T) {
	env := newTestEnv(t)
	h := newAuthHandler(env)
	user := testutil.CreateUser(t, env.db, "olga")
	testutil.AddToGroup(t, env.db, user.ID, "Organizer")

	res := env.serve(t, RouteLogin, h.LoginForm, get(RouteLogin), &user)
	assertRedirect(t, res, "/dashboard/organizer/")

	res = env.serve(t, RouteLogin, h.LoginForm, get(RouteLogin+"?next=/event/1/"), nil)
	assertStatus(t, res, http.StatusOK)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	h := newAuthHandler(env)
	user := testutil.CreateUser(t, env.db, "pat")

	res := env.serve(t, RouteLogout, h.Logout, postForm(RouteLogout, nil), &user)

	assertRedirect(t, res, redirectLogin)
	if res.sessionID != 0 {
		t.Errorf("session user = %d, want 0", res.sessionID)
	}
	if !res.hasFlash(session.LevelInfo, "You have been logged out.") {
		t.Errorf("flashes = %v, want logged_out", res.flashes)
	}
}

func TestPasswordResetDoesNotRevealAccounts(t *testing.T) {
	env := newTestEnv(t)
	h := newAuthHandler(env)
	testutil.CreateUser(t, env.db, "pat")

	for _, email := range []string{"pat@example.com", "nobody@example.com"} {
		res := env.serve(t, RoutePasswordReset, h.PasswordReset,
			postForm(RoutePasswordReset, url.Values{"email": {email}}), nil)
		assertRedirect(t, res, redirectPasswordResetDone)
	}
	if got := len(env.mail.Messages()); got != 1 {
		t.Errorf("sent %d emails, want 1", got)
	}
}

func TestPasswordResetMailFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mail.Err = errors.New("smtp down")
	h := newAuthHandler(env)
	testutil.CreateUser(t, env.db, "pat")

	res := env.serve(t, RoutePasswordReset, h.PasswordReset,
		postForm(RoutePasswordReset, url.Values{"email": {"pat@example.com"}}), nil)
	assertRedirect(t, res, redirectPasswordResetDone)
}

func TestPasswordResetConfirm(t *testing.T) {
	env := newTestEnv(t)
	h := newAuthHandler(env)
	user := testutil.CreateUser(t, env.db, "pat")

	if err := env.accounts.RequestPasswordReset(context.Background(), user.Email); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	msgs := env.mail.Messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d emails, want 1", len(msgs))
	}
	m := resetLink.FindStringSubmatch(msgs[0].Body)
	if m == nil {
		t.Fatalf("no reset link in %q", msgs[0].Body)
	}
	target := "/reset/" + m[1] + "/" + m[2]

	res := env.serve(t, RoutePasswordResetConfirm, h.PasswordResetConfirmForm, get(target), nil)
	assertStatus(t, res, http.StatusOK)

	mismatch := url.Values{"new_password1": {"Correct-Horse-42"}, "new_password2": {"Wrong-Horse-42"}}
	res = env.serve(t, RoutePasswordResetConfirm, h.PasswordResetConfirm, postForm(target, mismatch), nil)
	assertStatus(t, res, http.StatusOK)

	ok := url.Values{"new_password1": {"Correct-Horse-42"}, "new_password2": {"Correct-Horse-42"}}
	res = env.serve(t, RoutePasswordResetConfirm, h.PasswordResetConfirm, postForm(target, ok), nil)
	assertRedirect(t, res, redirectPasswordResetEnd)

	if _, err := env.accounts.Authenticate(context.Background(), "pat", "Correct-Horse-42"); err != nil {
		t.Errorf("Authenticate(new password) error = %v", err)
	}

	// The link is single use.
	res = env.serve(t, RoutePasswordResetConfirm, h.PasswordResetConfirm, postForm(target, ok), nil)
	assertStatus(t, res, http.StatusOK)
}
