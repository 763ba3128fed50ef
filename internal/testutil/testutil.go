// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers.
package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/olegiv/oevent/internal/auth"
	"github.com/olegiv/oevent/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

// TestPassword is the plain-text password of users created by CreateUser.
const TestPassword = "secret-pass"

// TestLogger creates a silent test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// TestLoggerSilent creates a completely silent test logger (error level only).
func TestLoggerSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestDB creates a temporary file database with all migrations applied.
// The database is closed when the test finishes.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := store.NewDB(t.TempDir() + "/oevent-test.db")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

// TestMemoryDB creates an in-memory SQLite database with all migrations
// applied. A single connection keeps every query on the same memory database.
func TestMemoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

// UserOption customizes a user created by CreateUser.
type UserOption func(*store.CreateUserParams)

// Inactive creates the user with is_active = false.
func Inactive() UserOption {
	return func(p *store.CreateUserParams) { p.IsActive = false }
}

// Superuser creates the user with is_superuser = true.
func Superuser() UserOption {
	return func(p *store.CreateUserParams) { p.IsSuperuser = true }
}

// CreateUser inserts an active user named username with TestPassword.
func CreateUser(t *testing.T, db *sql.DB, username string, opts ...UserOption) store.User {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	now := time.Now().UTC()
	params := store.CreateUserParams{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, opt := range opts {
		opt(&params)
	}

	user, err := store.New(db).CreateUser(context.Background(), params)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return user
}

// AddToGroup puts the user into the named group, creating the group if needed.
func AddToGroup(t *testing.T, db *sql.DB, userID int64, name string) {
	t.Helper()
	ctx := context.Background()
	q := store.New(db)

	group, err := q.GetGroupByName(ctx, name)
	if err != nil {
		group, err = q.CreateGroup(ctx, store.CreateGroupParams{Name: name, CreatedAt: time.Now().UTC()})
		if err != nil {
			t.Fatalf("CreateGroup(%s): %v", name, err)
		}
	}

	if err := q.AddUserToGroup(ctx, store.AddUserToGroupParams{UserID: userID, GroupID: group.ID}); err != nil {
		t.Fatalf("AddUserToGroup: %v", err)
	}
}
