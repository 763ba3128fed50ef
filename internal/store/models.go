// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"database/sql"
	"time"
)

// User is a row of the users table.
type User struct {
	ID             int64
	Username       string
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	PhoneNumber    string
	ProfilePicture string
	IsActive       bool
	IsSuperuser    bool
	LastLoginAt    sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Group is a row of the auth_groups table.
type Group struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Event is a row of the events table.
type Event struct {
	ID          int64
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

// AuditEntry is a row of the audit_log table.
type AuditEntry struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	IpAddress string
	Metadata  string
	CreatedAt time.Time
}
