// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/oevent/internal/auth"
	"github.com/olegiv/oevent/internal/model"
)

// Default superuser credentials, used when none are configured.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "changeme"
)

// SeedConfig describes the superuser created on first start.
type SeedConfig struct {
	Username string
	Email    string
	Password string
}

// Seed creates the canonical role groups and an active superuser if no user
// with the configured username exists yet.
func Seed(ctx context.Context, db *sql.DB, cfg SeedConfig) error {
	if cfg.Username == "" {
		cfg.Username = DefaultAdminUsername
	}
	if cfg.Email == "" {
		cfg.Email = DefaultAdminEmail
	}
	if cfg.Password == "" {
		cfg.Password = DefaultAdminPassword
	}

	var created *User
	err := InTx(ctx, db, func(q *Queries) error {
		now := time.Now().UTC()

		groups := make(map[string]Group, 3)
		for _, name := range []string{model.GroupAdmin, model.GroupOrganizer, model.GroupParticipant} {
			g, err := q.GetGroupByName(ctx, name)
			if errors.Is(err, sql.ErrNoRows) {
				g, err = q.CreateGroup(ctx, CreateGroupParams{Name: name, CreatedAt: now})
			}
			if err != nil {
				return fmt.Errorf("seeding group %s: %w", name, err)
			}
			groups[name] = g
		}

		_, err := q.GetUserByUsername(ctx, cfg.Username)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking for superuser: %w", err)
		}

		passwordHash, err := auth.HashPassword(cfg.Password)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}

		user, err := q.CreateUser(ctx, CreateUserParams{
			Username:     cfg.Username,
			Email:        cfg.Email,
			PasswordHash: passwordHash,
			FirstName:    "Site",
			LastName:     "Administrator",
			IsActive:     true,
			IsSuperuser:  true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("creating superuser: %w", err)
		}

		if err := q.AddUserToGroup(ctx, AddUserToGroupParams{
			UserID:  user.ID,
			GroupID: groups[model.GroupAdmin].ID,
		}); err != nil {
			return fmt.Errorf("assigning admin group: %w", err)
		}

		created = &user
		return nil
	})
	if err != nil {
		return err
	}

	// Logged outside the transaction: the audit log handler writes through
	// its own connection.
	if created == nil {
		slog.Info("superuser already exists, skipping seed", "username", cfg.Username)
		return nil
	}
	slog.Info("created superuser", "id", created.ID, "username", created.Username)
	if cfg.Password == DefaultAdminPassword {
		slog.Warn("superuser uses the default password, change it after first login",
			"username", created.Username)
	}
	return nil
}
