// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/olegiv/oevent/internal/store"
)

// MaxGroupNameLength is the longest accepted group name.
const MaxGroupNameLength = 150

const (
	msgNoCreateGroupPermission = "You do not have permission to create a group."
	msgNoManageGroupPermission = "You do not have permission to manage groups."
	msgGroupNameRequired       = "Group name is required."
)

// GroupService manages groups. Every mutation requires an admin actor.
type GroupService struct {
	db      *sql.DB
	queries *store.Queries
	rbac    *RBACService
	logger  *slog.Logger
}

// NewGroupService creates a GroupService.
func NewGroupService(db *sql.DB, rbac *RBACService, logger *slog.Logger) *GroupService {
	return &GroupService{
		db:      db,
		queries: store.New(db),
		rbac:    rbac,
		logger:  logger,
	}
}

// Create gets or creates the named group and reports whether it was new.
func (s *GroupService) Create(ctx context.Context, actor store.User, name string) (store.Group, bool, error) {
	if err := s.rbac.requireAdmin(ctx, actor, msgNoCreateGroupPermission); err != nil {
		return store.Group{}, false, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return store.Group{}, false, newValidationError("name", msgGroupNameRequired)
	}
	if utf8.RuneCountInString(name) > MaxGroupNameLength {
		return store.Group{}, false, newValidationError("name",
			fmt.Sprintf("Ensure this value has at most %d characters.", MaxGroupNameLength))
	}

	var (
		group   store.Group
		created bool
	)
	err := store.InTx(ctx, s.db, func(q *store.Queries) error {
		var err error
		group, created, err = getOrCreateGroup(ctx, q, name)
		return err
	})
	if err != nil {
		return store.Group{}, false, err
	}

	if created {
		s.logger.Info("group created", "actor_id", actor.ID, "group", group.Name)
	}
	return group, created, nil
}

// Get loads a group for an admin.
func (s *GroupService) Get(ctx context.Context, actor store.User, id int64) (store.Group, error) {
	if err := s.rbac.requireAdmin(ctx, actor, msgNoManageGroupPermission); err != nil {
		return store.Group{}, err
	}
	group, err := s.queries.GetGroupByID(ctx, id)
	if err != nil {
		return store.Group{}, notFound(err, "group", id)
	}
	return group, nil
}

// Detail returns a group and its members.
func (s *GroupService) Detail(ctx context.Context, actor store.User, id int64) (store.Group, []store.User, error) {
	group, err := s.Get(ctx, actor, id)
	if err != nil {
		return store.Group{}, nil, err
	}
	members, err := s.queries.ListGroupMembers(ctx, group.ID)
	if err != nil {
		return store.Group{}, nil, fmt.Errorf("listing members of group %d: %w", group.ID, err)
	}
	return group, members, nil
}

// Delete removes a group. Memberships are removed with it.
func (s *GroupService) Delete(ctx context.Context, actor store.User, id int64) (store.Group, error) {
	group, err := s.Get(ctx, actor, id)
	if err != nil {
		return store.Group{}, err
	}
	if err := s.queries.DeleteGroup(ctx, group.ID); err != nil {
		return store.Group{}, fmt.Errorf("deleting group %d: %w", group.ID, err)
	}
	s.logger.Info("group deleted", "actor_id", actor.ID, "group", group.Name)
	return group, nil
}

// List returns every group ordered by name.
func (s *GroupService) List(ctx context.Context) ([]store.Group, error) {
	groups, err := s.queries.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	return groups, nil
}
