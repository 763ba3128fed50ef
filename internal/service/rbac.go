// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/store"
)

// Permission messages shown to users.
const (
	msgNoChangeRolePermission = "You do not have permission to change user roles."
	msgInvalidRole            = "Invalid role specified."
	msgChangeOwnRole          = "You cannot change your own role."
	msgNoDeleteUserPermission = "You do not have permission to delete users."
	msgDeleteSelf             = "You cannot delete your own account."
)

// UserWithRole pairs a user with their resolved role.
type UserWithRole struct {
	store.User
	Role   model.Role
	Groups []string
}

// RoleChange describes a completed ChangeRole call.
type RoleChange struct {
	Target       store.User
	Group        string
	GroupCreated bool
}

// RBACService resolves roles from group membership and changes them.
type RBACService struct {
	db      *sql.DB
	queries *store.Queries
	logger  *slog.Logger
}

// NewRBACService creates an RBACService.
func NewRBACService(db *sql.DB, logger *slog.Logger) *RBACService {
	return &RBACService{
		db:      db,
		queries: store.New(db),
		logger:  logger,
	}
}

// ResolveLogin normalizes group membership at login. A superuser is reset
// to exactly the Admin group; a user without Organizer or Participant is
// given Participant. The resulting role is returned.
func (s *RBACService) ResolveLogin(ctx context.Context, user store.User) (model.Role, error) {
	var groups []string
	err := store.InTx(ctx, s.db, func(q *store.Queries) error {
		if user.IsSuperuser {
			if err := q.ClearUserGroups(ctx, user.ID); err != nil {
				return fmt.Errorf("clearing groups: %w", err)
			}
			if _, err := joinGroup(ctx, q, user.ID, model.GroupAdmin); err != nil {
				return err
			}
			groups = []string{model.GroupAdmin}
			return nil
		}

		names, err := q.ListUserGroupNames(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("listing groups: %w", err)
		}
		if !slices.Contains(names, model.GroupOrganizer) && !slices.Contains(names, model.GroupParticipant) {
			if _, err := joinGroup(ctx, q, user.ID, model.GroupParticipant); err != nil {
				return err
			}
			names = append(names, model.GroupParticipant)
		}
		groups = names
		return nil
	})
	if err != nil {
		return model.RoleNone, fmt.Errorf("resolving login role for user %d: %w", user.ID, err)
	}
	return model.ResolveRole(user.IsSuperuser, groups), nil
}

// RoleOf returns the user's role with precedence admin > organizer > participant.
func (s *RBACService) RoleOf(ctx context.Context, user store.User) (model.Role, error) {
	if user.IsSuperuser {
		return model.RoleAdmin, nil
	}
	names, err := s.queries.ListUserGroupNames(ctx, user.ID)
	if err != nil {
		return model.RoleNone, fmt.Errorf("listing groups for user %d: %w", user.ID, err)
	}
	return model.ResolveRole(false, names), nil
}

// IsAdmin reports whether the user resolves to the admin role.
func (s *RBACService) IsAdmin(ctx context.Context, user store.User) (bool, error) {
	role, err := s.RoleOf(ctx, user)
	return role == model.RoleAdmin, err
}

// HasRole reports whether the user passes the dashboard gate for role.
// Admin means a superuser or an Admin group member; the other roles are
// plain group membership, so an admin does not pass the organizer gate.
func (s *RBACService) HasRole(ctx context.Context, user store.User, role model.Role) (bool, error) {
	if role == model.RoleAdmin && user.IsSuperuser {
		return true, nil
	}
	name := role.GroupName()
	if name == "" {
		return false, nil
	}
	names, err := s.queries.ListUserGroupNames(ctx, user.ID)
	if err != nil {
		return false, fmt.Errorf("listing groups for user %d: %w", user.ID, err)
	}
	return slices.Contains(names, name), nil
}

func (s *RBACService) requireAdmin(ctx context.Context, actor store.User, msg string) error {
	ok, err := s.IsAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if !ok {
		return &PermissionError{Message: msg}
	}
	return nil
}

// ChangeRole replaces every group of the target with the group for role.
// role is matched case-insensitively and must be organizer or participant.
func (s *RBACService) ChangeRole(ctx context.Context, actor store.User, targetID int64, role string) (RoleChange, error) {
	if err := s.requireAdmin(ctx, actor, msgNoChangeRolePermission); err != nil {
		return RoleChange{}, err
	}

	// Changing one's own role is refused whatever role is asked for.
	if targetID == actor.ID {
		return RoleChange{}, &PermissionError{Message: msgChangeOwnRole}
	}

	target, err := s.queries.GetUserByID(ctx, targetID)
	if err != nil {
		return RoleChange{}, notFound(err, "user", targetID)
	}

	newRole, ok := model.AssignableRole(role)
	if !ok {
		return RoleChange{}, newValidationError("role", msgInvalidRole)
	}

	change := RoleChange{Target: target, Group: newRole.GroupName()}
	err = store.InTx(ctx, s.db, func(q *store.Queries) error {
		if err := q.ClearUserGroups(ctx, target.ID); err != nil {
			return fmt.Errorf("clearing groups: %w", err)
		}
		created, err := joinGroup(ctx, q, target.ID, change.Group)
		change.GroupCreated = created
		return err
	})
	if err != nil {
		return RoleChange{}, fmt.Errorf("changing role of user %d: %w", target.ID, err)
	}

	s.logger.Info("user role changed", "actor_id", actor.ID, "user_id", target.ID, "group", change.Group)
	return change, nil
}

// DeleteUser removes another user's account. Events they organize and all
// their RSVPs go with it.
func (s *RBACService) DeleteUser(ctx context.Context, actor store.User, targetID int64) (store.User, error) {
	if err := s.requireAdmin(ctx, actor, msgNoDeleteUserPermission); err != nil {
		return store.User{}, err
	}
	if targetID == actor.ID {
		return store.User{}, &PermissionError{Message: msgDeleteSelf}
	}

	target, err := s.queries.GetUserByID(ctx, targetID)
	if err != nil {
		return store.User{}, notFound(err, "user", targetID)
	}

	if err := s.queries.DeleteUser(ctx, target.ID); err != nil {
		return store.User{}, fmt.Errorf("deleting user %d: %w", target.ID, err)
	}

	s.logger.Info("user deleted", "actor_id", actor.ID, "user_id", target.ID, "username", target.Username)
	return target, nil
}

// ListUsers returns every user with their groups and resolved role.
func (s *RBACService) ListUsers(ctx context.Context) ([]UserWithRole, error) {
	users, err := s.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	out := make([]UserWithRole, 0, len(users))
	for _, u := range users {
		names, err := s.queries.ListUserGroupNames(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("listing groups for user %d: %w", u.ID, err)
		}
		out = append(out, UserWithRole{
			User:   u,
			Role:   model.ResolveRole(u.IsSuperuser, names),
			Groups: names,
		})
	}
	return out, nil
}

// getOrCreateGroup returns the named group, creating it when absent.
func getOrCreateGroup(ctx context.Context, q *store.Queries, name string) (store.Group, bool, error) {
	group, err := q.GetGroupByName(ctx, name)
	if err == nil {
		return group, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return store.Group{}, false, fmt.Errorf("loading group %q: %w", name, err)
	}

	group, err = q.CreateGroup(ctx, store.CreateGroupParams{Name: name, CreatedAt: time.Now().UTC()})
	if err != nil {
		return store.Group{}, false, fmt.Errorf("creating group %q: %w", name, err)
	}
	return group, true, nil
}

// joinGroup adds the user to the named group, creating it if needed, and
// reports whether the group was created.
func joinGroup(ctx context.Context, q *store.Queries, userID int64, name string) (bool, error) {
	group, created, err := getOrCreateGroup(ctx, q, name)
	if err != nil {
		return false, err
	}
	if err := q.AddUserToGroup(ctx, store.AddUserToGroupParams{UserID: userID, GroupID: group.ID}); err != nil {
		return false, fmt.Errorf("adding user %d to %q: %w", userID, name, err)
	}
	return created, nil
}
