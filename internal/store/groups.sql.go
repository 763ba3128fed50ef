// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

const groupColumns = `id, name, created_at`

func scanGroup(row rowScanner) (Group, error) {
	var g Group
	err := row.Scan(&g.ID, &g.Name, &g.CreatedAt)
	return g, err
}

const createGroup = `INSERT INTO auth_groups (name, created_at) VALUES (?, ?) RETURNING ` + groupColumns

// CreateGroupParams holds the values for CreateGroup.
type CreateGroupParams struct {
	Name      string
	CreatedAt time.Time
}

func (q *Queries) CreateGroup(ctx context.Context, arg CreateGroupParams) (Group, error) {
	return scanGroup(q.db.QueryRowContext(ctx, createGroup, arg.Name, arg.CreatedAt))
}

const getGroupByID = `SELECT ` + groupColumns + ` FROM auth_groups WHERE id = ?`

func (q *Queries) GetGroupByID(ctx context.Context, id int64) (Group, error) {
	return scanGroup(q.db.QueryRowContext(ctx, getGroupByID, id))
}

const getGroupByName = `SELECT ` + groupColumns + ` FROM auth_groups WHERE name = ?`

func (q *Queries) GetGroupByName(ctx context.Context, name string) (Group, error) {
	return scanGroup(q.db.QueryRowContext(ctx, getGroupByName, name))
}

const listGroups = `SELECT ` + groupColumns + ` FROM auth_groups ORDER BY name`

func (q *Queries) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := q.db.QueryContext(ctx, listGroups)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteGroup = `DELETE FROM auth_groups WHERE id = ?`

func (q *Queries) DeleteGroup(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteGroup, id)
	return err
}

const addUserToGroup = `INSERT OR IGNORE INTO user_groups (user_id, group_id) VALUES (?, ?)`

// AddUserToGroupParams holds the values for AddUserToGroup.
type AddUserToGroupParams struct {
	UserID  int64
	GroupID int64
}

func (q *Queries) AddUserToGroup(ctx context.Context, arg AddUserToGroupParams) error {
	_, err := q.db.ExecContext(ctx, addUserToGroup, arg.UserID, arg.GroupID)
	return err
}

const clearUserGroups = `DELETE FROM user_groups WHERE user_id = ?`

func (q *Queries) ClearUserGroups(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx, clearUserGroups, userID)
	return err
}

const listUserGroupNames = `SELECT g.name FROM auth_groups g
JOIN user_groups ug ON ug.group_id = g.id
WHERE ug.user_id = ?
ORDER BY g.name`

func (q *Queries) ListUserGroupNames(ctx context.Context, userID int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listUserGroupNames, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

const listGroupMembers = `SELECT u.id, u.username, u.email, u.password_hash, u.first_name,
    u.last_name, u.phone_number, u.profile_picture, u.is_active, u.is_superuser,
    u.last_login_at, u.created_at, u.updated_at
FROM users u
JOIN user_groups ug ON ug.user_id = u.id
WHERE ug.group_id = ?
ORDER BY u.username`

func (q *Queries) ListGroupMembers(ctx context.Context, groupID int64) ([]User, error) {
	return collectUsers(q.db.QueryContext(ctx, listGroupMembers, groupID))
}
