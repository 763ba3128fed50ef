// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain constants and small value types shared by the
// service, handler and rendering layers: roles, event categories and audit
// log levels.
package model

import "strings"

// Role is a user's resolved role.
type Role string

// Roles in precedence order. RoleNone is a user with no role group.
const (
	RoleAdmin       Role = "admin"
	RoleOrganizer   Role = "organizer"
	RoleParticipant Role = "participant"
	RoleNone        Role = ""
)

// Canonical group names backing each role.
const (
	GroupAdmin       = "Admin"
	GroupOrganizer   = "Organizer"
	GroupParticipant = "Participant"
)

// GroupName returns the group that carries the role.
func (r Role) GroupName() string {
	switch r {
	case RoleAdmin:
		return GroupAdmin
	case RoleOrganizer:
		return GroupOrganizer
	case RoleParticipant:
		return GroupParticipant
	default:
		return ""
	}
}

// DashboardPath returns the landing page for the role.
func (r Role) DashboardPath() string {
	switch r {
	case RoleAdmin:
		return "/dashboard/admin/"
	case RoleOrganizer:
		return "/dashboard/organizer/"
	default:
		return "/dashboard/participant/"
	}
}

// AssignableRole parses a role name supplied by an administrator. Only
// organizer and participant may be assigned; matching is case-insensitive.
func AssignableRole(name string) (Role, bool) {
	switch Role(strings.ToLower(name)) {
	case RoleOrganizer:
		return RoleOrganizer, true
	case RoleParticipant:
		return RoleParticipant, true
	default:
		return RoleNone, false
	}
}

// ResolveRole applies role precedence (admin > organizer > participant) to a
// user's superuser flag and group names.
func ResolveRole(isSuperuser bool, groups []string) Role {
	if isSuperuser || hasGroup(groups, GroupAdmin) {
		return RoleAdmin
	}
	if hasGroup(groups, GroupOrganizer) {
		return RoleOrganizer
	}
	if hasGroup(groups, GroupParticipant) {
		return RoleParticipant
	}
	return RoleNone
}

func hasGroup(groups []string, name string) bool {
	for _, g := range groups {
		if g == name {
			return true
		}
	}
	return false
}
