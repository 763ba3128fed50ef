// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Audit levels
const (
	AuditLevelInfo    = "info"
	AuditLevelWarning = "warning"
	AuditLevelError   = "error"
)

// Audit categories
const (
	AuditCategoryAuth   = "auth"
	AuditCategoryUser   = "user"
	AuditCategoryGroup  = "group"
	AuditCategoryEvent  = "event"
	AuditCategoryMail   = "mail"
	AuditCategorySystem = "system"
)
