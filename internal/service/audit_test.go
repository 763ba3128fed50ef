// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/testutil"
)

type fixedCountry string

func (f fixedCountry) Country(string) string { return string(f) }

func TestAuditLogAndRecent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.db, "zoe")

	require.NoError(t, env.audit.LogInfo(ctx, model.AuditCategoryAuth, "User logged in", &user.ID, "203.0.113.5",
		map[string]any{"username": "zoe"}))
	require.NoError(t, env.audit.LogWarning(ctx, model.AuditCategoryAuth, "Failed login attempt", nil, "203.0.113.6", nil))

	entries, err := env.audit.Recent(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Failed login attempt", entries[0].Message)
	assert.Equal(t, model.AuditLevelWarning, entries[0].Level)
	assert.False(t, entries[0].UserID.Valid)
	assert.Equal(t, "{}", entries[0].Metadata)

	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(entries[1].Metadata), &meta))
	assert.Equal(t, "zoe", meta["username"])
	assert.Equal(t, user.ID, entries[1].UserID.Int64)
}

func TestAuditPrune(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.audit.LogInfo(ctx, model.AuditCategorySystem, "started", nil, "", nil))

	n, err := env.audit.Prune(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = env.audit.Prune(ctx, -time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestClientMetadata(t *testing.T) {
	svc := &AuditService{geo: fixedCountry("DE")}

	meta := svc.ClientMetadata(
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"203.0.113.5",
	)
	assert.Equal(t, "Chrome", meta["browser"])
	assert.Equal(t, "Windows", meta["os"])
	assert.Equal(t, "desktop", meta["device"])
	assert.Equal(t, "DE", meta["country"])

	empty := (&AuditService{}).ClientMetadata("", "")
	assert.Equal(t, "Unknown", empty["browser"])
	assert.NotContains(t, empty, "country")
}
