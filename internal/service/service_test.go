// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/olegiv/oevent/internal/auth"
	"github.com/olegiv/oevent/internal/cache"
	"github.com/olegiv/oevent/internal/imaging"
	"github.com/olegiv/oevent/internal/mail"
	"github.com/olegiv/oevent/internal/testutil"
)

const testSecret = "test-secret-key-32-bytes-long!!!"

type testEnv struct {
	db       *sql.DB
	mail     *mail.Recorder
	tokens   *auth.TokenManager
	accounts *AccountService
	rbac     *RBACService
	events   *EventService
	groups   *GroupService
	audit    *AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.TestDB(t)
	logger := testutil.TestLoggerSilent()
	rec := &mail.Recorder{}
	dispatcher := mail.NewDispatcher(rec, "http://events.test", time.Second, logger)
	tokens := auth.NewTokenManager(testSecret, time.Hour)
	processor := imaging.NewProcessor(t.TempDir())

	c := cache.NewMemoryCache(time.Minute, 0)
	t.Cleanup(func() { _ = c.Close() })

	rbac := NewRBACService(db, logger)
	return &testEnv{
		db:       db,
		mail:     rec,
		tokens:   tokens,
		accounts: NewAccountService(db, tokens, dispatcher, processor, logger),
		rbac:     rbac,
		events:   NewEventService(db, processor, dispatcher, c, time.Minute, logger),
		groups:   NewGroupService(db, rbac, logger),
		audit:    NewAuditService(db, nil, logger),
	}
}

var linkPattern = regexp.MustCompile(`/(?:activate|reset)/([^/]+)/([^/]+)/`)

// lastLink extracts uid and token from the newest recorded email.
func (e *testEnv) lastLink(t *testing.T) (uid, token string) {
	t.Helper()
	msgs := e.mail.Messages()
	if len(msgs) == 0 {
		t.Fatal("no email recorded")
	}
	m := linkPattern.FindStringSubmatch(msgs[len(msgs)-1].Body)
	if m == nil {
		t.Fatalf("no link in email body %q", msgs[len(msgs)-1].Body)
	}
	return m[1], m[2]
}
