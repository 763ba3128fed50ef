// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that mirrors warnings and errors
// into the audit log table.
package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/store"
)

// Attribute keys with special meaning for audit entries.
const (
	KeyCategory = "category"
	KeyUserID   = "user_id"
	KeyIP       = "ip"
)

// AuditHandler is a slog.Handler that wraps another handler and also writes
// records at or above its level to the audit log.
//
// Never log through it while holding an open write transaction: the audit
// insert needs the same SQLite write lock.
type AuditHandler struct {
	inner   slog.Handler
	queries *store.Queries
	level   slog.Level
	attrs   []slog.Attr
	group   string
}

// NewAuditHandler creates an AuditHandler forwarding WARN and above.
func NewAuditHandler(inner slog.Handler, db *sql.DB) *AuditHandler {
	return NewAuditHandlerWithLevel(inner, db, slog.LevelWarn)
}

// NewAuditHandlerWithLevel creates an AuditHandler with a custom minimum level.
func NewAuditHandlerWithLevel(inner slog.Handler, db *sql.DB, level slog.Level) *AuditHandler {
	return &AuditHandler{
		inner:   inner,
		queries: store.New(db),
		level:   level,
	}
}

// Enabled implements slog.Handler.
func (h *AuditHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *AuditHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= h.level {
		h.write(r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *AuditHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), h.qualify(attrs)...)
	return &clone
}

// WithGroup implements slog.Handler.
func (h *AuditHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithGroup(name)
	if name != "" {
		clone.group = h.qualifyKey(name)
	}
	return &clone
}

func (h *AuditHandler) qualifyKey(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

func (h *AuditHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if h.group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: h.qualifyKey(a.Key), Value: a.Value}
	}
	return out
}

// write stores r under a background context. Insert errors are dropped.
func (h *AuditHandler) write(r slog.Record) {
	entry := store.CreateAuditEntryParams{
		Level:     levelName(r.Level),
		Message:   r.Message,
		CreatedAt: r.Time.UTC(),
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	metadata := make(map[string]string)
	collect := func(a slog.Attr) {
		switch a.Key {
		case KeyCategory:
			entry.Category = a.Value.String()
		case KeyUserID:
			if a.Value.Kind() == slog.KindInt64 {
				entry.UserID = sql.NullInt64{Int64: a.Value.Int64(), Valid: true}
			}
			metadata[a.Key] = a.Value.String()
		case KeyIP:
			entry.IpAddress = a.Value.String()
		default:
			metadata[a.Key] = a.Value.String()
		}
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(slog.Attr{Key: h.qualifyKey(a.Key), Value: a.Value})
		return true
	})

	if entry.Category == "" {
		entry.Category = inferCategory(r.Message)
	}
	entry.Metadata = "{}"
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			entry.Metadata = string(b)
		}
	}

	_, _ = h.queries.CreateAuditEntry(context.Background(), entry)
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.AuditLevelError
	case level >= slog.LevelWarn:
		return model.AuditLevelWarning
	default:
		return model.AuditLevelInfo
	}
}

// inferCategory guesses a category from the message text.
func inferCategory(msg string) string {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "login"), strings.Contains(msg, "logout"),
		strings.Contains(msg, "password"), strings.Contains(msg, "activation"):
		return model.AuditCategoryAuth
	case strings.Contains(msg, "mail"):
		return model.AuditCategoryMail
	case strings.Contains(msg, "event"), strings.Contains(msg, "rsvp"):
		return model.AuditCategoryEvent
	case strings.Contains(msg, "group"):
		return model.AuditCategoryGroup
	case strings.Contains(msg, "user"):
		return model.AuditCategoryUser
	default:
		return model.AuditCategorySystem
	}
}
