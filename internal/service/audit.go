// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mileusna/useragent"

	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/store"
)

// CountryResolver maps an IP address to an ISO country code.
// *geoip.Lookup implements it.
type CountryResolver interface {
	Country(ip string) string
}

// AuditService records security-relevant actions in the audit log.
type AuditService struct {
	queries *store.Queries
	geo     CountryResolver
	logger  *slog.Logger
}

// NewAuditService creates an AuditService. geo may be nil.
func NewAuditService(db *sql.DB, geo CountryResolver, logger *slog.Logger) *AuditService {
	return &AuditService{
		queries: store.New(db),
		geo:     geo,
		logger:  logger,
	}
}

// Log stores an audit entry. A nil userID records an anonymous action.
// Failures are logged at debug level and returned; callers usually ignore them.
func (s *AuditService) Log(ctx context.Context, level, category, message string, userID *int64, ip string, metadata map[string]any) error {
	var uid sql.NullInt64
	if userID != nil {
		uid = sql.NullInt64{Int64: *userID, Valid: true}
	}

	metadataJSON := "{}"
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(b)
		}
	}

	_, err := s.queries.CreateAuditEntry(ctx, store.CreateAuditEntryParams{
		Level:     level,
		Category:  category,
		Message:   message,
		UserID:    uid,
		IpAddress: ip,
		Metadata:  metadataJSON,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		// Debug only: a Warn here would be mirrored back into the audit log.
		s.logger.Debug("failed to write audit entry", "error", err)
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

// LogInfo logs an info-level entry.
func (s *AuditService) LogInfo(ctx context.Context, category, message string, userID *int64, ip string, metadata map[string]any) error {
	return s.Log(ctx, model.AuditLevelInfo, category, message, userID, ip, metadata)
}

// LogWarning logs a warning-level entry.
func (s *AuditService) LogWarning(ctx context.Context, category, message string, userID *int64, ip string, metadata map[string]any) error {
	return s.Log(ctx, model.AuditLevelWarning, category, message, userID, ip, metadata)
}

// ClientMetadata describes the client of a request for audit entries: the
// browser, OS and device class parsed from userAgent and, when a GeoIP
// database is configured, the country of ip.
func (s *AuditService) ClientMetadata(userAgent, ip string) map[string]any {
	ua := useragent.Parse(userAgent)

	device := "desktop"
	switch {
	case ua.Bot:
		device = "bot"
	case ua.Mobile:
		device = "mobile"
	case ua.Tablet:
		device = "tablet"
	}

	meta := map[string]any{
		"browser": orUnknown(ua.Name),
		"os":      orUnknown(ua.OS),
		"device":  device,
	}
	if s.geo != nil {
		if country := s.geo.Country(ip); country != "" {
			meta["country"] = country
		}
	}
	return meta
}

// Recent returns the newest entries first.
func (s *AuditService) Recent(ctx context.Context, limit, offset int64) ([]store.AuditEntry, error) {
	entries, err := s.queries.ListAuditEntries(ctx, store.ListAuditEntriesParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than retention and returns how many went.
func (s *AuditService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.queries.DeleteAuditEntriesBefore(ctx, time.Now().UTC().Add(-retention))
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
