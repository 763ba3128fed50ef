// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"fmt"
	"time"
)

// Job names.
const (
	JobPruneAudit       = "prune_audit_log"
	JobPurgeUnactivated = "purge_unactivated_users"
	JobReloadGeoIP      = "reload_geoip"
)

// AuditPruner deletes audit entries older than a retention window.
type AuditPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// AccountPurger deletes accounts never activated within ttl.
type AccountPurger interface {
	PurgeUnactivated(ctx context.Context, ttl time.Duration) (int64, error)
}

// Reloader reopens an on-disk database.
type Reloader interface {
	Reload() error
}

// Housekeeping configures the built-in jobs. Zero durations and nil
// dependencies leave the matching job unregistered.
type Housekeeping struct {
	Audit          AuditPruner
	AuditRetention time.Duration

	Accounts        AccountPurger
	InactiveUserTTL time.Duration

	GeoIP Reloader
}

// Register adds the configured housekeeping jobs to s.
func (h Housekeeping) Register(s *Scheduler) error {
	if h.Audit != nil && h.AuditRetention > 0 {
		err := s.Add(JobPruneAudit, "Delete audit entries past the retention window", "@daily",
			func(ctx context.Context) error {
				n, err := h.Audit.Prune(ctx, h.AuditRetention)
				if err != nil {
					return fmt.Errorf("pruning audit log: %w", err)
				}
				if n > 0 {
					s.logger.Info("pruned audit log", "deleted", n)
				}
				return nil
			})
		if err != nil {
			return err
		}
	}

	if h.Accounts != nil && h.InactiveUserTTL > 0 {
		err := s.Add(JobPurgeUnactivated, "Delete accounts that were never activated", "@hourly",
			func(ctx context.Context) error {
				n, err := h.Accounts.PurgeUnactivated(ctx, h.InactiveUserTTL)
				if err != nil {
					return fmt.Errorf("purging unactivated users: %w", err)
				}
				if n > 0 {
					s.logger.Info("purged unactivated users", "deleted", n)
				}
				return nil
			})
		if err != nil {
			return err
		}
	}

	if h.GeoIP != nil {
		err := s.Add(JobReloadGeoIP, "Reopen the GeoIP country database", "@weekly",
			func(context.Context) error { return h.GeoIP.Reload() })
		if err != nil {
			return err
		}
	}
	return nil
}
