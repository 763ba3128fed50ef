// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"fmt"
	"log/slog"
	"time"
)

// Config selects and configures the cache backend.
type Config struct {
	RedisURL        string // empty selects the memory backend
	Prefix          string
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

// New creates a Redis cache when a URL is configured and a memory cache
// otherwise. If Redis is unreachable the memory cache is used and the
// failure is logged.
func New(cfg Config, logger *slog.Logger) Cache {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	if cfg.RedisURL != "" {
		rc, err := NewRedisCache(RedisOptions{
			URL:        cfg.RedisURL,
			Prefix:     cfg.Prefix,
			DefaultTTL: cfg.DefaultTTL,
		})
		if err == nil {
			logger.Info("using redis cache", "prefix", cfg.Prefix)
			return rc
		}
		logger.Warn("redis unavailable, falling back to memory cache", "error", fmt.Sprint(err))
	}

	return NewMemoryCache(cfg.DefaultTTL, cfg.CleanupInterval)
}
