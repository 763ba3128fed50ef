// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"filippo.io/csrf/gorilla"
)

// CSRFConfig configures cross-origin request protection. filippo.io/csrf
// checks Fetch metadata and Origin headers, so no token travels in forms.
type CSRFConfig struct {
	AuthKey        []byte
	ErrorHandler   http.Handler
	TrustedOrigins []string // host[:port] values
}

// NewCSRFConfig derives the trusted origins from the site URL and any extra
// origins. Both URLs and bare hosts are accepted.
func NewCSRFConfig(authKey []byte, siteURL string, extra []string) CSRFConfig {
	cfg := CSRFConfig{AuthKey: authKey}
	seen := make(map[string]bool)
	for _, origin := range append([]string{siteURL}, extra...) {
		host := originHost(origin)
		if host != "" && !seen[host] {
			seen[host] = true
			cfg.TrustedOrigins = append(cfg.TrustedOrigins, host)
		}
	}
	return cfg
}

func originHost(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return ""
	}
	if strings.Contains(origin, "://") {
		u, err := url.Parse(origin)
		if err != nil {
			return ""
		}
		return u.Host
	}
	return origin
}

// CSRF returns the protection middleware.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	opts := []csrf.Option{csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler))}
	if cfg.ErrorHandler != nil {
		opts[0] = csrf.ErrorHandler(cfg.ErrorHandler)
	}
	if len(cfg.TrustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(cfg.TrustedOrigins))
	}
	return csrf.Protect(cfg.AuthKey, opts...)
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	reason := "unknown"
	if err := csrf.FailureReason(r); err != nil {
		reason = err.Error()
	}
	slog.Warn("CSRF validation failed",
		"reason", reason,
		"method", r.Method,
		"path", r.URL.Path,
		"origin", r.Header.Get("Origin"),
		"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
	)
	http.Error(w, "Forbidden - CSRF validation failed", http.StatusForbidden)
}
