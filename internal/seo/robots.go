// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package seo

import "strings"

// privatePaths are never worth crawling: forms, dashboards and account links.
var privatePaths = []string{
	"/dashboard/",
	"/group/",
	"/profile/",
	"/login/",
	"/logout/",
	"/signup/",
	"/activate/",
	"/password_reset/",
	"/reset/",
	"/event/new/",
}

// RobotsConfig holds configuration for robots.txt generation.
type RobotsConfig struct {
	SiteURL     string // Base URL for the sitemap reference
	DisallowAll bool   // Block all crawlers, for development and staging
}

// GenerateRobots renders robots.txt.
func GenerateRobots(cfg RobotsConfig) string {
	var sb strings.Builder
	sb.WriteString("User-agent: *\n")

	if cfg.DisallowAll {
		sb.WriteString("Disallow: /\n")
		return sb.String()
	}

	for _, path := range privatePaths {
		sb.WriteString("Disallow: " + path + "\n")
	}
	sb.WriteString("Allow: /\n")

	if cfg.SiteURL != "" {
		sb.WriteString("\nSitemap: " + strings.TrimRight(cfg.SiteURL, "/") + "/sitemap.xml\n")
	}
	return sb.String()
}
