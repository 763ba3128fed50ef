// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides general-purpose helpers: slug generation, client IP
// extraction and upload path safety checks.
package util

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// slugStrip matches everything that is not a word character, space or hyphen.
	slugStrip = regexp.MustCompile(`[^a-z0-9_\s-]+`)
	// slugSeparators matches runs of whitespace and hyphens.
	slugSeparators = regexp.MustCompile(`[\s-]+`)
)

// Slugify converts a title to a URL-friendly slug. Non-Latin scripts are
// transliterated, accents are dropped, and runs of spaces or hyphens collapse
// into a single hyphen. Underscores are kept.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)

	result = strings.ToLower(unidecode.Unidecode(result))
	result = slugStrip.ReplaceAllString(result, "")
	result = slugSeparators.ReplaceAllString(result, "-")

	return strings.Trim(result, "-_")
}

// IsValidSlug reports whether s could have been produced by Slugify.
func IsValidSlug(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_') {
			return false
		}
	}
	if strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") || strings.Contains(s, "--") {
		return false
	}
	return true
}
