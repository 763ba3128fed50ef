// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Category is an event category.
type Category string

// Event categories.
const (
	CategoryMusic  Category = "music"
	CategorySports Category = "sports"
	CategoryTech   Category = "tech"
	CategoryArt    Category = "art"
)

// DefaultCategory is used when a form leaves the category empty.
const DefaultCategory = CategoryMusic

// Categories lists every category in display order.
var Categories = []Category{CategoryMusic, CategorySports, CategoryTech, CategoryArt}

// Label returns the human-readable category name.
func (c Category) Label() string {
	switch c {
	case CategoryMusic:
		return "Music"
	case CategorySports:
		return "Sports"
	case CategoryTech:
		return "Technology"
	case CategoryArt:
		return "Art"
	default:
		return string(c)
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Date layouts.
const (
	// DateInputLayout is the datetime-local form value format.
	DateInputLayout = "2006-01-02T15:04"
	// EmailDateLayout is used for event times in notification emails.
	EmailDateLayout = "2006-01-02 15:04:05"
)

// MaxTitleLength bounds event titles.
const MaxTitleLength = 255
