// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package i18n

import (
	"encoding/json"
	"testing"
)

func TestInit(t *testing.T) {
	if err := Init(nil); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	for _, lang := range SupportedLanguages {
		if Count(lang) == 0 {
			t.Errorf("Count(%q) = 0, want translations", lang)
		}
	}
}

func TestT(t *testing.T) {
	if err := Init(nil); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	tests := []struct {
		lang string
		key  string
		args []any
		want string
	}{
		{"en", "flash.rsvp_success", nil, "You have successfully RSVPed to the event!"},
		{"ru", "btn.save", nil, "Сохранить"},
		{"en", "flash.group_created", []any{"Volunteers"}, "Group 'Volunteers' created successfully!"},
		{"en", "flash.role_changed", []any{"bob", "Organizer"}, "User bob's role changed to Organizer."},
		{"de", "btn.cancel", nil, "Cancel"},
		{"en", "nonexistent.key", nil, "nonexistent.key"},
	}

	for _, tt := range tests {
		t.Run(tt.lang+"_"+tt.key, func(t *testing.T) {
			if got := T(tt.lang, tt.key, tt.args...); got != tt.want {
				t.Errorf("T(%q, %q) = %q, want %q", tt.lang, tt.key, got, tt.want)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	if err := Init(nil); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	tests := []struct {
		accept string
		want   string
	}{
		{"", "en"},
		{"ru-RU,ru;q=0.9,en;q=0.8", "ru"},
		{"en-US,en;q=0.9", "en"},
		{"ru", "ru"},
		{"de-DE", "en"},
		{"!!!", "en"},
	}
	for _, tt := range tests {
		if got := Match(tt.accept); got != tt.want {
			t.Errorf("Match(%q) = %q, want %q", tt.accept, got, tt.want)
		}
	}
}

func TestIsSupported(t *testing.T) {
	for lang, want := range map[string]bool{"en": true, "RU": true, "de": false, "": false} {
		if got := IsSupported(lang); got != want {
			t.Errorf("IsSupported(%q) = %v, want %v", lang, got, want)
		}
	}
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	keys := make(map[string]map[string]bool)
	for _, lang := range SupportedLanguages {
		data, err := localesFS.ReadFile("locales/" + lang + "/messages.json")
		if err != nil {
			t.Fatalf("reading %s: %v", lang, err)
		}
		var file MessageFile
		if err := json.Unmarshal(data, &file); err != nil {
			t.Fatalf("parsing %s: %v", lang, err)
		}
		keys[lang] = make(map[string]bool)
		for _, m := range file.Messages {
			if m.Translation == "" {
				t.Errorf("%s: %s has an empty translation", lang, m.ID)
			}
			keys[lang][m.ID] = true
		}
	}
	for key := range keys["en"] {
		if !keys["ru"][key] {
			t.Errorf("ru is missing %s", key)
		}
	}
	if len(keys["en"]) != len(keys["ru"]) {
		t.Errorf("en has %d keys, ru has %d", len(keys["en"]), len(keys["ru"]))
	}
}
