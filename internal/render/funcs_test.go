// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"strings"
	"testing"
	"time"

	"github.com/olegiv/oevent/internal/model"
)

func TestMarkdown(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		notWant string
	}{
		{"emphasis", "Live **jazz**", "<strong>jazz</strong>", ""},
		{"link", "[site](https://example.com)", `href="https://example.com"`, ""},
		{"script stripped", "hi <script>alert(1)</script>", "hi", "<script>"},
		{"javascript link", "[x](javascript:alert(1))", "x", "javascript:"},
		{"table", "| a | b |\n|---|---|\n| 1 | 2 |", "<table>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(Markdown(tt.in))
			if !strings.Contains(got, tt.want) {
				t.Errorf("Markdown(%q) = %q, want it to contain %q", tt.in, got, tt.want)
			}
			if tt.notWant != "" && strings.Contains(got, tt.notWant) {
				t.Errorf("Markdown(%q) = %q, must not contain %q", tt.in, got, tt.notWant)
			}
		})
	}
}

func TestTemplateFuncs(t *testing.T) {
	funcs := templateFuncs()
	at := time.Date(2026, 5, 1, 19, 30, 0, 0, time.UTC)

	if got := funcs["formatDate"].(func(time.Time) string)(at); got != "May 1, 2026" {
		t.Errorf("formatDate = %q", got)
	}
	if got := funcs["formatDateTime"].(func(time.Time) string)(at); got != "May 1, 2026 19:30" {
		t.Errorf("formatDateTime = %q", got)
	}

	dateInput := funcs["dateInput"].(func(time.Time) string)
	if got := dateInput(at); got != "2026-05-01T19:30" {
		t.Errorf("dateInput = %q", got)
	}
	if got := dateInput(time.Time{}); got != "" {
		t.Errorf("dateInput(zero) = %q, want empty", got)
	}

	mediaURL := funcs["mediaURL"].(func(string) string)
	if got := mediaURL("events/a.png"); got != "/media/events/a.png" {
		t.Errorf("mediaURL = %q", got)
	}
	if got := mediaURL(""); got != "" {
		t.Errorf("mediaURL(empty) = %q", got)
	}

	if got := funcs["categoryLabel"].(func(string) string)("tech"); got != "Technology" {
		t.Errorf("categoryLabel = %q", got)
	}

	roleLabel := funcs["roleLabel"].(func(model.Role) string)
	if got := roleLabel(model.RoleAdmin); got != "Admin" {
		t.Errorf("roleLabel(admin) = %q", got)
	}
	if got := roleLabel(model.RoleNone); got != "No role" {
		t.Errorf("roleLabel(none) = %q", got)
	}

	truncate := funcs["truncate"].(func(string, int) string)
	if got := truncate("Grüße aus Berlin", 5); got != "Grüße..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}

	initial := funcs["initial"].(func(string) string)
	if got := initial("émile"); got != "É" {
		t.Errorf("initial = %q", got)
	}
	if got := initial(""); got != "?" {
		t.Errorf("initial(empty) = %q", got)
	}
}
