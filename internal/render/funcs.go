// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/olegiv/oevent/internal/i18n"
	"github.com/olegiv/oevent/internal/model"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
	)
	htmlSanitizer = bluemonday.UGCPolicy()
)

// Markdown converts event descriptions to sanitized HTML. Raw HTML in the
// source is escaped by goldmark and anything left is filtered again.
func Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(htmlSanitizer.SanitizeBytes(buf.Bytes()))
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"T":        i18n.T,
		"markdown": Markdown,
		"categoryLabel": func(c string) string {
			return model.Category(c).Label()
		},
		"categories": func() []model.Category {
			return model.Categories
		},
		"roleLabel": func(r model.Role) string {
			if r == model.RoleNone {
				return "No role"
			}
			return r.GroupName()
		},
		"dashboardPath": func(r model.Role) string {
			return r.DashboardPath()
		},
		"formatDate": func(t time.Time) string {
			return t.UTC().Format("Jan 2, 2006")
		},
		"formatDateTime": func(t time.Time) string {
			return t.UTC().Format("Jan 2, 2006 15:04")
		},
		"dateInput": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.UTC().Format(model.DateInputLayout)
		},
		"mediaURL": func(rel string) string {
			if rel == "" {
				return ""
			}
			return "/media/" + strings.TrimPrefix(rel, "/")
		},
		"truncate": func(s string, n int) string {
			runes := []rune(s)
			if len(runes) <= n {
				return s
			}
			return string(runes[:n]) + "..."
		},
		"initial": func(s string) string {
			for _, r := range s {
				return strings.ToUpper(string(r))
			}
			return "?"
		},
	}
}
