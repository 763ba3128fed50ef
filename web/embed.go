// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package web embeds the HTML templates and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:templates
var Templates embed.FS

//go:embed all:static/dist
var Static embed.FS

// TemplatesFS returns the templates rooted at the templates directory, the
// layout render.New expects.
func TemplatesFS() fs.FS {
	return mustSub(Templates, "templates")
}

// StaticFS returns the built assets rooted at static/dist.
func StaticFS() fs.FS {
	return mustSub(Static, "static/dist")
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
