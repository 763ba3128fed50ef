// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/olegiv/oevent/internal/testutil"
)

func TestMediaServe(t *testing.T) {
	env := newTestEnv(t)
	h := NewMediaHandler(env.renderer, env.sm, env.uploadsDir, testutil.TestLoggerSilent())

	dir := filepath.Join(env.uploadsDir, "events")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "poster.txt"), []byte("poster"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"file", "/media/events/poster.txt", http.StatusOK},
		{"missing", "/media/events/nope.jpg", http.StatusNotFound},
		{"directory", "/media/events", http.StatusNotFound},
		{"root", "/media/", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.serve(t, RouteMedia, h.Serve, get(tt.target), nil)
			assertStatus(t, res, tt.status)
			if tt.status == http.StatusOK && res.Body.String() != "poster" {
				t.Errorf("body = %q, want %q", res.Body.String(), "poster")
			}
		})
	}
}
