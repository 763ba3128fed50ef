// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/olegiv/oevent/internal/i18n"
)

// LanguageCookieName stores an explicit language choice.
const LanguageCookieName = "oevent_lang"

// Language picks the interface language in this order: a ?lang= switch
// (which also sets the cookie), the cookie, then Accept-Language.
func Language(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := ""

		if q := strings.ToLower(r.URL.Query().Get("lang")); q != "" && i18n.IsSupported(q) {
			lang = q
			SetLanguageCookie(w, lang)
		} else if c, err := r.Cookie(LanguageCookieName); err == nil && i18n.IsSupported(c.Value) {
			lang = strings.ToLower(c.Value)
		} else {
			lang = i18n.Match(r.Header.Get("Accept-Language"))
		}

		ctx := context.WithValue(r.Context(), ContextKeyLanguage, lang)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetLanguage returns the request language, defaulting to English.
func GetLanguage(r *http.Request) string {
	if lang, ok := r.Context().Value(ContextKeyLanguage).(string); ok && lang != "" {
		return lang
	}
	return i18n.DefaultLanguage
}

// SetLanguageCookie remembers the language for a year.
func SetLanguageCookie(w http.ResponseWriter, lang string) {
	http.SetCookie(w, &http.Cookie{
		Name:     LanguageCookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
