// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package i18n translates user-facing messages and interface labels.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

//go:embed locales
var localesFS embed.FS

// DefaultLanguage is used when nothing better matches.
const DefaultLanguage = "en"

// SupportedLanguages lists the languages with a message catalog.
var SupportedLanguages = []string{"en", "ru"}

// Message is a single translatable message.
type Message struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	Translation string `json:"translation"`
}

// MessageFile is the layout of locales/{lang}/messages.json.
type MessageFile struct {
	Language string    `json:"language"`
	Messages []Message `json:"messages"`
}

type catalog struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
	matcher      language.Matcher
	supported    []language.Tag
	logger       *slog.Logger
}

var global *catalog

// Init loads every supported catalog from the embedded locales.
func Init(logger *slog.Logger) error {
	c := &catalog{
		translations: make(map[string]map[string]string),
		logger:       logger,
	}
	for _, lang := range SupportedLanguages {
		c.supported = append(c.supported, language.MustParse(lang))
		if err := c.load(lang); err != nil {
			return fmt.Errorf("loading language %s: %w", lang, err)
		}
	}
	c.matcher = language.NewMatcher(c.supported)
	global = c

	if logger != nil {
		logger.Debug("i18n initialized", "languages", SupportedLanguages)
	}
	return nil
}

func (c *catalog) load(lang string) error {
	path := "locales/" + lang + "/messages.json"
	data, err := localesFS.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var file MessageFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	messages := make(map[string]string, len(file.Messages))
	for _, m := range file.Messages {
		messages[m.ID] = m.Translation
	}

	c.mu.Lock()
	c.translations[lang] = messages
	c.mu.Unlock()
	return nil
}

// T translates key into lang, formatting args with fmt.Sprintf. Missing
// translations fall back to English, then to the key itself.
func T(lang, key string, args ...any) string {
	if global == nil {
		return key
	}

	global.mu.RLock()
	translation, ok := global.translations[lang][key]
	if !ok {
		translation, ok = global.translations[DefaultLanguage][key]
		if ok && lang != DefaultLanguage && global.logger != nil {
			global.logger.Debug("missing translation, using default", "key", key, "lang", lang)
		}
	}
	global.mu.RUnlock()

	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(translation, args...)
	}
	return translation
}

// Match picks the best supported language for an Accept-Language header
// or a bare language code.
func Match(accept string) string {
	if global == nil || accept == "" {
		return DefaultLanguage
	}

	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}

	_, idx, confidence := global.matcher.Match(tags...)
	if confidence == language.No || idx < 0 || idx >= len(global.supported) {
		return DefaultLanguage
	}
	return SupportedLanguages[idx]
}

// IsSupported reports whether lang has a catalog.
func IsSupported(lang string) bool {
	lang = strings.ToLower(lang)
	for _, supported := range SupportedLanguages {
		if supported == lang {
			return true
		}
	}
	return false
}

// Count returns the number of messages loaded for lang.
func Count(lang string) int {
	if global == nil {
		return 0
	}
	global.mu.RLock()
	defer global.mu.RUnlock()
	return len(global.translations[lang])
}
