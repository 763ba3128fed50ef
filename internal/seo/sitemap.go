// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package seo builds robots.txt and the sitemap of public event pages.
package seo

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// XMLNamespace is the sitemap XML namespace.
const XMLNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// ChangeFreq represents the change frequency of a URL.
type ChangeFreq string

// Change frequencies used by the sitemap.
const (
	ChangeFreqDaily  ChangeFreq = "daily"
	ChangeFreqWeekly ChangeFreq = "weekly"
	ChangeFreqNever  ChangeFreq = "never"
)

// SitemapURL is a single URL entry.
type SitemapURL struct {
	Loc        string     `xml:"loc"`
	LastMod    string     `xml:"lastmod,omitempty"`
	ChangeFreq ChangeFreq `xml:"changefreq,omitempty"`
	Priority   string     `xml:"priority,omitempty"`
}

// Sitemap is the complete sitemap document.
type Sitemap struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []SitemapURL `xml:"url"`
}

// SitemapEvent is the part of an event the sitemap needs.
type SitemapEvent struct {
	ID        int64
	Date      time.Time
	UpdatedAt time.Time
}

// SitemapBuilder collects URLs and renders them as sitemap XML.
type SitemapBuilder struct {
	siteURL string
	now     time.Time
	urls    []SitemapURL
}

// NewSitemapBuilder creates a builder for siteURL. now decides which
// events are already over.
func NewSitemapBuilder(siteURL string, now time.Time) *SitemapBuilder {
	return &SitemapBuilder{siteURL: strings.TrimRight(siteURL, "/"), now: now}
}

// AddHomepage adds the event list.
func (b *SitemapBuilder) AddHomepage() {
	b.urls = append(b.urls, SitemapURL{
		Loc:        b.siteURL + "/",
		ChangeFreq: ChangeFreqDaily,
		Priority:   "1.0",
	})
}

// AddEvent adds an event detail page. Past events keep their URL but are
// marked as no longer changing.
func (b *SitemapBuilder) AddEvent(e SitemapEvent) {
	u := SitemapURL{
		Loc:        fmt.Sprintf("%s/event/%d/", b.siteURL, e.ID),
		ChangeFreq: ChangeFreqWeekly,
		Priority:   "0.8",
	}
	if e.Date.Before(b.now) {
		u.ChangeFreq = ChangeFreqNever
		u.Priority = "0.3"
	}
	if !e.UpdatedAt.IsZero() {
		u.LastMod = e.UpdatedAt.UTC().Format(time.RFC3339)
	}
	b.urls = append(b.urls, u)
}

// Build renders the sitemap with an XML header.
func (b *SitemapBuilder) Build() ([]byte, error) {
	xmlBytes, err := xml.MarshalIndent(Sitemap{XMLNS: XMLNamespace, URLs: b.urls}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), xmlBytes...), nil
}

// GenerateSitemap renders the homepage plus one entry per event.
func GenerateSitemap(siteURL string, now time.Time, events []SitemapEvent) ([]byte, error) {
	b := NewSitemapBuilder(siteURL, now)
	b.AddHomepage()
	for _, e := range events {
		b.AddEvent(e)
	}
	return b.Build()
}
