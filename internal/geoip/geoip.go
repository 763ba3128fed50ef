// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package geoip resolves client IP addresses to ISO country codes using a
// MaxMind GeoLite2-Country database. Without a database every lookup
// returns "" so callers never need to check whether it is configured.
package geoip

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/oschwald/maxminddb-golang"
)

// CountryLocal is returned for loopback and private addresses.
const CountryLocal = "LOCAL"

var privateNets = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"fc00::/7",
	"fe80::/10",
)

func mustParseCIDRs(blocks ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(blocks))
	for _, b := range blocks {
		_, n, err := net.ParseCIDR(b)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Lookup is safe for concurrent use.
type Lookup struct {
	mu      sync.RWMutex
	reader  *maxminddb.Reader
	path    string
	modTime time.Time
}

// Open loads the database at path. An empty path returns a disabled Lookup.
func Open(path string) (*Lookup, error) {
	l := &Lookup{path: path}
	if path == "" {
		return l, nil
	}
	if err := l.load(); err != nil {
		return l, err
	}
	return l, nil
}

// Reload reopens the database file if it changed on disk.
func (l *Lookup) Reload() error {
	if l.path == "" {
		return nil
	}
	return l.load()
}

func (l *Lookup) load() error {
	info, err := os.Stat(l.path)
	if err != nil {
		return fmt.Errorf("stat GeoIP database: %w", err)
	}

	l.mu.RLock()
	unchanged := l.reader != nil && info.ModTime().Equal(l.modTime)
	l.mu.RUnlock()
	if unchanged {
		return nil
	}

	reader, err := maxminddb.Open(l.path)
	if err != nil {
		return fmt.Errorf("opening GeoIP database: %w", err)
	}

	l.mu.Lock()
	old := l.reader
	l.reader = reader
	l.modTime = info.ModTime()
	l.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Enabled reports whether a database is loaded.
func (l *Lookup) Enabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reader != nil
}

// Country returns the ISO code for ip, CountryLocal for private and
// loopback addresses, and "" when unknown.
func (l *Lookup) Country(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if parsed.IsLoopback() || isPrivate(parsed) {
		return CountryLocal
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.reader == nil {
		return ""
	}

	var rec countryRecord
	if err := l.reader.Lookup(parsed, &rec); err != nil {
		return ""
	}
	return rec.Country.ISOCode
}

// Close releases the database.
func (l *Lookup) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reader == nil {
		return nil
	}
	err := l.reader.Close()
	l.reader = nil
	return err
}

func isPrivate(ip net.IP) bool {
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
