// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"time"
)

// =============================================================================
// USAGE STATISTICS
// =============================================================================

// dayKeyLayout is the calendar-day key format used for usage counters.
const dayKeyLayout = "2006-01-02"

// DayKey returns the calendar-day key for a time in the local zone.
func DayKey(t time.Time) string {
	return t.Format(dayKeyLayout)
}

// ParseDayKey parses a calendar-day key back into a local midnight time.
func ParseDayKey(key string) (time.Time, error) {
	return time.ParseInLocation(dayKeyLayout, key, time.Local)
}

// Kind distinguishes queries made inside the app from ones the user
// logged manually.
type Kind string

const (
	// KindInternal counts queries sent through the app.
	KindInternal Kind = "internal"
	// KindExternal counts queries logged from outside the app.
	KindExternal Kind = "external"
)

// Valid reports whether the kind is one of the two known values.
func (k Kind) Valid() bool {
	return k == KindInternal || k == KindExternal
}

// DailyStat is the pair of query counters for one calendar day.
type DailyStat struct {
	Date          string `json:"date"` // YYYY-MM-DD
	InternalCount int    `json:"internalCount"`
	ExternalCount int    `json:"externalCount"`
}

// Total returns the combined count for the day.
func (d DailyStat) Total() int {
	return d.InternalCount + d.ExternalCount
}

// StatMap maps calendar-day keys to that day's counters. Days with no
// activity are absent; readers treat a missing key as zero.
type StatMap map[string]DailyStat

// Increment bumps one counter for the given day, creating the day's
// entry on first use.
func (m StatMap) Increment(kind Kind, key string) {
	stat := m[key]
	stat.Date = key
	if kind == KindExternal {
		stat.ExternalCount++
	} else {
		stat.InternalCount++
	}
	m[key] = stat
}

// Count returns the combined counter for a day, zero when absent.
func (m StatMap) Count(key string) int {
	return m[key].Total()
}

// Sorted returns the stats as a slice ordered by ascending date. Day keys
// are zero-padded, so lexicographic order is chronological order.
func (m StatMap) Sorted() []DailyStat {
	out := make([]DailyStat, 0, len(m))
	for date, stat := range m {
		stat.Date = date
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// Total returns the sum of all counters across every day.
func (m StatMap) Total() int {
	total := 0
	for _, stat := range m {
		total += stat.Total()
	}
	return total
}

// TotalInternal returns the sum of in-app counters.
func (m StatMap) TotalInternal() int {
	total := 0
	for _, stat := range m {
		total += stat.InternalCount
	}
	return total
}

// TotalExternal returns the sum of externally logged counters.
func (m StatMap) TotalExternal() int {
	total := 0
	for _, stat := range m {
		total += stat.ExternalCount
	}
	return total
}
