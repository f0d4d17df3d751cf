// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry aggregates the per-day usage counters into the
// figures the dashboard renders: range totals, trends, streaks, and the
// contribution heatmap.
package telemetry

import (
	"fmt"
	"strings"
	"time"

	"queryquant/internal/model"
)

// =============================================================================
// TIME RANGES
// =============================================================================

// Range selects the dashboard's reporting window.
type Range string

const (
	Range7Days   Range = "7d"
	Range30Days  Range = "30d"
	Range6Months Range = "6m"
	RangeYear    Range = "1y"
	RangeAll     Range = "all"
)

// ParseRange converts a string into a Range.
func ParseRange(s string) (Range, error) {
	switch Range(strings.ToLower(strings.TrimSpace(s))) {
	case Range7Days:
		return Range7Days, nil
	case Range30Days:
		return Range30Days, nil
	case Range6Months:
		return Range6Months, nil
	case RangeYear:
		return RangeYear, nil
	case RangeAll:
		return RangeAll, nil
	default:
		return "", fmt.Errorf("unknown range %q (want 7d, 30d, 6m, 1y, or all)", s)
	}
}

// Days returns the window length in days, or 0 for the unbounded range.
func (r Range) Days() int {
	switch r {
	case Range7Days:
		return 7
	case Range30Days:
		return 30
	case Range6Months:
		return 182
	case RangeYear:
		return 365
	default:
		return 0
	}
}

// start returns the first day inside the window ending at now.
func (r Range) start(now time.Time) (time.Time, bool) {
	days := r.Days()
	if days == 0 {
		return time.Time{}, false
	}
	return dayStart(now).AddDate(0, 0, -(days - 1)), true
}

// dayStart truncates a time to local midnight.
func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary holds the headline figures for one reporting window. Total is
// the sum of both counters; Internal and External carry the split.
type Summary struct {
	Total       int
	Internal    int
	External    int
	ActiveDays  int
	PeakDay     string
	PeakCount   int
	DailyAvg    float64
	TrendPct    float64
	HasPrevious bool
}

// Summarize computes the headline figures for a window ending at now.
// TrendPct compares the window's total with the preceding window of the
// same length; the unbounded range has no previous window.
func Summarize(stats model.StatMap, r Range, now time.Time) Summary {
	start, bounded := r.start(now)

	var s Summary
	prevTotal := 0
	for key, stat := range stats {
		day, err := model.ParseDayKey(key)
		if err != nil {
			continue
		}
		count := stat.Total()
		if bounded && day.Before(start) {
			if !day.Before(start.AddDate(0, 0, -r.Days())) {
				prevTotal += count
			}
			continue
		}
		if day.After(now) {
			continue
		}
		s.Total += count
		s.Internal += stat.InternalCount
		s.External += stat.ExternalCount
		if count > 0 {
			s.ActiveDays++
		}
		if count > s.PeakCount {
			s.PeakCount = count
			s.PeakDay = key
		}
	}

	if bounded {
		s.DailyAvg = float64(s.Total) / float64(r.Days())
	} else if s.ActiveDays > 0 {
		s.DailyAvg = float64(s.Total) / float64(s.ActiveDays)
	}

	if bounded && prevTotal > 0 {
		s.HasPrevious = true
		s.TrendPct = (float64(s.Total) - float64(prevTotal)) / float64(prevTotal) * 100
	}
	return s
}

// =============================================================================
// SERIES
// =============================================================================

// Series returns one entry per day in the window, oldest first, with
// zero-count gaps filled so plots have a continuous axis. The unbounded
// range spans from the earliest recorded day.
func Series(stats model.StatMap, r Range, now time.Time) []model.DailyStat {
	start, bounded := r.start(now)
	if !bounded {
		sorted := stats.Sorted()
		if len(sorted) == 0 {
			return nil
		}
		first, err := model.ParseDayKey(sorted[0].Date)
		if err != nil {
			return sorted
		}
		start = first
	}

	end := dayStart(now)
	var out []model.DailyStat
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := model.DayKey(day)
		stat := stats[key]
		stat.Date = key
		out = append(out, stat)
	}
	return out
}

// =============================================================================
// STREAKS
// =============================================================================

// Streaks returns the current run of consecutive active days ending today
// (or yesterday, so an unfinished today does not break it) and the longest
// run on record.
func Streaks(stats model.StatMap, now time.Time) (current, longest int) {
	day := dayStart(now)
	if stats.Count(model.DayKey(day)) == 0 {
		day = day.AddDate(0, 0, -1)
	}
	for stats.Count(model.DayKey(day)) > 0 {
		current++
		day = day.AddDate(0, 0, -1)
	}

	run := 0
	prev := time.Time{}
	for _, stat := range stats.Sorted() {
		if stat.Total() == 0 {
			continue
		}
		d, err := model.ParseDayKey(stat.Date)
		if err != nil {
			continue
		}
		if !prev.IsZero() && prev.AddDate(0, 0, 1).Equal(d) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
		prev = d
	}
	return current, longest
}

// =============================================================================
// HEATMAP
// =============================================================================

// HeatmapWeeks is the width of the contribution heatmap.
const HeatmapWeeks = 52

// Heatmap returns a 52-week grid of intensity levels, columns oldest
// first, each column holding Sunday through Saturday. Days after now
// carry level -1 so renderers can skip them.
func Heatmap(stats model.StatMap, now time.Time) [][]int {
	end := dayStart(now)
	// Align the last column to the week containing now.
	lastSunday := end.AddDate(0, 0, -int(end.Weekday()))
	start := lastSunday.AddDate(0, 0, -7*(HeatmapWeeks-1))

	grid := make([][]int, HeatmapWeeks)
	for week := 0; week < HeatmapWeeks; week++ {
		grid[week] = make([]int, 7)
		for dow := 0; dow < 7; dow++ {
			day := start.AddDate(0, 0, week*7+dow)
			if day.After(end) {
				grid[week][dow] = -1
				continue
			}
			grid[week][dow] = Level(stats.Count(model.DayKey(day)))
		}
	}
	return grid
}

// Level maps a day's count to an intensity level 0 through 4 using the
// fixed buckets 0, 1-2, 3-5, 6-9, 10+.
func Level(count int) int {
	switch {
	case count <= 0:
		return 0
	case count <= 2:
		return 1
	case count <= 5:
		return 2
	case count <= 9:
		return 3
	default:
		return 4
	}
}
