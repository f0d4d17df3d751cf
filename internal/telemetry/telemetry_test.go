// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"testing"
	"time"

	"queryquant/internal/model"
)

// now is a fixed reference point so tests are date-independent.
var now = time.Date(2025, 8, 31, 15, 30, 0, 0, time.Local)

func key(daysAgo int) string {
	return model.DayKey(now.AddDate(0, 0, -daysAgo))
}

// ds builds a day's stat with the given internal count.
func ds(n int) model.DailyStat {
	return model.DailyStat{InternalCount: n}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    Range
		wantErr bool
	}{
		{"7d", Range7Days, false},
		{"30D", Range30Days, false},
		{" 6m ", Range6Months, false},
		{"1y", RangeYear, false},
		{"all", RangeAll, false},
		{"forever", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRange(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRange(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseRange(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestSummarize(t *testing.T) {
	stats := model.StatMap{
		key(0): {InternalCount: 2, ExternalCount: 1}, // today
		key(1): ds(5),                                // yesterday
		key(6): ds(2),                                // inside 7d window
		key(7): ds(10),                               // previous 7d window
		key(9): ds(10),                               // previous 7d window
	}

	s := Summarize(stats, Range7Days, now)
	if s.Total != 10 {
		t.Errorf("Total = %d, want 10", s.Total)
	}
	if s.Internal != 9 || s.External != 1 {
		t.Errorf("Internal/External = %d/%d, want 9/1", s.Internal, s.External)
	}
	if s.ActiveDays != 3 {
		t.Errorf("ActiveDays = %d, want 3", s.ActiveDays)
	}
	if s.PeakDay != key(1) || s.PeakCount != 5 {
		t.Errorf("Peak = %s/%d", s.PeakDay, s.PeakCount)
	}
	if s.DailyAvg != 10.0/7.0 {
		t.Errorf("DailyAvg = %f", s.DailyAvg)
	}
	// Previous window total is 20, so the trend is -50%.
	if !s.HasPrevious {
		t.Fatal("expected a previous window")
	}
	if s.TrendPct != -50 {
		t.Errorf("TrendPct = %f, want -50", s.TrendPct)
	}
}

func TestSummarizeAllRange(t *testing.T) {
	stats := model.StatMap{
		"2024-01-01": ds(6),
		"2025-03-10": ds(4),
	}
	s := Summarize(stats, RangeAll, now)
	if s.Total != 10 || s.ActiveDays != 2 {
		t.Errorf("Total/ActiveDays = %d/%d", s.Total, s.ActiveDays)
	}
	// Unbounded range averages over active days and has no trend.
	if s.DailyAvg != 5 {
		t.Errorf("DailyAvg = %f, want 5", s.DailyAvg)
	}
	if s.HasPrevious {
		t.Error("unbounded range should have no previous window")
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(model.StatMap{}, Range30Days, now)
	if s.Total != 0 || s.ActiveDays != 0 || s.DailyAvg != 0 || s.HasPrevious {
		t.Errorf("empty summary = %+v", s)
	}
}

func TestSeriesFillsGaps(t *testing.T) {
	stats := model.StatMap{
		key(0): ds(2),
		key(3): ds(7),
	}
	series := Series(stats, Range7Days, now)
	if len(series) != 7 {
		t.Fatalf("series length = %d, want 7", len(series))
	}
	if series[0].Date != key(6) || series[6].Date != key(0) {
		t.Errorf("series bounds = %s .. %s", series[0].Date, series[6].Date)
	}
	if series[6].Total() != 2 || series[3].Total() != 7 {
		t.Errorf("series counts wrong: %+v", series)
	}
	// Gap days are present with zero counts.
	if series[1].Total() != 0 || series[5].Total() != 0 {
		t.Errorf("gaps not zero-filled: %+v", series)
	}
}

func TestSeriesAllRangeSpansFromFirstRecord(t *testing.T) {
	stats := model.StatMap{
		key(10): ds(1),
		key(2):  ds(3),
	}
	series := Series(stats, RangeAll, now)
	if len(series) != 11 {
		t.Fatalf("series length = %d, want 11", len(series))
	}
	if series[0].Date != key(10) {
		t.Errorf("first day = %s", series[0].Date)
	}
	if Series(model.StatMap{}, RangeAll, now) != nil {
		t.Error("empty stats should yield nil series")
	}
}

func TestStreaks(t *testing.T) {
	stats := model.StatMap{
		key(0): ds(1),
		key(1): {ExternalCount: 2},
		key(2): ds(1),
		// gap at 3
		key(4): ds(1),
		key(5): ds(1),
		key(6): ds(1),
		key(7): ds(1),
	}
	current, longest := Streaks(stats, now)
	if current != 3 {
		t.Errorf("current = %d, want 3", current)
	}
	if longest != 4 {
		t.Errorf("longest = %d, want 4", longest)
	}
}

func TestStreaksSurvivesQuietToday(t *testing.T) {
	// No query yet today: yesterday's run still counts as current.
	stats := model.StatMap{
		key(1): ds(1),
		key(2): ds(1),
	}
	current, _ := Streaks(stats, now)
	if current != 2 {
		t.Errorf("current = %d, want 2", current)
	}
}

func TestStreaksEmpty(t *testing.T) {
	current, longest := Streaks(model.StatMap{}, now)
	if current != 0 || longest != 0 {
		t.Errorf("streaks = %d/%d, want 0/0", current, longest)
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		count, want int
	}{
		{-1, 0},
		{0, 0},
		{1, 1},
		{2, 1},
		{3, 2},
		{5, 2},
		{6, 3},
		{9, 3},
		{10, 4},
		{40, 4},
	}
	for _, tt := range tests {
		if got := Level(tt.count); got != tt.want {
			t.Errorf("Level(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}

func TestHeatmapShape(t *testing.T) {
	stats := model.StatMap{
		key(0): {InternalCount: 10, ExternalCount: 2},
		key(1): ds(1),
	}
	grid := Heatmap(stats, now)
	if len(grid) != HeatmapWeeks {
		t.Fatalf("weeks = %d, want %d", len(grid), HeatmapWeeks)
	}
	for _, week := range grid {
		if len(week) != 7 {
			t.Fatalf("week length = %d, want 7", len(week))
		}
	}

	// Today sits in the last column at its weekday row with the top level.
	last := grid[HeatmapWeeks-1]
	today := dayStart(now)
	if last[int(today.Weekday())] != 4 {
		t.Errorf("today's level = %d, want 4", last[int(today.Weekday())])
	}
	// Days after now in the final week are marked skipped.
	for dow := int(today.Weekday()) + 1; dow < 7; dow++ {
		if last[dow] != -1 {
			t.Errorf("future day level = %d, want -1", last[dow])
		}
	}
}
