// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// dashboard.go - usage dashboard for the "dashboard" command.
//
// Command: dashboard
// Short:   Show usage statistics for a reporting window
//
// Examples:
//   queryquant dashboard                Last 30 days
//   queryquant dashboard --range 7d     Last week
//   queryquant dashboard --range all    Everything on record
//   queryquant dashboard --range 2025   One calendar year
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"queryquant/internal/model"
	"queryquant/internal/telemetry"
)

// HandleDashboard renders the telemetry dashboard.
func HandleDashboard(app *App, args Args) error {
	stats := app.Stats.All()
	now := time.Now()

	// A bare year selects that calendar year; everything else is a
	// standard window.
	var (
		r     telemetry.Range
		label string
	)
	if year, ok := parseYear(args.Range); ok {
		stats = filterYear(stats, year)
		r = telemetry.RangeAll
		label = strconv.Itoa(year)
		// Clamp "now" inside the year so streaks and series stay within it.
		if endOfYear := time.Date(year, 12, 31, 23, 59, 59, 0, time.Local); endOfYear.Before(now) {
			now = endOfYear
		}
	} else {
		var err error
		r, err = telemetry.ParseRange(args.Range)
		if err != nil {
			return usageErrorf("%v", err)
		}
		label = string(r)
	}

	summary := telemetry.Summarize(stats, r, now)
	current, longest := telemetry.Streaks(stats, now)

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(struct {
			Range         string  `json:"range"`
			Total         int     `json:"total"`
			Internal      int     `json:"internal"`
			External      int     `json:"external"`
			ActiveDays    int     `json:"activeDays"`
			DailyAvg      float64 `json:"dailyAvg"`
			PeakDay       string  `json:"peakDay,omitempty"`
			PeakCount     int     `json:"peakCount"`
			TrendPct      float64 `json:"trendPct"`
			HasPrevious   bool    `json:"hasPrevious"`
			CurrentStreak int     `json:"currentStreak"`
			LongestStreak int     `json:"longestStreak"`
		}{
			Range: label, Total: summary.Total,
			Internal: summary.Internal, External: summary.External,
			ActiveDays: summary.ActiveDays, DailyAvg: summary.DailyAvg,
			PeakDay: summary.PeakDay, PeakCount: summary.PeakCount,
			TrendPct: summary.TrendPct, HasPrevious: summary.HasPrevious,
			CurrentStreak: current, LongestStreak: longest,
		})
	}

	fmt.Println(TitleStyle.Render("Usage Dashboard (" + label + ")"))

	printStat("Total queries", strconv.Itoa(summary.Total))
	printStat("In-app", strconv.Itoa(summary.Internal))
	printStat("External", strconv.Itoa(summary.External))
	printStat("Active days", strconv.Itoa(summary.ActiveDays))
	printStat("Daily average", fmt.Sprintf("%.1f", summary.DailyAvg))
	if summary.PeakDay != "" {
		printStat("Peak day", fmt.Sprintf("%s (%d)", summary.PeakDay, summary.PeakCount))
	}
	if summary.HasPrevious {
		arrow := "▲"
		if summary.TrendPct < 0 {
			arrow = "▼"
		}
		printStat("Trend", fmt.Sprintf("%s %.0f%% vs previous %s", arrow, summary.TrendPct, label))
	}
	printStat("Streak", fmt.Sprintf("%d days (longest %d)", current, longest))

	// Short windows get a per-day bar chart; long ones the heatmap.
	if days := r.Days(); days > 0 && days <= 31 {
		fmt.Println(SectionStyle.Render("Daily activity"))
		printBars(telemetry.Series(stats, r, now))
	} else {
		fmt.Println(SectionStyle.Render("Heatmap (last 52 weeks)"))
		printHeatmap(telemetry.Heatmap(stats, now))
	}
	return nil
}

// parseYear recognizes a four-digit calendar year.
func parseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return 0, false
	}
	year, err := strconv.Atoi(s)
	if err != nil || year < 1970 || year > 9999 {
		return 0, false
	}
	return year, true
}

// filterYear keeps only the days belonging to one calendar year.
func filterYear(stats model.StatMap, year int) model.StatMap {
	prefix := fmt.Sprintf("%04d-", year)
	out := model.StatMap{}
	for key, stat := range stats {
		if strings.HasPrefix(key, prefix) {
			out[key] = stat
		}
	}
	return out
}

func printStat(label, value string) {
	fmt.Printf("  %s %s\n", LabelStyle.Render(label), ValueStyle.Render(value))
}

// printBars renders one bar per day, scaled to the busiest day.
func printBars(series []model.DailyStat) {
	maxCount := 0
	for _, stat := range series {
		if stat.Total() > maxCount {
			maxCount = stat.Total()
		}
	}
	if maxCount == 0 {
		fmt.Println(DimStyle.Render("  no activity in this window"))
		return
	}

	// Leave room for the date gutter and the count suffix.
	barWidth := TerminalWidth() - 24
	if barWidth < 10 {
		barWidth = 10
	}
	for _, stat := range series {
		count := stat.Total()
		width := count * barWidth / maxCount
		bar := strings.Repeat("█", width)
		if count > 0 && width == 0 {
			bar = "▏"
		}
		line := fmt.Sprintf("  %s %s %d", DimStyle.Render(stat.Date), heatStyles[telemetry.Level(count)].Render(bar), count)
		if runewidth.StringWidth(line) > TerminalWidth() {
			line = runewidth.Truncate(line, TerminalWidth(), "")
		}
		fmt.Println(line)
	}
}

// printHeatmap renders the 52-week grid, one row per weekday.
func printHeatmap(grid [][]int) {
	dayLabels := [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	for dow := 0; dow < 7; dow++ {
		var sb strings.Builder
		sb.WriteString("  ")
		sb.WriteString(DimStyle.Render(dayLabels[dow]))
		sb.WriteString(" ")
		for week := range grid {
			level := grid[week][dow]
			if level < 0 {
				sb.WriteString(" ")
				continue
			}
			sb.WriteString(heatStyles[level].Render("■"))
		}
		fmt.Println(sb.String())
	}
}
