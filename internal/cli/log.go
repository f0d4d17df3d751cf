// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// log.go - manual logging of queries made outside the app.
//
// Command: log
// Short:   Record external queries against a day's counter
//
// Examples:
//   queryquant log                       Log one external query for today
//   queryquant log -n 3                  Log three
//   queryquant log --date 2025-08-01     Log against a past day
package cli

import (
	"fmt"
	"time"

	"queryquant/internal/model"
)

// HandleLog records external queries. Each unit bumps the day's
// external counter; internal counts only ever move through the chat
// controller.
func HandleLog(app *App, args Args) error {
	day := time.Now()
	if args.Date != "" {
		parsed, err := model.ParseDayKey(args.Date)
		if err != nil {
			return usageErrorf("invalid date %q (want YYYY-MM-DD)", args.Date)
		}
		day = parsed
	}
	if args.N < 1 {
		return usageErrorf("count must be at least 1")
	}

	for i := 0; i < args.N; i++ {
		if err := app.Stats.IncrementDay(model.KindExternal, day); err != nil {
			return &CommandError{Command: "log", Action: "increment", Reason: "could not persist counter", Err: err}
		}
	}

	key := model.DayKey(day)
	stat := app.Stats.All()[key]
	if !args.Quiet {
		fmt.Printf("%s %s now at %d external, %d in-app\n",
			SuccessStyle.Render("Logged."), key, stat.ExternalCount, stat.InternalCount)
	}
	return nil
}
