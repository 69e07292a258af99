// cmd/rollover/main.go
//
// Daily earnings rollover: zeroes every account's today_earnings counter.
// Meant to be run once per day by cron or the deployment's scheduler.
package main

import (
	"context"
	"os"

	app "southmoney-ledger/internal"
)

func main() {
	ctx := context.Background()

	application := app.NewApplication()
	if err := application.Initialize(ctx); err != nil {
		if application.Logger != nil {
			application.Logger.Error("Failed to initialize application", "error", err)
		}
		os.Exit(1)
	}

	count, err := application.LedgerService.ResetTodayEarnings(ctx)
	if err != nil {
		application.Logger.Error("Daily earnings rollover failed", "error", err)
		_ = application.Shutdown(ctx)
		os.Exit(1)
	}

	application.Logger.Info("Daily earnings rollover complete", "accounts", count)
	if err := application.Shutdown(ctx); err != nil {
		os.Exit(1)
	}
}
