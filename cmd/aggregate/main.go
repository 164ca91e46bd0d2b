// Command aggregate recomputes daily portfolio candles once and exits. It is
// meant for cron or manual backfills when the API's built-in job is disabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estatetoken/internal/config"
	"estatetoken/internal/database"
	"estatetoken/internal/logger"
	"estatetoken/internal/pagination"
	"estatetoken/internal/server"
	"estatetoken/internal/services"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Aggregation error: %v", err)
	}
}

func run() error {
	from := flag.String("from", "", "first day to aggregate (YYYY-MM-DD)")
	to := flag.String("to", "", "last day to aggregate, inclusive (YYYY-MM-DD)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	app := server.New(cfg, dbManager.DB())

	var result *services.AggregationResult
	if *from == "" && *to == "" {
		result, err = app.Candles.Aggregate(ctx)
	} else {
		window := pagination.DateRange{From: *from, To: *to}
		window.Defaults(time.Now())
		start, end, berr := window.Bounds()
		if berr != nil {
			return fmt.Errorf("invalid window: %w", berr)
		}
		result, err = app.Candles.AggregateWindow(ctx, start, end)
	}
	if err != nil {
		return err
	}

	logger.Get().Infow("Aggregation finished",
		"from", result.From.Format(pagination.DayLayout),
		"to", result.To.Format(pagination.DayLayout),
		"snapshots", result.Snapshots,
		"candles", result.Candles,
		"users", result.Users,
	)
	return nil
}
