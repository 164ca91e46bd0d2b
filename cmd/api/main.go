package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estatetoken/internal/config"
	"estatetoken/internal/database"
	"estatetoken/internal/jobs"
	"estatetoken/internal/logger"
	"estatetoken/internal/server"

	"golang.org/x/sync/errgroup"
)

// @title           EstateToken API
// @version         1.0
// @description     Settlement and portfolio accounting for tokenized real-estate offerings.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey PipelineKey
// @in header
// @name X-API-Key
// @description Shared key for pipeline and admin endpoints.

const shutdownTimeout = 10 * time.Second

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.PipelineAPIKey == "" {
		log.Warn("PIPELINE_API_KEY is not set; pipeline endpoints will reject every request")
	}

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	app := server.New(appConfig, dbManager.DB())
	router, err := app.Router(appConfig)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("Starting EstateToken server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("Shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	if appConfig.AggregationEnabled {
		scheduler := jobs.NewScheduler("candle-aggregation", appConfig.AggregationInterval, jobs.Aggregation(app.Candles))
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	} else {
		log.Info("Candle aggregation job disabled")
	}

	return g.Wait()
}
