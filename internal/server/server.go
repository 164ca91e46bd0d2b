// Package server wires services, the event bus and the HTTP router. cmd/api
// and the integration tests build the application through it.
package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"estatetoken/internal/config"
	_ "estatetoken/internal/docs" // Import swagger docs
	"estatetoken/internal/events"
	"estatetoken/internal/handlers"
	"estatetoken/internal/locking"
	"estatetoken/internal/middleware"
	"estatetoken/internal/realtime"
	"estatetoken/internal/services"
	"estatetoken/internal/validator"
)

// App holds the wired services shared by the HTTP server and background jobs.
type App struct {
	DB  *gorm.DB
	Bus *events.Bus
	Hub *realtime.Hub

	Settlement services.SettlementServicer
	Portfolio  services.PortfolioServicer
	Candles    services.CandleServicer
	Rewards    services.RewardServicer
	Inventory  services.InventoryServicer
	Analytics  services.AnalyticsServicer
	Audit      services.AuditServicer
}

// New builds every service over db and subscribes the portfolio accounting
// and realtime consumers to the bus.
func New(cfg *config.Config, db *gorm.DB) *App {
	bus := events.NewBus(cfg.EventHandlerTimeout)
	locks := locking.NewManager(cfg.LockTimeout)

	app := &App{
		DB:         db,
		Bus:        bus,
		Hub:        realtime.NewHub(),
		Settlement: services.NewSettlementService(db, locks, bus),
		Portfolio:  services.NewPortfolioService(db, locks),
		Candles:    services.NewCandleService(db, bus),
		Rewards:    services.NewRewardService(db, locks, bus),
		Inventory:  services.NewInventoryService(db, locks, bus),
		Analytics:  services.NewAnalyticsService(db),
		Audit:      services.NewAuditService(db),
	}

	app.Portfolio.Register(bus)
	app.Hub.Subscribe(bus)
	return app
}

// Router assembles the gin engine with every route.
func (a *App) Router(cfg *config.Config) (*gin.Engine, error) {
	validator.Register()

	sqlDB, err := a.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}

	investmentHandler := handlers.NewInvestmentHandler(a.Settlement, a.Analytics, a.Audit)
	portfolioHandler := handlers.NewPortfolioHandler(a.Analytics)
	pipelineHandler := handlers.NewPipelineHandler(a.Candles, a.Portfolio, a.Rewards, a.Inventory, a.Analytics, a.Audit)
	healthHandler := handlers.NewHealthHandler(sqlDB)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/api/health", healthHandler.Health)
	router.GET("/ws/portfolio", realtime.ServeWS(a.Hub, middleware.VerifyAccessToken))

	v1 := router.Group("/api/v1")

	// Pipeline routes (API key auth, no user JWT)
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(cfg.PipelineAPIKey))
	pipeline.POST("/candles/aggregate", pipelineHandler.AggregateCandles)
	pipeline.POST("/snapshots", pipelineHandler.RecordSnapshots)
	pipeline.POST("/rewards", pipelineHandler.DistributeReward)
	pipeline.PUT("/tokens/:ref/price", pipelineHandler.UpdateTokenPrice)
	pipeline.PUT("/tokens/:ref/supply", pipelineHandler.ResizeTokenSupply)
	pipeline.PUT("/tokens/:ref/status", pipelineHandler.SetTokenStatus)
	pipeline.POST("/properties", pipelineHandler.CreateProperty)
	pipeline.POST("/properties/:ref/tokens", pipelineHandler.CreatePropertyToken)
	pipeline.GET("/analytics/properties", pipelineHandler.GetPlatformTotals)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	investments := protected.Group("/investments")
	investments.POST("", investmentHandler.Invest)
	investments.POST("/by-amount", investmentHandler.InvestByAmount)
	investments.GET("", investmentHandler.ListInvestments)
	investments.GET("/:ref", investmentHandler.GetInvestment)

	portfolio := protected.Group("/portfolio")
	portfolio.GET("/summary", portfolioHandler.GetSummary)
	portfolio.GET("/history", portfolioHandler.GetHistory)
	portfolio.GET("/candles", portfolioHandler.GetCandles)
	portfolio.GET("/breakdown", portfolioHandler.GetBreakdown)

	return router, nil
}
