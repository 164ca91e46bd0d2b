package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"estatetoken/internal/pagination"
	"estatetoken/internal/services"
)

// PortfolioHandler serves the read-only portfolio dashboard.
type PortfolioHandler struct {
	analyticsService services.AnalyticsServicer
	now              func() time.Time
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(analyticsService services.AnalyticsServicer) *PortfolioHandler {
	return &PortfolioHandler{analyticsService: analyticsService, now: time.Now}
}

// bindWindow parses from/to query dates, defaulting to the last 30 days.
func (h *PortfolioHandler) bindWindow(c *gin.Context) (pagination.DateRange, error) {
	var window pagination.DateRange
	if err := c.ShouldBindQuery(&window); err != nil {
		return window, bindError(err)
	}
	window.Defaults(h.now())
	return window, nil
}

// GetSummary handles fetching the running portfolio totals.
// @Summary     Get portfolio summary
// @Description Get total invested, total rewards, expected ROI and active investment count
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.PortfolioSummary "Portfolio summary"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio/summary [get]
func (h *PortfolioHandler) GetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.analyticsService.GetSummary(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// GetHistory handles listing portfolio snapshots.
// @Summary     Get portfolio history
// @Description Get paginated point-in-time portfolio valuations, newest first
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Param       from      query string false "Start day YYYY-MM-DD (default 30 days before to)"
// @Param       to        query string false "End day YYYY-MM-DD, inclusive (default today)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.PortfolioHistory] "Paginated snapshots"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio/history [get]
func (h *PortfolioHandler) GetHistory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	window, err := h.bindWindow(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	page.Defaults()

	result, err := h.analyticsService.GetHistory(userID, window, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCandles handles listing daily OHLC candles.
// @Summary     Get portfolio candles
// @Description Get daily open/high/low/close portfolio value candles for a date range
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Param       from query string false "Start day YYYY-MM-DD (default 30 days before to)"
// @Param       to   query string false "End day YYYY-MM-DD, inclusive (default today)"
// @Success     200 {array}  models.PortfolioDailyCandle "Daily candles"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio/candles [get]
func (h *PortfolioHandler) GetCandles(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	window, err := h.bindWindow(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	candles, err := h.analyticsService.GetCandles(userID, window)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"from": window.From, "to": window.To, "candles": candles})
}

// GetBreakdown handles the per-holding valuation.
// @Summary     Get portfolio breakdown
// @Description Get tokens held, amount invested and current value per property and token tier
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array}  services.HoldingBreakdown "Holdings"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio/breakdown [get]
func (h *PortfolioHandler) GetBreakdown(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	holdings, err := h.analyticsService.GetBreakdown(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"holdings": holdings})
}
