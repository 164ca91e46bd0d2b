package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "estatetoken/internal/errors"
	"estatetoken/internal/models"
	"estatetoken/internal/pagination"
	"estatetoken/internal/services"
)

// PipelineHandler serves the API-key protected endpoints used by schedulers
// and back-office tooling.
type PipelineHandler struct {
	candleService    services.CandleServicer
	portfolioService services.PortfolioServicer
	rewardService    services.RewardServicer
	inventoryService services.InventoryServicer
	analyticsService services.AnalyticsServicer
	auditService     services.AuditServicer
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(
	candleService services.CandleServicer,
	portfolioService services.PortfolioServicer,
	rewardService services.RewardServicer,
	inventoryService services.InventoryServicer,
	analyticsService services.AnalyticsServicer,
	auditService services.AuditServicer,
) *PipelineHandler {
	return &PipelineHandler{
		candleService:    candleService,
		portfolioService: portfolioService,
		rewardService:    rewardService,
		inventoryService: inventoryService,
		analyticsService: analyticsService,
		auditService:     auditService,
	}
}

// AggregateCandlesRequest optionally overrides the default aggregation window.
type AggregateCandlesRequest struct {
	From string `json:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" binding:"omitempty,datetime=2006-01-02"`
}

// RecordSnapshotsRequest selects a single user; an empty body snapshots every investor.
type RecordSnapshotsRequest struct {
	User       string            `json:"user" binding:"max=64"`
	ChangeType models.ChangeType `json:"change_type" binding:"omitempty,change_type"`
}

// DistributeRewardRequest represents the request payload for a reward payout.
type DistributeRewardRequest struct {
	Investment string          `json:"investment" binding:"required,max=64"`
	AmountUSDT decimal.Decimal `json:"amount_usdt" binding:"decimal_positive" swaggertype:"string" example:"12.50"`
	Note       string          `json:"note" binding:"max=500"`
}

// UpdateTokenPriceRequest represents the request payload for repricing a tier.
type UpdateTokenPriceRequest struct {
	PricePerTokenUSDT decimal.Decimal `json:"price_per_token_usdt" binding:"decimal_positive" swaggertype:"string" example:"11.50"`
}

// ResizeTokenSupplyRequest represents the request payload for resizing a tier.
type ResizeTokenSupplyRequest struct {
	TotalTokens decimal.Decimal `json:"total_tokens" binding:"decimal_nonnegative" swaggertype:"string" example:"5000"`
}

// SetTokenStatusRequest represents the request payload for (de)activating a tier.
type SetTokenStatusRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// CreatePropertyRequest represents the request payload for a new property.
type CreatePropertyRequest struct {
	OrganizationID    string          `json:"organization_id" binding:"required,uuid"`
	Name              string          `json:"name" binding:"required,min=1,max=200"`
	PricePerTokenUSDT decimal.Decimal `json:"price_per_token_usdt" binding:"decimal_positive" swaggertype:"string" example:"25"`
	TotalTokens       decimal.Decimal `json:"total_tokens" binding:"decimal_positive" swaggertype:"string" example:"10000"`
	ExpectedROI       decimal.Decimal `json:"expected_roi" binding:"decimal_nonnegative" swaggertype:"string" example:"8"`
}

// CreatePropertyTokenRequest represents the request payload for a new token tier.
type CreatePropertyTokenRequest struct {
	Symbol            string          `json:"symbol" binding:"required,token_symbol"`
	Name              string          `json:"name" binding:"max=200"`
	PricePerTokenUSDT decimal.Decimal `json:"price_per_token_usdt" binding:"decimal_positive" swaggertype:"string" example:"10"`
	TotalTokens       decimal.Decimal `json:"total_tokens" binding:"decimal_positive" swaggertype:"string" example:"1000"`
	ExpectedROI       decimal.Decimal `json:"expected_roi" binding:"decimal_nonnegative" swaggertype:"string" example:"12"`
}

// bindOptionalJSON binds a body that may be empty.
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		return bindError(err)
	}
	return nil
}

// AggregateCandles handles a candle aggregation run.
// @Summary     Aggregate portfolio candles
// @Description Recompute daily OHLC candles from snapshots. Defaults to yesterday through tomorrow (UTC).
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string                  true  "Pipeline API key"
// @Param       request   body     AggregateCandlesRequest false "Optional window, inclusive days"
// @Success     200       {object} services.AggregationResult "Aggregation result"
// @Failure     400       {object} ErrorResponse "Invalid input"
// @Failure     401       {object} ErrorResponse "Invalid API key"
// @Failure     503       {object} ErrorResponse "Pipeline not configured"
// @Router      /pipeline/candles/aggregate [post]
func (h *PipelineHandler) AggregateCandles(c *gin.Context) {
	var req AggregateCandlesRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	var (
		result *services.AggregationResult
		err    error
	)
	if req.From == "" && req.To == "" {
		result, err = h.candleService.Aggregate(c.Request.Context())
	} else {
		window := pagination.DateRange{From: req.From, To: req.To}
		window.Defaults(time.Now())
		from, to, boundsErr := window.Bounds()
		if boundsErr != nil || !from.Before(to) {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "from must not be after to"))
			return
		}
		result, err = h.candleService.AggregateWindow(c.Request.Context(), from, to)
	}
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RecordSnapshots handles manual portfolio snapshots.
// @Summary     Record portfolio snapshots
// @Description Snapshot one user, or every investor with a holding when no user is given
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string                 true  "Pipeline API key"
// @Param       request   body     RecordSnapshotsRequest false "Snapshot parameters"
// @Success     200       {object} map[string]int "Snapshots recorded count"
// @Failure     400       {object} ErrorResponse "Invalid input"
// @Failure     401       {object} ErrorResponse "Invalid API key"
// @Failure     404       {object} ErrorResponse "User not found"
// @Router      /pipeline/snapshots [post]
func (h *PipelineHandler) RecordSnapshots(c *gin.Context) {
	var req RecordSnapshotsRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	if req.User != "" {
		snapshot, err := h.portfolioService.SnapshotUser(c.Request.Context(), req.User, req.ChangeType)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"snapshots_recorded": 1, "snapshot": snapshot})
		return
	}

	count, err := h.portfolioService.SnapshotAllInvestors(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshots_recorded": count})
}

// DistributeReward handles a reward payout to an investment's owner.
// @Summary     Distribute reward
// @Description Credit a reward for an investment to its owner's wallet
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string                  true "Pipeline API key"
// @Param       request   body     DistributeRewardRequest true "Reward details"
// @Success     201       {object} models.Reward "Reward distributed"
// @Failure     400       {object} ErrorResponse "Invalid input"
// @Failure     401       {object} ErrorResponse "Invalid API key"
// @Failure     404       {object} ErrorResponse "Investment or wallet not found"
// @Failure     409       {object} ErrorResponse "Investment is not held"
// @Router      /pipeline/rewards [post]
func (h *PipelineHandler) DistributeReward(c *gin.Context) {
	var req DistributeRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	reward, err := h.rewardService.Distribute(c.Request.Context(), req.Investment, req.AmountUSDT, req.Note)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), auditEntry(c, pipelineActor, services.AuditActionDistribute, "reward", reward.ID,
		map[string]interface{}{"user_id": reward.UserID, "investment_id": reward.InvestmentID, "amount_usdt": reward.AmountUSDT.String()}))

	c.JSON(http.StatusCreated, gin.H{"reward": reward})
}

// UpdateTokenPrice handles repricing a token tier.
// @Summary     Update token price
// @Description Set a token tier's price per token; holders are revalued
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string                  true "Pipeline API key"
// @Param       ref       path     string                  true "Property token ID or symbol"
// @Param       request   body     UpdateTokenPriceRequest true "New price"
// @Success     200       {object} models.PropertyToken "Updated tier"
// @Failure     400       {object} ErrorResponse "Invalid input"
// @Failure     401       {object} ErrorResponse "Invalid API key"
// @Failure     404       {object} ErrorResponse "Property token not found"
// @Router      /pipeline/tokens/{ref}/price [put]
func (h *PipelineHandler) UpdateTokenPrice(c *gin.Context) {
	ref, err := pathRef(c, "ref")
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req UpdateTokenPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	token, err := h.inventoryService.UpdateTokenPrice(c.Request.Context(), ref, req.PricePerTokenUSDT)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), auditEntry(c, pipelineActor, services.AuditActionRepriceToken, "property_token", token.ID,
		map[string]interface{}{"price_per_token_usdt": token.PricePerTokenUSDT.String()}))

	c.JSON(http.StatusOK, gin.H{"property_token": token})
}

// ResizeTokenSupply handles resizing a token tier.
// @Summary     Resize token supply
// @Description Change a tier's total supply; available becomes max(total - sold, 0)
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string                   true "Pipeline API key"
// @Param       ref       path     string                   true "Property token ID or symbol"
// @Param       request   body     ResizeTokenSupplyRequest true "New total supply"
// @Success     200       {object} models.PropertyToken "Updated tier"
// @Failure     400       {object} ErrorResponse "Invalid input"
// @Failure     401       {object} ErrorResponse "Invalid API key"
// @Failure     404       {object} ErrorResponse "Property token not found"
// @Router      /pipeline/tokens/{ref}/supply [put]
func (h *PipelineHandler) ResizeTokenSupply(c *gin.Context) {
	ref, err := pathRef(c, "ref")
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req ResizeTokenSupplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	token, err := h.inventoryService.ResizeTokenTier(c.Request.Context(), ref, req.TotalTokens)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), auditEntry(c, pipelineActor, services.AuditActionResizeToken, "property_token", token.ID,
		map[string]interface{}{"total_tokens": token.TotalTokens.String(), "available_tokens": token.AvailableTokens.String()}))

	c.JSON(http.StatusOK, gin.H{"property_token": token})
}

// SetTokenStatus handles activating or deactivating a token tier.
// @Summary     Set token status
// @Description Open or close a token tier for new investments
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string                true "Pipeline API key"
// @Param       ref       path     string                true "Property token ID or symbol"
// @Param       request   body     SetTokenStatusRequest true "Status"
// @Success     200       {object} models.PropertyToken "Updated tier"
// @Failure     400       {object} ErrorResponse "Invalid input"
// @Failure     401       {object} ErrorResponse "Invalid API key"
// @Failure     404       {object} ErrorResponse "Property token not found"
// @Router      /pipeline/tokens/{ref}/status [put]
func (h *PipelineHandler) SetTokenStatus(c *gin.Context) {
	ref, err := pathRef(c, "ref")
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req SetTokenStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	token, err := h.inventoryService.SetTokenActive(c.Request.Context(), ref, *req.Active)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), auditEntry(c, pipelineActor, services.AuditActionToggleToken, "property_token", token.ID,
		map[string]interface{}{"is_active": token.IsActive}))

	c.JSON(http.StatusOK, gin.H{"property_token": token})
}

// CreateProperty handles listing a new property.
// @Summary     Create property
// @Description Create a property with its own legacy token inventory
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string                true "Pipeline API key"
// @Param       request   body     CreatePropertyRequest true "Property details"
// @Success     201       {object} models.Property "Property created"
// @Failure     400       {object} ErrorResponse "Invalid input"
// @Failure     401       {object} ErrorResponse "Invalid API key"
// @Router      /pipeline/properties [post]
func (h *PipelineHandler) CreateProperty(c *gin.Context) {
	var req CreatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	property, err := h.inventoryService.CreateProperty(c.Request.Context(), services.CreatePropertyInput{
		OrganizationID:    req.OrganizationID,
		Name:              req.Name,
		PricePerTokenUSDT: req.PricePerTokenUSDT,
		TotalTokens:       req.TotalTokens,
		ExpectedROI:       req.ExpectedROI,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), auditEntry(c, pipelineActor, services.AuditActionCreateProperty, "property", property.ID,
		map[string]interface{}{"display_code": property.DisplayCode, "name": property.Name}))

	c.JSON(http.StatusCreated, gin.H{"property": property})
}

// CreatePropertyToken handles adding a token tier to a property.
// @Summary     Create property token
// @Description Add a token tier to a property; the symbol becomes the tier's display code
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string                     true "Pipeline API key"
// @Param       ref       path     string                     true "Property ID or display code"
// @Param       request   body     CreatePropertyTokenRequest true "Tier details"
// @Success     201       {object} models.PropertyToken "Tier created"
// @Failure     400       {object} ErrorResponse "Invalid input"
// @Failure     401       {object} ErrorResponse "Invalid API key"
// @Failure     404       {object} ErrorResponse "Property not found"
// @Failure     409       {object} ErrorResponse "Symbol already in use"
// @Router      /pipeline/properties/{ref}/tokens [post]
func (h *PipelineHandler) CreatePropertyToken(c *gin.Context) {
	ref, err := pathRef(c, "ref")
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req CreatePropertyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	token, err := h.inventoryService.CreatePropertyToken(c.Request.Context(), ref, services.CreatePropertyTokenInput{
		Symbol:            req.Symbol,
		Name:              req.Name,
		PricePerTokenUSDT: req.PricePerTokenUSDT,
		TotalTokens:       req.TotalTokens,
		ExpectedROI:       req.ExpectedROI,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), auditEntry(c, pipelineActor, services.AuditActionCreateToken, "property_token", token.ID,
		map[string]interface{}{"display_code": token.DisplayCode, "property_id": token.PropertyID}))

	c.JSON(http.StatusCreated, gin.H{"property_token": token})
}

// GetPlatformTotals handles the per-property investment totals report.
// @Summary     Platform totals
// @Description Investors, investments, tokens sold and USDT invested per property
// @Tags        pipeline
// @Produce     json
// @Param       X-API-Key header   string true "Pipeline API key"
// @Success     200       {array}  services.PropertyTotals "Totals per property"
// @Failure     401       {object} ErrorResponse "Invalid API key"
// @Router      /pipeline/analytics/properties [get]
func (h *PipelineHandler) GetPlatformTotals(c *gin.Context) {
	totals, err := h.analyticsService.GetPlatformTotals()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"properties": totals})
}
