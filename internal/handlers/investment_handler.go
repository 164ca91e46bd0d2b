package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"estatetoken/internal/pagination"
	"estatetoken/internal/services"
)

// InvestmentHandler handles token purchases and investment lookups.
type InvestmentHandler struct {
	settlementService services.SettlementServicer
	analyticsService  services.AnalyticsServicer
	auditService      services.AuditServicer
}

// NewInvestmentHandler creates a new InvestmentHandler.
func NewInvestmentHandler(settlementService services.SettlementServicer, analyticsService services.AnalyticsServicer, auditService services.AuditServicer) *InvestmentHandler {
	return &InvestmentHandler{
		settlementService: settlementService,
		analyticsService:  analyticsService,
		auditService:      auditService,
	}
}

// InvestRequest represents the request payload for buying tokens. Exactly one
// of property_token or property is expected; property selects the legacy
// per-property inventory.
type InvestRequest struct {
	PropertyToken string          `json:"property_token" binding:"max=64"`
	Property      string          `json:"property" binding:"max=64"`
	Tokens        decimal.Decimal `json:"tokens" swaggertype:"string" example:"20"`
}

// InvestByAmountRequest represents the request payload for a legacy purchase
// sized by USDT amount.
type InvestByAmountRequest struct {
	Property   string          `json:"property" binding:"required,max=64"`
	AmountUSDT decimal.Decimal `json:"amount_usdt" swaggertype:"string" example:"250"`
}

// Invest handles a token purchase.
// @Summary     Invest in a property token
// @Description Buy tokens of a property token tier (or a legacy property) with the wallet balance
// @Tags        investments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body InvestRequest true "Purchase details"
// @Success     201 {object} models.Investment "Investment settled"
// @Failure     400 {object} ErrorResponse "Invalid input or quantity"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     402 {object} ErrorResponse "Insufficient funds"
// @Failure     404 {object} ErrorResponse "Property, token or wallet not found"
// @Failure     409 {object} ErrorResponse "Inactive offering or insufficient inventory"
// @Failure     503 {object} ErrorResponse "Lock timeout, retry"
// @Router      /investments [post]
func (h *InvestmentHandler) Invest(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req InvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	ref := services.InventoryRef{Token: req.PropertyToken, Property: req.Property}
	investment, err := h.settlementService.Invest(c.Request.Context(), userID, ref, req.Tokens)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), auditEntry(c, userID, services.AuditActionInvest, "investment", investment.ID,
		map[string]interface{}{"display_code": investment.DisplayCode, "tokens": investment.TokensPurchased.String(), "amount_usdt": investment.AmountUSDT.String()}))

	c.JSON(http.StatusCreated, gin.H{"investment": investment})
}

// InvestByAmount handles a legacy purchase sized by USDT amount.
// @Summary     Invest an amount in a property
// @Description Convert a USDT amount into tokens at the property's current price and settle the purchase
// @Tags        investments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body InvestByAmountRequest true "Purchase details"
// @Success     201 {object} models.Investment "Investment settled"
// @Failure     400 {object} ErrorResponse "Invalid input or quantity"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     402 {object} ErrorResponse "Insufficient funds"
// @Failure     404 {object} ErrorResponse "Property or wallet not found"
// @Failure     409 {object} ErrorResponse "Inactive property or insufficient inventory"
// @Failure     503 {object} ErrorResponse "Lock timeout, retry"
// @Router      /investments/by-amount [post]
func (h *InvestmentHandler) InvestByAmount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req InvestByAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	investment, err := h.settlementService.InvestByAmount(c.Request.Context(), userID, req.Property, req.AmountUSDT)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), auditEntry(c, userID, services.AuditActionInvest, "investment", investment.ID,
		map[string]interface{}{"display_code": investment.DisplayCode, "requested_usdt": req.AmountUSDT.String(), "amount_usdt": investment.AmountUSDT.String()}))

	c.JSON(http.StatusCreated, gin.H{"investment": investment})
}

// ListInvestments handles listing the user's investments.
// @Summary     List investments
// @Description Get a paginated list of the authenticated user's investments, newest first
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Investment] "Paginated investments"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /investments [get]
func (h *InvestmentHandler) ListInvestments(c *gin.Context) {
	userID, err := getUserID(c)
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

	result, err := h.analyticsService.ListInvestments(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetInvestment handles fetching one investment by UUID or display code.
// @Summary     Get investment
// @Description Get one of the authenticated user's investments by ID or INV- display code
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       ref path string true "Investment ID or display code"
// @Success     200 {object} models.Investment "Investment"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Investment not found"
// @Router      /investments/{ref} [get]
func (h *InvestmentHandler) GetInvestment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ref, err := pathRef(c, "ref")
	if err != nil {
		respondWithError(c, err)
		return
	}

	investment, err := h.analyticsService.GetInvestment(userID, ref)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"investment": investment})
}
