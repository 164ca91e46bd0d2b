package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"estatetoken/internal/models"
	"estatetoken/internal/pagination"
	"estatetoken/internal/services"
)

func setupPortfolioRouter(handler *PortfolioHandler) *gin.Engine {
	handler.now = func() time.Time { return time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC) }
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.GET("/portfolio/summary", handler.GetSummary)
	auth.GET("/portfolio/history", handler.GetHistory)
	auth.GET("/portfolio/candles", handler.GetCandles)
	auth.GET("/portfolio/breakdown", handler.GetBreakdown)
	return r
}

func TestPortfolioHandler_GetSummary(t *testing.T) {
	t.Run("returns 200 with totals", func(t *testing.T) {
		svc := &mockAnalyticsService{
			getSummaryFn: func(userID string) (*models.PortfolioSummary, error) {
				return &models.PortfolioSummary{
					UserID:            userID,
					TotalInvestedUSDT: decimal.NewFromInt(200),
					ActiveInvestments: 1,
				}, nil
			},
		}
		r := setupPortfolioRouter(NewPortfolioHandler(svc))

		rec := doRequest(r, "GET", "/portfolio/summary", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		summary := parseJSON(t, rec)["summary"].(map[string]interface{})
		if summary["total_invested_usdt"] != "200" {
			t.Errorf("expected 200 invested, got %v", summary["total_invested_usdt"])
		}
	})

	t.Run("returns 500 on service error", func(t *testing.T) {
		svc := &mockAnalyticsService{
			getSummaryFn: func(string) (*models.PortfolioSummary, error) {
				return nil, fmt.Errorf("connection reset")
			},
		}
		r := setupPortfolioRouter(NewPortfolioHandler(svc))

		rec := doRequest(r, "GET", "/portfolio/summary", "")

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INTERNAL_ERROR")
	})
}

func TestPortfolioHandler_GetHistory(t *testing.T) {
	t.Run("defaults the window to the last 30 days", func(t *testing.T) {
		var gotWindow pagination.DateRange
		svc := &mockAnalyticsService{
			getHistoryFn: func(_ string, window pagination.DateRange, page pagination.PageRequest) (*pagination.PageResponse[models.PortfolioHistory], error) {
				gotWindow = window
				resp := pagination.NewPageResponse([]models.PortfolioHistory{}, page.Page, page.PageSize, 0)
				return &resp, nil
			},
		}
		r := setupPortfolioRouter(NewPortfolioHandler(svc))

		rec := doRequest(r, "GET", "/portfolio/history", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotWindow.From != "2026-09-15" || gotWindow.To != "2026-10-15" {
			t.Errorf("unexpected default window %+v", gotWindow)
		}
	})

	t.Run("returns 400 on malformed date", func(t *testing.T) {
		r := setupPortfolioRouter(NewPortfolioHandler(&mockAnalyticsService{}))

		rec := doRequest(r, "GET", "/portfolio/history?from=15-10-2026", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestPortfolioHandler_GetCandles(t *testing.T) {
	svc := &mockAnalyticsService{
		getCandlesFn: func(_ string, window pagination.DateRange) ([]models.PortfolioDailyCandle, error) {
			if window.From != "2026-10-01" || window.To != "2026-10-14" {
				t.Errorf("unexpected window %+v", window)
			}
			return []models.PortfolioDailyCandle{{
				BucketDay:     "2026-10-14",
				UserID:        testUserID,
				OpenValue:     decimal.NewFromInt(100),
				HighValue:     decimal.NewFromInt(150),
				LowValue:      decimal.NewFromInt(90),
				CloseValue:    decimal.NewFromInt(120),
				SnapshotCount: 4,
			}}, nil
		},
	}
	r := setupPortfolioRouter(NewPortfolioHandler(svc))

	rec := doRequest(r, "GET", "/portfolio/candles?from=2026-10-01&to=2026-10-14", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	candles := parseJSON(t, rec)["candles"].([]interface{})
	if len(candles) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(candles))
	}
	candle := candles[0].(map[string]interface{})
	if candle["date"] != "2026-10-14" {
		t.Errorf("expected date 2026-10-14, got %v", candle["date"])
	}
}

func TestPortfolioHandler_GetBreakdown(t *testing.T) {
	svc := &mockAnalyticsService{
		getBreakdownFn: func(string) ([]services.HoldingBreakdown, error) {
			return []services.HoldingBreakdown{
				{PropertyID: "p1", PropertyName: "Skyline", TokenSymbol: "SKY-A", Investments: 2, Tokens: decimal.NewFromInt(30)},
			}, nil
		},
	}
	r := setupPortfolioRouter(NewPortfolioHandler(svc))

	rec := doRequest(r, "GET", "/portfolio/breakdown", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	holdings := parseJSON(t, rec)["holdings"].([]interface{})
	if len(holdings) != 1 || holdings[0].(map[string]interface{})["token_symbol"] != "SKY-A" {
		t.Errorf("unexpected holdings %v", holdings)
	}
}
