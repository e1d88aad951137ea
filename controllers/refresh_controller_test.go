package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_price_updater/market"
	"stock_price_updater/models"
	"stock_price_updater/services"
)

type stubDirectory struct {
	stocks []models.Stock
}

func (s *stubDirectory) ListStocks(ctx context.Context) ([]models.Stock, error) {
	return s.stocks, nil
}

func (s *stubDirectory) UpdateStockPrice(ctx context.Context, stockID string, price decimal.Decimal) error {
	return nil
}

type stubQuotes struct{}

func (s *stubQuotes) FetchSeries(ctx context.Context, dataset services.Dataset, dataID string, startDate, endDate time.Time) ([]services.SeriesPoint, error) {
	date, _ := time.Parse("2006-01-02", "2024-07-09")
	return []services.SeriesPoint{{Date: date, Close: decimal.NewFromInt(960)}}, nil
}

func newTestController(t *testing.T, stocks []models.Stock) (*gin.Engine, *RefreshController) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cal, err := market.NewCalendar()
	require.NoError(t, err)
	refresh := services.NewRefreshService(&stubDirectory{stocks: stocks}, &stubQuotes{}, cal, 2)
	rc := NewRefreshController(refresh, cal, nil)

	router := gin.New()
	router.GET("/health", rc.HealthCheck)
	router.GET("/api/v1/market/status", rc.MarketStatus)
	router.POST("/api/v1/refresh/trigger", rc.TriggerRefresh)
	return router, rc
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestController(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"running"}`, w.Body.String())
}

func TestMarketStatus(t *testing.T) {
	router, _ := newTestController(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/market/status", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Now             string                    `json:"now"`
		DaylightSaving  bool                      `json:"daylight_saving"`
		Markets         map[string]map[string]any `json:"markets"`
		LastResultCount int                       `json:"last_result_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	require.Contains(t, body.Markets, "TW")
	require.Contains(t, body.Markets, "US")
	for _, status := range body.Markets {
		assert.Contains(t, status, "open")
		assert.Contains(t, status, "window_start")
		assert.Contains(t, status, "window_end")
		assert.Contains(t, status, "trading_date")
	}
	assert.Equal(t, 0, body.LastResultCount)
}

func TestTriggerRefreshEmptyInventory(t *testing.T) {
	router, _ := newTestController(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/refresh/trigger", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Message string                 `json:"message"`
		Count   int                    `json:"count"`
		Data    []models.RefreshResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Count)
	assert.NotNil(t, body.Data, "an empty cycle still reports an empty list")
}

func TestTriggerRefreshReturnsResults(t *testing.T) {
	router, _ := newTestController(t, []models.Stock{
		{ID: "1", Name: "2330:TPE", Alias: "TSMC"},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/refresh/trigger", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count int                    `json:"count"`
		Data  []models.RefreshResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "2330", body.Data[0].Ticker)
	assert.True(t, body.Data[0].UpdateSucceeded)
}
