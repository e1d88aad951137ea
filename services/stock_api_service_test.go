package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_price_updater/models"
)

func TestListStocksTaiwanFirst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stocks/minimal", r.URL.Path)
		w.Write([]byte(`[
			{"_id":"a1","name":"AAPL:NASDAQ","alias":"Apple"},
			{"_id":"b2","name":"2330:TPE","alias":"TSMC"},
			{"_id":"c3","name":"TSLA:NASDAQ","alias":"Tesla"},
			{"_id":"d4","name":"6488:TWO","alias":"GlobalWafers"}
		]`))
	}))
	defer server.Close()

	svc := NewStockAPIService(server.URL, 5*time.Second)
	stocks, err := svc.ListStocks(context.Background())
	require.NoError(t, err)

	require.Len(t, stocks, 4)
	assert.Equal(t, "2330:TPE", stocks[0].Name)
	assert.Equal(t, "6488:TWO", stocks[1].Name)
	assert.Equal(t, "AAPL:NASDAQ", stocks[2].Name)
	assert.Equal(t, "TSLA:NASDAQ", stocks[3].Name)
	assert.Equal(t, models.MarketTW, stocks[0].Market())
	assert.Equal(t, models.MarketUS, stocks[2].Market())
}

func TestListStocksHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := NewStockAPIService(server.URL, 5*time.Second)
	_, err := svc.ListStocks(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestUpdateStockPrice(t *testing.T) {
	var gotMethod, gotPath, gotPrice string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotPrice = r.URL.Query().Get("newPrice")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewStockAPIService(server.URL+"/", 5*time.Second)
	err := svc.UpdateStockPrice(context.Background(), "b2", decimal.NewFromFloat(961.5))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/api/stocks/id/b2/price", gotPath)
	assert.Equal(t, "961.5", gotPrice)
}

func TestUpdateStockPriceHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such stock", http.StatusNotFound)
	}))
	defer server.Close()

	svc := NewStockAPIService(server.URL, 5*time.Second)
	err := svc.UpdateStockPrice(context.Background(), "missing", decimal.NewFromInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
