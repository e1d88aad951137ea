package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stock_price_updater/models"

	"github.com/shopspring/decimal"
)

// dateLayout is the wire format for calendar dates across both backends.
const dateLayout = "2006-01-02"

// StockAPIService talks to the stock inventory backend: it lists the tracked
// stocks and pushes refreshed prices back to them.
type StockAPIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewStockAPIService creates a client for the backend at baseURL with a
// bounded request timeout.
func NewStockAPIService(baseURL string, timeout time.Duration) *StockAPIService {
	return &StockAPIService{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListStocks fetches the tracked stock list. Taiwan listings are returned
// before US listings, preserving the backend's order within each group.
func (s *StockAPIService) ListStocks(ctx context.Context) ([]models.Stock, error) {
	endpoint := s.baseURL + "/api/stocks/minimal"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build stock list request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch stock list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("stock list: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var stocks []models.Stock
	if err := json.NewDecoder(resp.Body).Decode(&stocks); err != nil {
		return nil, fmt.Errorf("decode stock list: %w", err)
	}

	var tw, us []models.Stock
	for _, stock := range stocks {
		if stock.Market() == models.MarketTW {
			tw = append(tw, stock)
		} else {
			us = append(us, stock)
		}
	}
	log.Printf("Stock list: %d TW, %d US", len(tw), len(us))

	return append(tw, us...), nil
}

// UpdateStockPrice pushes a refreshed price for one stock, keyed by its
// inventory identifier.
func (s *StockAPIService) UpdateStockPrice(ctx context.Context, stockID string, price decimal.Decimal) error {
	endpoint := fmt.Sprintf("%s/api/stocks/id/%s/price?newPrice=%s",
		s.baseURL, url.PathEscape(stockID), url.QueryEscape(price.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build price update request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("update price for %s: %w", stockID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("update price for %s: unexpected status %d: %s", stockID, resp.StatusCode, string(body))
	}
	return nil
}
