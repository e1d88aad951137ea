package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Market identifies which trading venue a stock belongs to.
type Market string

const (
	MarketTW Market = "TW"
	MarketUS Market = "US"
)

// Exchange suffixes the inventory API uses to mark Taiwan listings.
const (
	SuffixTPE = ":TPE"
	SuffixTWO = ":TWO"
)

// Stock is one tracked instrument as returned by the inventory API.
type Stock struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Alias string `json:"alias"`
}

// Market classifies the stock by its name suffix: :TPE and :TWO are Taiwan
// listings, everything else trades in the US.
func (s Stock) Market() Market {
	if strings.HasSuffix(s.Name, SuffixTPE) || strings.HasSuffix(s.Name, SuffixTWO) {
		return MarketTW
	}
	return MarketUS
}

// Ticker returns the bare symbol with any exchange suffix stripped, suitable
// as a quote-provider lookup key.
func (s Stock) Ticker() string {
	if i := strings.Index(s.Name, ":"); i >= 0 {
		return s.Name[:i]
	}
	return s.Name
}

// Quote is the latest close price known for one stock.
type Quote struct {
	Close decimal.Decimal `json:"close"`
	Date  time.Time       `json:"date"`
}

// RefreshResult records the outcome for one stock inside one refresh cycle.
// Results live only for the cycle that produced them.
type RefreshResult struct {
	StockID         string          `json:"stock_id"`
	Ticker          string          `json:"ticker"`
	Alias           string          `json:"alias"`
	Market          Market          `json:"market"`
	Date            time.Time       `json:"date"`
	Close           decimal.Decimal `json:"close"`
	UpdateSucceeded bool            `json:"update_succeeded"`
}
