package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"
	"text/tabwriter"
	"time"

	"stock_price_updater/market"
	"stock_price_updater/models"

	"github.com/shopspring/decimal"
)

// trailingRangeDays is how many calendar days of daily data to request so
// the most recent trading day is always covered across weekends.
const trailingRangeDays = 5

// DefaultFetchConcurrency caps the quote fan-out. FinMind rate-limits per
// token, so the pool stays small.
const DefaultFetchConcurrency = 3

// StockDirectory lists the tracked stocks and receives refreshed prices.
type StockDirectory interface {
	ListStocks(ctx context.Context) ([]models.Stock, error)
	UpdateStockPrice(ctx context.Context, stockID string, price decimal.Decimal) error
}

// QuoteProvider fetches a price series at the requested granularity.
type QuoteProvider interface {
	FetchSeries(ctx context.Context, dataset Dataset, dataID string, startDate, endDate time.Time) ([]SeriesPoint, error)
}

// ResultPublisher receives the result batch of a finished cycle.
type ResultPublisher interface {
	PublishResults(results []models.RefreshResult)
}

// RefreshService runs refresh cycles: discover the tracked stocks, gate them
// by market hours, fetch one quote each, push it to the backend, and report.
// Per-stock failures are isolated; two cycles may safely overlap because a
// cycle owns all of its own state.
type RefreshService struct {
	directory   StockDirectory
	quotes      QuoteProvider
	calendar    *market.Calendar
	publisher   ResultPublisher
	concurrency int
	now         func() time.Time

	mu          sync.Mutex
	lastRun     time.Time
	lastResults int
}

// NewRefreshService creates the orchestrator. concurrency <= 0 falls back to
// DefaultFetchConcurrency.
func NewRefreshService(directory StockDirectory, quotes QuoteProvider, calendar *market.Calendar, concurrency int) *RefreshService {
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}
	return &RefreshService{
		directory:   directory,
		quotes:      quotes,
		calendar:    calendar,
		concurrency: concurrency,
		now:         calendar.Now,
	}
}

// SetPublisher attaches an optional sink for finished-cycle results.
func (s *RefreshService) SetPublisher(p ResultPublisher) { s.publisher = p }

// LastRun reports when the previous cycle started and how many results it
// produced.
func (s *RefreshService) LastRun() (time.Time, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastResults
}

// RunCycle executes one refresh pass and returns the results in stock-list
// order. With ignoreMarketHours every stock is eligible regardless of
// session state; otherwise only stocks whose market is currently open are
// processed. A failing stock contributes nothing but never aborts the rest;
// ctx cancellation stops the fan-out early.
func (s *RefreshService) RunCycle(ctx context.Context, ignoreMarketHours bool) []models.RefreshResult {
	started := s.now()
	log.Printf("Starting price refresh cycle at %s", started.Format(time.RFC3339))
	if ignoreMarketHours {
		log.Println("Manual trigger: market-hours eligibility disabled for this cycle")
	}

	stocks, err := s.directory.ListStocks(ctx)
	if err != nil {
		log.Printf("Refresh cycle aborted: stock list unavailable: %v", err)
		return nil
	}
	if len(stocks) == 0 {
		log.Println("Refresh cycle aborted: no tracked stocks")
		return nil
	}

	eligible := make([]models.Stock, 0, len(stocks))
	for _, stock := range stocks {
		if ignoreMarketHours || s.calendar.IsOpen(stock.Market(), s.now()) {
			eligible = append(eligible, stock)
		}
	}
	if len(eligible) == 0 {
		log.Printf("No eligible stocks: all markets closed (%d tracked)", len(stocks))
		return nil
	}

	// Indexed slots keep the results in stock-list order regardless of
	// which worker finishes first.
	slots := make([]*models.RefreshResult, len(eligible))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i, stock := range eligible {
		if ctx.Err() != nil {
			log.Printf("Refresh cycle cancelled: %v", ctx.Err())
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, stock models.Stock) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := s.processStock(ctx, stock)
			if err != nil {
				log.Printf("Skipping %s (%s): %v", stock.Ticker(), stock.Alias, err)
				return
			}
			slots[i] = result
		}(i, stock)
	}
	wg.Wait()

	results := make([]models.RefreshResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}

	s.mu.Lock()
	s.lastRun = started
	s.lastResults = len(results)
	s.mu.Unlock()

	s.logSummary(results)
	if s.publisher != nil {
		s.publisher.PublishResults(results)
	}
	log.Printf("Refresh cycle finished at %s (%d results)", s.now().Format(time.RFC3339), len(results))
	return results
}

// processStock fetches the market-appropriate quote for one stock and pushes
// it to the backend. The returned error names the reason the stock is absent
// from the cycle report; a failed push is not an error, only a result with
// UpdateSucceeded false.
func (s *RefreshService) processStock(ctx context.Context, stock models.Stock) (*models.RefreshResult, error) {
	quote, err := s.fetchQuote(ctx, stock)
	if err != nil {
		return nil, err
	}

	updateErr := s.directory.UpdateStockPrice(ctx, stock.ID, quote.Close)
	if updateErr != nil {
		log.Printf("Price update failed for %s: %v", stock.Ticker(), updateErr)
	} else {
		log.Printf("Updated %s (%s) to %s", stock.Ticker(), stock.Alias, quote.Close)
	}

	return &models.RefreshResult{
		StockID:         stock.ID,
		Ticker:          stock.Ticker(),
		Alias:           stock.Alias,
		Market:          stock.Market(),
		Date:            quote.Date,
		Close:           quote.Close,
		UpdateSucceeded: updateErr == nil,
	}, nil
}

// fetchQuote picks the provider strategy for the stock's market: Taiwan uses
// the daily series over a short trailing range ending today; the US uses
// minute data for the resolved trading date while the session is open, and
// the daily series ending at that date otherwise.
func (s *RefreshService) fetchQuote(ctx context.Context, stock models.Stock) (*models.Quote, error) {
	now := s.now()

	var (
		dataset    Dataset
		start, end time.Time
	)
	switch stock.Market() {
	case models.MarketTW:
		dataset = DatasetTaiwanDaily
		end = now
		start = now.AddDate(0, 0, -trailingRangeDays)
	default:
		tradeDate := s.calendar.ResolveTradingDate(models.MarketUS, now)
		if s.calendar.IsOpen(models.MarketUS, now) {
			dataset = DatasetUSMinute
			start, end = tradeDate, tradeDate
		} else {
			dataset = DatasetUSDaily
			end = tradeDate
			start = tradeDate.AddDate(0, 0, -trailingRangeDays)
		}
	}

	series, err := s.quotes.FetchSeries(ctx, dataset, stock.Ticker(), start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch %s series: %w", dataset, err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no %s data for %s", dataset, stock.Ticker())
	}

	latest := series[len(series)-1]
	return &models.Quote{Close: latest.Close, Date: latest.Date}, nil
}

// logSummary writes the cycle's results as an aligned table, mirroring what
// operators expect to see after every run.
func (s *RefreshService) logSummary(results []models.RefreshResult) {
	if len(results) == 0 {
		log.Println("No stock data refreshed this cycle")
		return
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tALIAS\tMARKET\tDATE\tCLOSE\tUPDATED")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
			r.Ticker, r.Alias, r.Market, r.Date.Format(dateLayout), r.Close.StringFixed(2), r.UpdateSucceeded)
	}
	w.Flush()
	log.Printf("Latest quotes:\n%s", buf.String())
}
