package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Dataset selects the FinMind series granularity.
type Dataset string

const (
	DatasetTaiwanDaily Dataset = "TaiwanStockPrice"
	DatasetUSDaily     Dataset = "USStockPrice"
	DatasetUSMinute    Dataset = "USStockPriceMinute"
)

// closeField returns the JSON key the dataset reports its close price under.
// Minute and Taiwan daily rows use "close", US daily rows use "Close".
func (d Dataset) closeField() string {
	if d == DatasetUSDaily {
		return "Close"
	}
	return "close"
}

// SeriesPoint is one normalized row of a price series.
type SeriesPoint struct {
	Date  time.Time
	Close decimal.Decimal
}

// FinMindService fetches price series from the FinMind data API.
type FinMindService struct {
	apiURL     string
	token      string
	httpClient *http.Client
}

// NewFinMindService creates a FinMind client authenticating with token.
func NewFinMindService(apiURL, token string, timeout time.Duration) *FinMindService {
	return &FinMindService{
		apiURL: apiURL,
		token:  token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type finmindResponse struct {
	Msg    string                   `json:"msg"`
	Status int                      `json:"status"`
	Data   []map[string]interface{} `json:"data"`
}

// FetchSeries fetches the series for dataID between startDate and endDate at
// the dataset's granularity and returns it sorted ascending by date. An
// empty series is not an error; a non-success API message is.
func (s *FinMindService) FetchSeries(ctx context.Context, dataset Dataset, dataID string, startDate, endDate time.Time) ([]SeriesPoint, error) {
	params := url.Values{}
	params.Set("dataset", string(dataset))
	params.Set("data_id", dataID)
	params.Set("start_date", startDate.Format(dateLayout))
	params.Set("end_date", endDate.Format(dateLayout))
	params.Set("token", s.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build finmind request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s for %s: %w", dataset, dataID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("finmind %s: unexpected status %d: %s", dataset, resp.StatusCode, string(body))
	}

	var payload finmindResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("finmind %s: decode response: %w", dataset, err)
	}
	if payload.Msg != "" && payload.Msg != "success" {
		return nil, fmt.Errorf("finmind %s: api error: %s", dataset, payload.Msg)
	}

	closeField := dataset.closeField()
	points := make([]SeriesPoint, 0, len(payload.Data))
	for _, row := range payload.Data {
		point, ok := parseSeriesRow(row, closeField)
		if !ok {
			continue
		}
		points = append(points, point)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

func parseSeriesRow(row map[string]interface{}, closeField string) (SeriesPoint, bool) {
	rawDate, ok := row["date"].(string)
	if !ok {
		return SeriesPoint{}, false
	}
	date, err := parseSeriesDate(rawDate)
	if err != nil {
		log.Printf("FinMind: skipping row with bad date %q: %v", rawDate, err)
		return SeriesPoint{}, false
	}
	closeVal, ok := row[closeField].(float64)
	if !ok {
		return SeriesPoint{}, false
	}
	return SeriesPoint{Date: date, Close: decimal.NewFromFloat(closeVal)}, true
}

// parseSeriesDate accepts both row formats: minute rows carry a timestamp,
// daily rows a bare date.
func parseSeriesDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02 15:04:05", raw); err == nil {
		return t, nil
	}
	return time.Parse(dateLayout, raw)
}
