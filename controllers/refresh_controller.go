package controllers

import (
	"net/http"
	"time"

	"stock_price_updater/market"
	"stock_price_updater/models"
	"stock_price_updater/services"

	"github.com/gin-gonic/gin"
)

// RefreshController exposes the refresh pipeline over HTTP.
type RefreshController struct {
	refresh  *services.RefreshService
	calendar *market.Calendar
	feed     *services.RealtimeFeedService
}

// NewRefreshController creates the controller.
func NewRefreshController(refresh *services.RefreshService, calendar *market.Calendar, feed *services.RealtimeFeedService) *RefreshController {
	return &RefreshController{refresh: refresh, calendar: calendar, feed: feed}
}

// HealthCheck reports service liveness.
func (rc *RefreshController) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "running",
	})
}

// TriggerRefresh runs one refresh cycle ignoring market hours and returns
// the best-effort result list. Per-stock failures shorten the list but never
// produce an error status.
func (rc *RefreshController) TriggerRefresh(c *gin.Context) {
	results := rc.refresh.RunCycle(c.Request.Context(), true)
	if results == nil {
		results = []models.RefreshResult{}
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "refresh completed",
		"count":   len(results),
		"data":    results,
	})
}

// MarketStatus reports open/closed state, the active session window and the
// resolved trading date for both markets, plus last-cycle bookkeeping.
func (rc *RefreshController) MarketStatus(c *gin.Context) {
	now := rc.calendar.Now()
	lastRun, lastCount := rc.refresh.LastRun()

	statuses := make(map[string]gin.H, 2)
	for _, m := range []models.Market{models.MarketTW, models.MarketUS} {
		window := rc.calendar.CurrentSessionWindow(m, now)
		statuses[string(m)] = gin.H{
			"open":         rc.calendar.IsOpen(m, now),
			"window_start": window.Start.String(),
			"window_end":   window.End.String(),
			"trading_date": rc.calendar.ResolveTradingDate(m, now).Format("2006-01-02"),
		}
	}

	resp := gin.H{
		"now":               now.Format(time.RFC3339),
		"daylight_saving":   rc.calendar.IsDaylightSaving(now),
		"markets":           statuses,
		"last_result_count": lastCount,
	}
	if !lastRun.IsZero() {
		resp["last_run"] = lastRun.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// PriceFeed upgrades the request to the WebSocket result feed.
func (rc *RefreshController) PriceFeed(c *gin.Context) {
	rc.feed.HandleConnection(c.Writer, c.Request)
}
