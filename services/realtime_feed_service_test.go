package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_price_updater/models"
)

func TestRealtimeFeedBroadcast(t *testing.T) {
	feed := NewRealtimeFeedService()
	defer feed.Shutdown()

	server := httptest.NewServer(http.HandlerFunc(feed.HandleConnection))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration goes through the hub channel; give it a moment before
	// publishing so the broadcast sees this client.
	time.Sleep(50 * time.Millisecond)

	date, _ := time.Parse("2006-01-02", "2024-07-09")
	feed.PublishResults([]models.RefreshResult{{
		StockID:         "1",
		Ticker:          "2330",
		Alias:           "TSMC",
		Market:          models.MarketTW,
		Date:            date,
		Close:           decimal.NewFromInt(960),
		UpdateSucceeded: true,
	}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string                 `json:"type"`
		Data []models.RefreshResult `json:"data"`
		Time string                 `json:"time"`
	}
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, "refresh_results", msg.Type)
	require.Len(t, msg.Data, 1)
	assert.Equal(t, "2330", msg.Data[0].Ticker)
	assert.NotEmpty(t, msg.Time)
}

func TestRealtimeFeedSkipsEmptyBatch(t *testing.T) {
	feed := NewRealtimeFeedService()
	defer feed.Shutdown()

	// An empty batch never reaches the broadcast channel.
	feed.PublishResults(nil)
	feed.PublishResults([]models.RefreshResult{})

	select {
	case msg := <-feed.broadcast:
		t.Fatalf("unexpected broadcast: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRealtimeFeedShutdownIdempotent(t *testing.T) {
	feed := NewRealtimeFeedService()
	assert.NotPanics(t, func() {
		feed.Shutdown()
		feed.Shutdown()
	})
}
