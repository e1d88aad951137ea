package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"stock_price_updater/models"

	"github.com/gorilla/websocket"
)

const (
	maxFeedClients   = 100
	feedWriteTimeout = 10 * time.Second
	feedPongTimeout  = 60 * time.Second
	feedPingInterval = 30 * time.Second
)

// FeedMessage is the envelope broadcast to WebSocket clients.
type FeedMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// feedClient is one connected WebSocket consumer.
type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// RealtimeFeedService broadcasts each cycle's refresh results to connected
// WebSocket clients. Clients only listen; inbound messages are discarded.
type RealtimeFeedService struct {
	clients    map[*feedClient]bool
	broadcast  chan FeedMessage
	register   chan *feedClient
	unregister chan *feedClient
	stopChan   chan struct{}
	stopOnce   sync.Once
	upgrader   websocket.Upgrader
}

// NewRealtimeFeedService creates the feed and starts its hub goroutine.
func NewRealtimeFeedService() *RealtimeFeedService {
	svc := &RealtimeFeedService{
		clients:    make(map[*feedClient]bool),
		broadcast:  make(chan FeedMessage, 256),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		stopChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	go svc.runHub()
	return svc
}

// runHub owns the client registry; all mutations go through its channels.
func (s *RealtimeFeedService) runHub() {
	for {
		select {
		case client := <-s.register:
			if len(s.clients) >= maxFeedClients {
				client.conn.Close()
				continue
			}
			s.clients[client] = true
		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
		case msg := <-s.broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Feed: marshal broadcast: %v", err)
				continue
			}
			for client := range s.clients {
				select {
				case client.send <- payload:
				default:
					// Slow consumer, drop it.
					delete(s.clients, client)
					close(client.send)
				}
			}
		case <-s.stopChan:
			for client := range s.clients {
				client.conn.Close()
			}
			return
		}
	}
}

// PublishResults broadcasts one cycle's results to every connected client.
func (s *RealtimeFeedService) PublishResults(results []models.RefreshResult) {
	if len(results) == 0 {
		return
	}
	msg := FeedMessage{
		Type: "refresh_results",
		Data: results,
		Time: time.Now().Format(time.RFC3339),
	}
	select {
	case s.broadcast <- msg:
	default:
		log.Println("Feed: broadcast buffer full, dropping result batch")
	}
}

// HandleConnection upgrades the request and serves the feed until the client
// disconnects.
func (s *RealtimeFeedService) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Feed: upgrade failed: %v", err)
		return
	}
	client := &feedClient{conn: conn, send: make(chan []byte, 64)}
	s.register <- client

	go client.writePump()
	go client.readPump(s)
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(feedPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *feedClient) readPump(s *RealtimeFeedService) {
	defer func() {
		s.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(feedPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(feedPongTimeout))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Shutdown closes the hub and every client connection.
func (s *RealtimeFeedService) Shutdown() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}
