package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Constants for subscription
const (
	allLocationsWildcard = "*" // Subscribe to all store locations
)

// Frame types exchanged with the POS feed
const (
	FrameTypeSale      = "sale"
	FrameTypeSaleBatch = "sale_batch"
	FrameTypePing      = "ping"
	FrameTypePong      = "pong"
	FrameTypeSubscribe = "subscribe"
)

// Frame is the JSON envelope carried on the POS feed
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SaleEvent is one sold line item as delivered by the POS feed
type SaleEvent struct {
	SoldAt        time.Time `json:"sold_at"`
	ProductID     int64     `json:"product_id"`
	LocationID    int64     `json:"location_id"`
	Quantity      float64   `json:"quantity"`
	UnitPrice     float64   `json:"unit_price"`
	Discount      float64   `json:"discount"`
	Channel       string    `json:"channel"`
	ReceiptNumber *int64    `json:"receipt_number,omitempty"`
}

// subscribeRequest asks the feed to stream sales for the given locations
type subscribeRequest struct {
	Locations []string `json:"locations"`
	ClientID  string   `json:"client_id,omitempty"`
}

// pingPayload carries the client timestamp for latency measurement
type pingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// Client represents a WebSocket client
type Client struct {
	url        string
	conn       *websocket.Conn
	header     http.Header
	writeMu    sync.Mutex
	pingCancel context.CancelFunc // Cancel function for ping goroutine
}

// NewClient creates a new WebSocket client
func NewClient(url string, apiKey string) *Client {
	header := make(http.Header)
	header.Set("X-API-Key", apiKey)
	header.Set("User-Agent", "retail-demand-engine")

	return &Client{
		url:    url,
		header: header,
	}
}

// Connect establishes WebSocket connection
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, c.header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	c.conn = conn
	log.Printf("✅ Connected to %s", c.url)
	return nil
}

// SubscribeToLocations sends the subscription message for all store locations
func (c *Client) SubscribeToLocations(locations []string, clientID string) error {
	if len(locations) == 0 {
		// Use wildcard to subscribe to ALL locations
		locations = []string{allLocationsWildcard}
	}

	data, err := json.Marshal(subscribeRequest{
		Locations: locations,
		ClientID:  clientID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	if err := c.WriteFrame(Frame{Type: FrameTypeSubscribe, Data: data}); err != nil {
		return fmt.Errorf("failed to send subscription: %w", err)
	}

	log.Printf("📡 Subscribed to POS sales feed (locations: %v)", locations)
	return nil
}

// StartPing starts periodic ping to keep connection alive
// Returns a context cancel function that can be used to stop the ping loop
func (c *Client) StartPing(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	c.pingCancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				// Context canceled, exit goroutine
				return
			case <-ticker.C:
				data, err := json.Marshal(pingPayload{Timestamp: time.Now().UnixMilli()})
				if err != nil {
					log.Println("Failed to marshal ping:", err)
					continue
				}

				if err := c.WriteFrame(Frame{Type: FrameTypePing, Data: data}); err != nil {
					log.Println("Failed to send ping:", err)
					return
				}
			}
		}
	}()
}

// WriteFrame sends a JSON frame to the WebSocket connection thread-safely
func (c *Client) WriteFrame(frame Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return c.conn.WriteJSON(frame)
}

// ReadFrame reads and decodes the next JSON frame from the WebSocket
func (c *Client) ReadFrame() (*Frame, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	frame := &Frame{}
	if err := json.Unmarshal(data, frame); err != nil {
		return nil, fmt.Errorf("failed to unmarshal frame: %w", err)
	}

	return frame, nil
}

// Close closes the WebSocket connection
func (c *Client) Close() error {
	// Cancel ping goroutine if it's running
	if c.pingCancel != nil {
		c.pingCancel()
	}

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
